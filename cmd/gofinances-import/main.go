// Command gofinances-import loads a CSV file of transactions into the
// configured ledger backend.
//
// Usage:
//
//	gofinances-import [-enforce-balance] <file.csv>
//
// A relative name is looked up in UPLOAD_DIR first, then in the current
// directory. The file is removed once its rows are stored.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gofinances/internal/cli"
	"gofinances/internal/core"
	"gofinances/internal/log"
	"gofinances/internal/services"
)

func main() {
	enforce := flag.Bool("enforce-balance", false, "reject files whose outcomes would drive the balance negative")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-enforce-balance] <file.csv>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentImport)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	be := cli.InitBackend(ctx, logger, cfg)

	svc := services.NewImportService(be.Store, services.ImportOptions{
		UploadDir:      cfg.UploadDir,
		EnforceBalance: cfg.ImportEnforceBalance || *enforce,
		Events:         be.Publisher,
		Logger:         logger,
	})

	path := resolvePath(cfg.UploadDir, flag.Arg(0))
	imported, err := svc.ImportFile(ctx, path)
	cli.Cleanup(logger, cfg.ShutdownTimeout, "backend", be.Cleanup)

	if err != nil {
		var rowErr *core.RowError
		if errors.As(err, &rowErr) {
			logger.Error("Import rejected", log.FieldFile, path, "line", rowErr.Line, log.FieldError, rowErr.Err)
		} else {
			logger.Error("Import failed", log.FieldFile, path, log.FieldError, err)
		}
		os.Exit(1)
	}

	// Sums of a committed import always fit; the service checked them.
	balance, _ := core.ComputeBalance(imported)
	fmt.Printf("imported %d transactions (income %s, outcome %s)\n",
		len(imported), balance.Income, balance.Outcome)
}

func resolvePath(uploadDir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	candidate := filepath.Join(uploadDir, name)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return name
}
