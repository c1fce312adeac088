package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"gofinances/internal/cache"
	"gofinances/internal/cli"
	apphttp "gofinances/internal/http"
	"gofinances/internal/ledger"
	"gofinances/internal/log"
	"gofinances/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	be := cli.InitBackend(ctx, logger, cfg)

	categories := cli.NewCategoryCache(cfg)
	caches := cache.NewManager()
	caches.Register(categories)
	caches.StartCleanup(cfg.CategoryCacheTTL)

	txService := services.NewTransactionService(be.Store, be.Publisher, categories, logger)
	importService := services.NewImportService(be.Store, services.ImportOptions{
		UploadDir:      cfg.UploadDir,
		EnforceBalance: cfg.ImportEnforceBalance,
		Events:         be.Publisher,
		Categories:     categories,
		Logger:         logger,
	})

	var ready ledger.Pinger
	if p, ok := be.Store.(ledger.Pinger); ok {
		ready = p
	}

	srv := apphttp.NewServer(":"+cfg.Port, txService, importService, apphttp.Options{
		Ready:          ready,
		RateLimit:      cfg.RateLimit,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting gofinances server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events", be.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	caches.Stop()
	cli.Cleanup(logger, 5*time.Second, "backend", be.Cleanup)

	if err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
