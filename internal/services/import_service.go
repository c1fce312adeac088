package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"gofinances/internal/cache"
	"gofinances/internal/core"
	"gofinances/internal/importer"
	"gofinances/internal/ledger"
	"gofinances/internal/log"
)

// ImportService loads transactions in bulk from CSV files.
type ImportService struct {
	store          ledger.Store
	events         EventPublisher
	categories     *cache.LRUCache[string, core.Category]
	uploadDir      string
	enforceBalance bool
	logger         *log.Logger
}

type ImportOptions struct {
	UploadDir string

	// EnforceBalance applies the running-balance rule row by row. By default
	// imported rows are trusted.
	EnforceBalance bool

	Events     EventPublisher
	Categories *cache.LRUCache[string, core.Category]
	Logger     *log.Logger
}

func NewImportService(store ledger.Store, opts ImportOptions) *ImportService {
	return &ImportService{
		store:          store,
		events:         opts.Events,
		categories:     opts.Categories,
		uploadDir:      opts.UploadDir,
		enforceBalance: opts.EnforceBalance,
		logger:         defaultLogger(opts.Logger, log.ComponentImport),
	}
}

// UploadDir is the directory Import resolves file names against.
func (s *ImportService) UploadDir() string {
	return s.uploadDir
}

// Import reads the named file from the upload directory. See ImportFile.
func (s *ImportService) Import(ctx context.Context, fileName string) ([]core.Transaction, error) {
	return s.ImportFile(ctx, filepath.Join(s.uploadDir, filepath.Base(fileName)))
}

// ImportFile persists every row of the CSV file at path and removes the file.
// Either all rows are stored or none: a malformed row fails with a
// *core.RowError and the file is left in place.
func (s *ImportService) ImportFile(ctx context.Context, path string) ([]core.Transaction, error) {
	start := time.Now()

	rows, err := importer.ReadFile(path)
	if err != nil {
		var rowErr *core.RowError
		if errors.As(err, &rowErr) {
			return nil, err
		}
		return nil, fmt.Errorf("read import file: %w", err)
	}

	var (
		out           []core.Transaction
		newCategories []core.Category
	)
	err = s.store.RunInTx(ctx, func(tx ledger.Store) error {
		var err error
		out, newCategories, err = s.persist(ctx, tx, rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.categories != nil {
		for _, t := range out {
			s.categories.Set(t.Category.Title, *t.Category)
		}
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.WarnContext(ctx, "Failed to remove import file",
			log.FieldFile, filepath.Base(path),
			log.FieldError, err)
	}

	s.logger.InfoContext(ctx, "Import completed", log.NewFields().
		WithOperation(log.OpImport).
		WithImport(filepath.Base(path), len(out), len(newCategories)).
		ToSlice()...)
	s.logger.DebugContext(ctx, "Import timing",
		log.FieldDuration, time.Since(start).Milliseconds())

	publish(ctx, s.logger, s.events, log.OpImport, func(p EventPublisher) error {
		return p.PublishTransactionsImported(ctx, out)
	})

	return out, nil
}

// persist resolves categories for rows with one lookup and one bulk insert,
// then saves the transactions in row order.
func (s *ImportService) persist(ctx context.Context, tx ledger.Store, rows []importer.Row) ([]core.Transaction, []core.Category, error) {
	titles := make([]string, len(rows))
	for i, row := range rows {
		titles[i] = row.Category
	}

	existing, err := tx.FindCategoriesByTitles(ctx, titles)
	if err != nil {
		return nil, nil, fmt.Errorf("find categories: %w", err)
	}
	byTitle := make(map[string]core.Category, len(existing))
	for _, c := range existing {
		byTitle[c.Title] = c
	}

	var missing []string
	for _, title := range titles {
		if _, ok := byTitle[title]; ok {
			continue
		}
		byTitle[title] = core.Category{}
		missing = append(missing, title)
	}

	created, err := tx.CreateCategories(ctx, missing)
	if err != nil {
		return nil, nil, fmt.Errorf("create categories: %w", err)
	}
	for _, c := range created {
		byTitle[c.Title] = c
	}

	current, err := tx.ListTransactions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list transactions: %w", err)
	}
	balance, err := core.ComputeBalance(current)
	if err != nil {
		return nil, nil, fmt.Errorf("compute balance: %w", err)
	}

	now := time.Now().UTC()
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		if s.enforceBalance && !balance.Admits(row.Type, row.Value) {
			return nil, nil, fmt.Errorf("line %d: %w: total %s, outcome %s",
				row.Line, core.ErrInsufficientBalance, balance.Total, row.Value)
		}
		// Trusted imports skip the admission rule but the sums must still fit.
		if balance, err = balance.Apply(row.Type, row.Value); err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", row.Line, err)
		}

		category := byTitle[row.Category]
		out = append(out, core.Transaction{
			ID:         uuid.NewString(),
			Title:      row.Title,
			Value:      row.Value,
			Type:       row.Type,
			CategoryID: category.ID,
			Category:   &category,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	if err := tx.SaveTransactions(ctx, out); err != nil {
		return nil, nil, fmt.Errorf("save transactions: %w", err)
	}
	return out, created, nil
}
