package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"gofinances/internal/core"
	"gofinances/internal/ledger"

	_ "modernc.org/sqlite"
)

const (
	timeLayout = time.RFC3339Nano

	// titlesPerQuery stays well below SQLite's bound-parameter limit.
	titlesPerQuery = 500
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	inTx    bool
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers, so balance checks and inserts
	// cannot interleave.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil && !r.inTx {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RunInTx implements ledger.Store. Nested calls reuse the open transaction.
func (r *SQLiteRepository) RunInTx(ctx context.Context, fn func(tx ledger.Store) error) error {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	child := &SQLiteRepository{
		db:      r.db,
		queries: r.queries.WithTx(tx),
		inTx:    true,
	}
	if err := fn(child); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// FindCategoryByTitle implements ledger.CategoryStore
func (r *SQLiteRepository) FindCategoryByTitle(ctx context.Context, title string) (core.Category, error) {
	c, err := r.queries.GetCategoryByTitle(ctx, title)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %q: %w", title, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category by title: %w", err)
	}
	return toCoreCategory(c)
}

// FindCategoriesByTitles implements ledger.CategoryStore
func (r *SQLiteRepository) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	titles = distinct(titles)

	var out []core.Category
	for start := 0; start < len(titles); start += titlesPerQuery {
		end := min(start+titlesPerQuery, len(titles))
		rows, err := r.queries.ListCategoriesByTitles(ctx, titles[start:end])
		if err != nil {
			return nil, fmt.Errorf("list categories by titles: %w", err)
		}
		for _, row := range rows {
			c, err := toCoreCategory(row)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// CreateCategory implements ledger.CategoryStore. Concurrent creations of the
// same title converge on one row through the unique constraint.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, title string) (core.Category, error) {
	now := time.Now().UTC().Format(timeLayout)
	err := r.queries.InsertCategory(ctx, Category{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category %q: %w", title, err)
	}

	c, err := r.queries.GetCategoryByTitle(ctx, title)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %q after insert: %w", title, err)
	}

	slog.DebugContext(ctx, "Category resolved", "id", c.ID, "title", c.Title)
	return toCoreCategory(c)
}

// CreateCategories implements ledger.CategoryStore
func (r *SQLiteRepository) CreateCategories(ctx context.Context, titles []string) ([]core.Category, error) {
	out := make([]core.Category, 0, len(titles))
	err := r.RunInTx(ctx, func(tx ledger.Store) error {
		for _, title := range titles {
			c, err := tx.CreateCategory(ctx, title)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveTransaction implements ledger.TransactionStore
func (r *SQLiteRepository) SaveTransaction(ctx context.Context, t core.Transaction) error {
	err := r.queries.InsertTransaction(ctx, InsertTransactionParams{
		ID:         t.ID,
		Title:      t.Title,
		ValueCents: t.Value.Cents,
		Type:       t.Type.String(),
		CategoryID: t.CategoryID,
		CreatedAt:  t.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:  t.UpdatedAt.UTC().Format(timeLayout),
	})
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", t.ID, err)
	}
	return nil
}

// SaveTransactions implements ledger.TransactionStore
func (r *SQLiteRepository) SaveTransactions(ctx context.Context, ts []core.Transaction) error {
	return r.RunInTx(ctx, func(tx ledger.Store) error {
		for _, t := range ts {
			if err := tx.SaveTransaction(ctx, t); err != nil {
				return err
			}
		}
		slog.InfoContext(ctx, "Transactions saved to SQLite", "count", len(ts))
		return nil
	})
}

// DeleteTransaction implements ledger.TransactionStore
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	n, err := r.queries.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Transaction deleted from SQLite", "id", id)
	return nil
}

// ListTransactions implements ledger.TransactionStore
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	out := make([]core.Transaction, len(rows))
	for i, row := range rows {
		t, err := toCoreTransaction(row)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func toCoreCategory(c Category) (core.Category, error) {
	created, err := time.Parse(timeLayout, c.CreatedAt)
	if err != nil {
		return core.Category{}, fmt.Errorf("parse category %s created_at: %w", c.ID, err)
	}
	updated, err := time.Parse(timeLayout, c.UpdatedAt)
	if err != nil {
		return core.Category{}, fmt.Errorf("parse category %s updated_at: %w", c.ID, err)
	}
	return core.Category{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

func toCoreTransaction(t Transaction) (core.Transaction, error) {
	created, err := time.Parse(timeLayout, t.CreatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction %s created_at: %w", t.ID, err)
	}
	updated, err := time.Parse(timeLayout, t.UpdatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction %s updated_at: %w", t.ID, err)
	}
	category, err := toCoreCategory(Category{
		ID:        t.CategoryID,
		Title:     t.CategoryTitle,
		CreatedAt: t.CategoryCreatedAt,
		UpdatedAt: t.CategoryUpdatedAt,
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ID:         t.ID,
		Title:      t.Title,
		Value:      core.Money{Cents: t.ValueCents},
		Type:       core.TransactionType(t.Type),
		CategoryID: t.CategoryID,
		Category:   &category,
		CreatedAt:  created,
		UpdatedAt:  updated,
	}, nil
}

func distinct(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
