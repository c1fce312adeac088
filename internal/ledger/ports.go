package ledger

import (
	"context"

	"gofinances/internal/core"
)

// Ports for storage adapters.
type (
	CategoryStore interface {
		// FindCategoryByTitle returns core.ErrNotFound when no category has
		// exactly that title.
		FindCategoryByTitle(ctx context.Context, title string) (core.Category, error)

		// FindCategoriesByTitles returns the existing categories whose title
		// is in titles. Missing titles are ignored.
		FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error)

		// CreateCategory inserts a category or returns the one already
		// holding that title.
		CreateCategory(ctx context.Context, title string) (core.Category, error)

		// CreateCategories inserts one category per title, in order.
		CreateCategories(ctx context.Context, titles []string) ([]core.Category, error)
	}

	TransactionStore interface {
		SaveTransaction(ctx context.Context, t core.Transaction) error
		SaveTransactions(ctx context.Context, ts []core.Transaction) error

		// DeleteTransaction returns core.ErrNotFound for unknown ids.
		DeleteTransaction(ctx context.Context, id string) error

		// ListTransactions returns every transaction in insertion order,
		// with Category populated.
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
	}

	// Store is the persistent ledger. RunInTx runs fn against a view of the
	// store whose writes become visible only if fn returns nil.
	Store interface {
		CategoryStore
		TransactionStore
		RunInTx(ctx context.Context, fn func(tx Store) error) error
	}

	// Pinger is implemented by stores that can report readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
