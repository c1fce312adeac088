package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gofinances/internal/cache"
	"gofinances/internal/core"
	"gofinances/internal/ledger"
	"gofinances/internal/log"
)

// Overview is the ledger listing together with its balance.
type Overview struct {
	Transactions []core.Transaction `json:"transactions"`
	Balance      core.Balance       `json:"balance"`
}

// TransactionService creates, deletes and lists ledger transactions.
type TransactionService struct {
	store      ledger.Store
	events     EventPublisher
	categories *cache.LRUCache[string, core.Category]
	logger     *log.Logger
}

// NewTransactionService wires the service. events and categories may be nil.
func NewTransactionService(store ledger.Store, events EventPublisher, categories *cache.LRUCache[string, core.Category], logger *log.Logger) *TransactionService {
	return &TransactionService{
		store:      store,
		events:     events,
		categories: categories,
		logger:     defaultLogger(logger, log.ComponentTransaction),
	}
}

// ListTransactions returns every transaction in insertion order.
func (s *TransactionService) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	o, err := s.Overview(ctx)
	if err != nil {
		return nil, err
	}
	return o.Transactions, nil
}

// GetBalance scans the ledger and returns its current balance.
func (s *TransactionService) GetBalance(ctx context.Context) (core.Balance, error) {
	o, err := s.Overview(ctx)
	if err != nil {
		return core.Balance{}, err
	}
	return o.Balance, nil
}

// Overview lists the ledger and computes the balance from the same scan.
// Every call reads the store.
func (s *TransactionService) Overview(ctx context.Context) (Overview, error) {
	ts, err := s.store.ListTransactions(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("list transactions: %w", err)
	}
	balance, err := core.ComputeBalance(ts)
	if err != nil {
		return Overview{}, fmt.Errorf("compute balance: %w", err)
	}
	return Overview{Transactions: ts, Balance: balance}, nil
}

// CreateTransaction validates in, resolves its category and persists it.
// Outcomes larger than the current total fail with core.ErrInsufficientBalance
// and leave the ledger untouched, including any category created on the way.
func (s *TransactionService) CreateTransaction(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var created core.Transaction
	err := s.store.RunInTx(ctx, func(tx ledger.Store) error {
		category, err := s.resolveCategory(ctx, tx, in.Category)
		if err != nil {
			return err
		}

		ts, err := tx.ListTransactions(ctx)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		balance, err := core.ComputeBalance(ts)
		if err != nil {
			return fmt.Errorf("compute balance: %w", err)
		}
		if !balance.Admits(in.Type, in.Value) {
			return fmt.Errorf("%w: total %s, outcome %s", core.ErrInsufficientBalance, balance.Total, in.Value)
		}
		if _, err := balance.Apply(in.Type, in.Value); err != nil {
			return err
		}

		now := time.Now().UTC()
		t := core.Transaction{
			ID:         uuid.NewString(),
			Title:      in.Title,
			Value:      in.Value,
			Type:       in.Type,
			CategoryID: category.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.SaveTransaction(ctx, t); err != nil {
			return fmt.Errorf("save transaction: %w", err)
		}
		t.Category = &category
		created = t
		return nil
	})
	if err != nil {
		if errors.Is(err, core.ErrInsufficientBalance) {
			s.logger.InfoContext(ctx, "Transaction rejected",
				log.FieldOperation, log.OpCreate,
				log.FieldValueCents, in.Value.Cents,
				log.FieldError, err)
		}
		return core.Transaction{}, err
	}

	if s.categories != nil {
		s.categories.Set(created.Category.Title, *created.Category)
	}

	s.logger.InfoContext(ctx, "Transaction created", log.NewFields().
		WithOperation(log.OpCreate).
		WithTransaction(created.ID, created.Title, created.Type.String(), created.Value.Cents, in.Category).
		ToSlice()...)

	publish(ctx, s.logger, s.events, log.OpCreate, func(p EventPublisher) error {
		return p.PublishTransactionCreated(ctx, created)
	})

	return created, nil
}

// resolveCategory returns the category titled title, creating it when absent.
// Cached entries are committed rows and skip the store lookup.
func (s *TransactionService) resolveCategory(ctx context.Context, tx ledger.Store, title string) (core.Category, error) {
	if s.categories != nil {
		if c, ok := s.categories.Get(title); ok {
			return c, nil
		}
	}

	c, err := tx.FindCategoryByTitle(ctx, title)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.Category{}, fmt.Errorf("find category: %w", err)
	}

	c, err = tx.CreateCategory(ctx, title)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	s.logger.DebugContext(ctx, "Category created",
		log.FieldCategoryID, c.ID,
		log.FieldCategory, c.Title)
	return c, nil
}

// DeleteTransaction removes the transaction with the given id. Unknown ids
// return core.ErrNotFound.
func (s *TransactionService) DeleteTransaction(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("transaction id: %w", core.ErrNotFound)
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldTransactionID, id)

	publish(ctx, s.logger, s.events, log.OpDelete, func(p EventPublisher) error {
		return p.PublishTransactionDeleted(ctx, id)
	})
	return nil
}
