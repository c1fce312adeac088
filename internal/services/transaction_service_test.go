package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gofinances/internal/cache"
	"gofinances/internal/core"
	"gofinances/internal/ledger"
)

func TestCreateTransactionScenario(t *testing.T) {
	forEachStore(t, func(t *testing.T, store ledger.Store) {
		ctx := context.Background()
		events := &fakePublisher{}
		svc := NewTransactionService(store, events, nil, nil)

		salary, err := svc.CreateTransaction(ctx, core.NewTransaction{
			Title: "Salary", Value: money(100000), Type: core.Income, Category: "Work",
		})
		require.NoError(t, err)
		require.NotNil(t, salary.Category)
		assert.Equal(t, "Work", salary.Category.Title)
		assert.Equal(t, salary.Category.ID, salary.CategoryID)

		balance, err := svc.GetBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(100000), balance.Total.Cents)
		assert.Equal(t, []string{"Work"}, categoryTitles(t, store, "Work", "Housing"))

		_, err = svc.CreateTransaction(ctx, core.NewTransaction{
			Title: "Rent", Value: money(40000), Type: core.Outcome, Category: "Housing",
		})
		require.NoError(t, err)

		balance, err = svc.GetBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, core.Balance{Income: money(100000), Outcome: money(40000), Total: money(60000)}, balance)
		assert.ElementsMatch(t, []string{"Work", "Housing"}, categoryTitles(t, store, "Work", "Housing"))

		_, err = svc.CreateTransaction(ctx, core.NewTransaction{
			Title: "Car", Value: money(100000), Type: core.Outcome, Category: "Housing",
		})
		assert.ErrorIs(t, err, core.ErrInsufficientBalance)

		overview, err := svc.Overview(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(60000), overview.Balance.Total.Cents)
		require.Len(t, overview.Transactions, 2)
		assert.Equal(t, "Salary", overview.Transactions[0].Title)
		assert.Equal(t, "Rent", overview.Transactions[1].Title)

		recorded := events.recorded()
		require.Len(t, recorded, 2)
		assert.Equal(t, recordedEvent{op: "created", ids: []string{salary.ID}}, recorded[0])
	})
}

func TestCreateTransactionRejectedOutcomeRollsBackCategory(t *testing.T) {
	forEachStore(t, func(t *testing.T, store ledger.Store) {
		ctx := context.Background()
		svc := NewTransactionService(store, nil, nil, nil)

		_, err := svc.CreateTransaction(ctx, core.NewTransaction{
			Title: "Car", Value: money(1), Type: core.Outcome, Category: "Transport",
		})
		require.ErrorIs(t, err, core.ErrInsufficientBalance)

		list, err := svc.ListTransactions(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
		assert.Empty(t, categoryTitles(t, store, "Transport"))
	})
}

func TestCreateTransactionOutcomeEqualToTotal(t *testing.T) {
	forEachStore(t, func(t *testing.T, store ledger.Store) {
		ctx := context.Background()
		svc := NewTransactionService(store, nil, nil, nil)

		_, err := svc.CreateTransaction(ctx, core.NewTransaction{Title: "In", Value: money(500), Type: core.Income, Category: "A"})
		require.NoError(t, err)
		_, err = svc.CreateTransaction(ctx, core.NewTransaction{Title: "Out", Value: money(500), Type: core.Outcome, Category: "A"})
		require.NoError(t, err)

		balance, err := svc.GetBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), balance.Total.Cents)
	})
}

func TestGetBalanceSeesCommitDuringSlowRead(t *testing.T) {
	forEachStore(t, func(t *testing.T, store ledger.Store) {
		ctx := context.Background()
		gated := newGatedStore(store)
		svc := NewTransactionService(gated, nil, nil, nil)

		slow := make(chan core.Balance, 1)
		go func() {
			b, _ := svc.GetBalance(ctx)
			slow <- b
		}()

		select {
		case <-gated.entered:
		case <-time.After(5 * time.Second):
			t.Fatal("first read never reached the store")
		}

		_, err := svc.CreateTransaction(ctx, core.NewTransaction{
			Title: "Salary", Value: money(100000), Type: core.Income, Category: "Work",
		})
		require.NoError(t, err)

		done := make(chan core.Balance, 1)
		go func() {
			b, _ := svc.GetBalance(ctx)
			done <- b
		}()

		select {
		case b := <-done:
			assert.Equal(t, int64(100000), b.Total.Cents)
		case <-time.After(5 * time.Second):
			t.Fatal("read after commit waited on the earlier read")
		}

		close(gated.release)
		<-slow
	})
}

func TestCreateTransactionRejectsBalanceOverflow(t *testing.T) {
	forEachStore(t, func(t *testing.T, store ledger.Store) {
		ctx := context.Background()
		svc := NewTransactionService(store, nil, nil, nil)
		largest, err := core.ParseAmount("92233720368547758")
		require.NoError(t, err)

		_, err = svc.CreateTransaction(ctx, core.NewTransaction{
			Title: "Jackpot", Value: largest, Type: core.Income, Category: "Luck",
		})
		require.NoError(t, err)

		_, err = svc.CreateTransaction(ctx, core.NewTransaction{
			Title: "Jackpot again", Value: largest, Type: core.Income, Category: "Luck",
		})
		require.ErrorIs(t, err, core.ErrInvalidAmount)

		balance, err := svc.GetBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, largest, balance.Income)
		assert.Equal(t, largest, balance.Total)

		list, err := svc.ListTransactions(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestCreateTransactionValidation(t *testing.T) {
	svc := NewTransactionService(nil, nil, nil, nil)
	tests := []struct {
		name string
		in   core.NewTransaction
		want error
	}{
		{"empty title", core.NewTransaction{Title: "  ", Value: money(1), Type: core.Income, Category: "A"}, core.ErrEmptyTitle},
		{"zero value", core.NewTransaction{Title: "x", Value: money(0), Type: core.Income, Category: "A"}, core.ErrInvalidAmount},
		{"unknown type", core.NewTransaction{Title: "x", Value: money(1), Type: "transfer", Category: "A"}, core.ErrInvalidType},
		{"empty category", core.NewTransaction{Title: "x", Value: money(1), Type: core.Income, Category: ""}, core.ErrEmptyCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateTransaction(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, core.IsValidationError(err))
		})
	}
}

func TestCreateTransactionReusesCategory(t *testing.T) {
	forEachStore(t, func(t *testing.T, store ledger.Store) {
		ctx := context.Background()
		categories := cache.NewLRUCache[string, core.Category](10, time.Minute)
		svc := NewTransactionService(store, nil, categories, nil)

		first, err := svc.CreateTransaction(ctx, core.NewTransaction{Title: "a", Value: money(1), Type: core.Income, Category: "Work"})
		require.NoError(t, err)
		cached, ok := categories.Get("Work")
		require.True(t, ok)
		assert.Equal(t, first.CategoryID, cached.ID)

		second, err := svc.CreateTransaction(ctx, core.NewTransaction{Title: "b", Value: money(1), Type: core.Income, Category: " Work "})
		require.NoError(t, err)
		assert.Equal(t, first.CategoryID, second.CategoryID)

		// Category titles are case-sensitive.
		third, err := svc.CreateTransaction(ctx, core.NewTransaction{Title: "c", Value: money(1), Type: core.Income, Category: "work"})
		require.NoError(t, err)
		assert.NotEqual(t, first.CategoryID, third.CategoryID)
	})
}

func TestCreateTransactionConcurrentSameCategory(t *testing.T) {
	forEachStore(t, func(t *testing.T, store ledger.Store) {
		ctx := context.Background()
		svc := NewTransactionService(store, nil, nil, nil)

		const workers = 8
		var wg sync.WaitGroup
		ids := make([]string, workers)
		errs := make([]error, workers)
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tr, err := svc.CreateTransaction(ctx, core.NewTransaction{
					Title: "Salary", Value: money(100), Type: core.Income, Category: "Work",
				})
				ids[i], errs[i] = tr.CategoryID, err
			}()
		}
		wg.Wait()

		for i := range workers {
			require.NoError(t, errs[i])
			assert.Equal(t, ids[0], ids[i])
		}
		assert.Len(t, categoryTitles(t, store, "Work"), 1)

		balance, err := svc.GetBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(workers*100), balance.Total.Cents)
	})
}

func TestBalanceMatchesSumsAfterEveryStep(t *testing.T) {
	forEachStore(t, func(t *testing.T, store ledger.Store) {
		ctx := context.Background()
		svc := NewTransactionService(store, nil, nil, nil)

		steps := []core.NewTransaction{
			{Title: "a", Value: money(1000), Type: core.Income, Category: "X"},
			{Title: "b", Value: money(300), Type: core.Outcome, Category: "Y"},
			{Title: "c", Value: money(800), Type: core.Outcome, Category: "Y"},
			{Title: "d", Value: money(250), Type: core.Income, Category: "X"},
			{Title: "e", Value: money(950), Type: core.Outcome, Category: "Z"},
		}
		var income, outcome int64
		for _, step := range steps {
			_, err := svc.CreateTransaction(ctx, step)
			if err == nil {
				if step.Type == core.Income {
					income += step.Value.Cents
				} else {
					outcome += step.Value.Cents
				}
			} else {
				require.ErrorIs(t, err, core.ErrInsufficientBalance)
			}

			balance, err := svc.GetBalance(ctx)
			require.NoError(t, err)
			assert.Equal(t, income, balance.Income.Cents)
			assert.Equal(t, outcome, balance.Outcome.Cents)
			assert.Equal(t, income-outcome, balance.Total.Cents)
			assert.GreaterOrEqual(t, balance.Total.Cents, int64(0))
		}
	})
}

func TestDeleteTransaction(t *testing.T) {
	forEachStore(t, func(t *testing.T, store ledger.Store) {
		ctx := context.Background()
		events := &fakePublisher{}
		svc := NewTransactionService(store, events, nil, nil)

		salary, err := svc.CreateTransaction(ctx, core.NewTransaction{Title: "Salary", Value: money(1000), Type: core.Income, Category: "Work"})
		require.NoError(t, err)
		bonus, err := svc.CreateTransaction(ctx, core.NewTransaction{Title: "Bonus", Value: money(200), Type: core.Income, Category: "Work"})
		require.NoError(t, err)

		require.NoError(t, svc.DeleteTransaction(ctx, salary.ID))

		overview, err := svc.Overview(ctx)
		require.NoError(t, err)
		require.Len(t, overview.Transactions, 1)
		assert.Equal(t, bonus.ID, overview.Transactions[0].ID)
		assert.Equal(t, int64(200), overview.Balance.Total.Cents)
		assert.Equal(t, []string{"Work"}, categoryTitles(t, store, "Work"))

		assert.ErrorIs(t, svc.DeleteTransaction(ctx, salary.ID), core.ErrNotFound)
		assert.ErrorIs(t, svc.DeleteTransaction(ctx, ""), core.ErrNotFound)

		recorded := events.recorded()
		require.Len(t, recorded, 3)
		assert.Equal(t, recordedEvent{op: "deleted", ids: []string{salary.ID}}, recorded[2])
	})
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	forEachStore(t, func(t *testing.T, store ledger.Store) {
		ctx := context.Background()
		svc := NewTransactionService(store, &fakePublisher{err: errors.New("broker down")}, nil, nil)

		created, err := svc.CreateTransaction(ctx, core.NewTransaction{Title: "a", Value: money(1), Type: core.Income, Category: "X"})
		require.NoError(t, err)
		require.NoError(t, svc.DeleteTransaction(ctx, created.ID))
	})
}
