package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gofinances/internal/core"
	"gofinances/internal/ledger"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newTransaction(categoryID string, typ core.TransactionType, cents int64) core.Transaction {
	now := time.Now().UTC()
	return core.Transaction{
		ID:         uuid.NewString(),
		Title:      "title",
		Value:      core.Money{Cents: cents},
		Type:       typ,
		CategoryID: categoryID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Ping(context.Background()))
	require.NoError(t, repo.Close())
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.FindCategoryByTitle(ctx, "Work")
	assert.ErrorIs(t, err, core.ErrNotFound)

	work, err := repo.CreateCategory(ctx, "Work")
	require.NoError(t, err)
	again, err := repo.CreateCategory(ctx, "Work")
	require.NoError(t, err)
	assert.Equal(t, work.ID, again.ID, "unique title must resolve to the same row")

	found, err := repo.FindCategoryByTitle(ctx, "Work")
	require.NoError(t, err)
	assert.Equal(t, work.ID, found.ID)
	assert.False(t, found.CreatedAt.IsZero())

	created, err := repo.CreateCategories(ctx, []string{"Food", "Housing"})
	require.NoError(t, err)
	require.Len(t, created, 2)

	matched, err := repo.FindCategoriesByTitles(ctx, []string{"Food", "Food", "Missing", "Work"})
	require.NoError(t, err)
	titles := make([]string, 0, len(matched))
	for _, c := range matched {
		titles = append(titles, c.Title)
	}
	assert.ElementsMatch(t, []string{"Food", "Work"}, titles)
}

func TestFindCategoriesByTitlesChunks(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	titles := make([]string, titlesPerQuery+20)
	for i := range titles {
		titles[i] = fmt.Sprintf("cat-%04d", i)
	}
	_, err := repo.CreateCategories(ctx, titles)
	require.NoError(t, err)

	found, err := repo.FindCategoriesByTitles(ctx, titles)
	require.NoError(t, err)
	assert.Len(t, found, len(titles))
}

func TestTransactionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	cat, err := repo.CreateCategory(ctx, "Work")
	require.NoError(t, err)

	first := newTransaction(cat.ID, core.Income, 100000)
	second := newTransaction(cat.ID, core.Outcome, 40050)
	third := newTransaction(cat.ID, core.Income, 1)
	require.NoError(t, repo.SaveTransaction(ctx, first))
	require.NoError(t, repo.SaveTransactions(ctx, []core.Transaction{second, third}))

	list, err := repo.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, int64(40050), list[1].Value.Cents)
	assert.Equal(t, core.Outcome, list[1].Type)
	require.NotNil(t, list[1].Category)
	assert.Equal(t, "Work", list[1].Category.Title)
	assert.True(t, first.CreatedAt.Equal(list[0].CreatedAt))

	require.NoError(t, repo.DeleteTransaction(ctx, second.ID))
	assert.ErrorIs(t, repo.DeleteTransaction(ctx, second.ID), core.ErrNotFound)

	list, err = repo.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	balance, err := core.ComputeBalance(list)
	require.NoError(t, err)
	assert.Equal(t, core.Balance{
		Income:  core.Money{Cents: 100001},
		Outcome: core.Money{},
		Total:   core.Money{Cents: 100001},
	}, balance)
}

func TestSaveTransactionRequiresCategory(t *testing.T) {
	repo := newTestRepository(t)
	err := repo.SaveTransaction(context.Background(), newTransaction("missing", core.Income, 1))
	assert.Error(t, err)
}

func TestRunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	boom := errors.New("boom")

	err := repo.RunInTx(ctx, func(tx ledger.Store) error {
		cats, err := tx.CreateCategories(ctx, []string{"A", "B"})
		if err != nil {
			return err
		}
		if err := tx.SaveTransactions(ctx, []core.Transaction{newTransaction(cats[0].ID, core.Income, 5)}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	found, err := repo.FindCategoriesByTitles(ctx, []string{"A", "B"})
	require.NoError(t, err)
	assert.Empty(t, found)

	list, err := repo.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
