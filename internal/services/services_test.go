package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"gofinances/internal/core"
	"gofinances/internal/ledger"
	"gofinances/internal/ledger/memory"
	"gofinances/internal/storage"
)

type storeFactory func(t *testing.T) ledger.Store

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) ledger.Store {
			return memory.New()
		},
		"sqlite": func(t *testing.T) ledger.Store {
			repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = repo.Close() })
			return repo
		},
	}
}

// forEachStore runs fn once per store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, store ledger.Store)) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

type recordedEvent struct {
	op  string
	ids []string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (f *fakePublisher) record(op string, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{op: op, ids: ids})
	return f.err
}

func (f *fakePublisher) PublishTransactionCreated(_ context.Context, t core.Transaction) error {
	return f.record("created", t.ID)
}

func (f *fakePublisher) PublishTransactionDeleted(_ context.Context, id string) error {
	return f.record("deleted", id)
}

func (f *fakePublisher) PublishTransactionsImported(_ context.Context, ts []core.Transaction) error {
	ids := make([]string, len(ts))
	for i, t := range ts {
		ids[i] = t.ID
	}
	return f.record("imported", ids...)
}

func (f *fakePublisher) recorded() []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedEvent(nil), f.events...)
}

func money(cents int64) core.Money {
	return core.Money{Cents: cents}
}

func categoryTitles(t *testing.T, store ledger.Store, titles ...string) []string {
	t.Helper()
	found, err := store.FindCategoriesByTitles(context.Background(), titles)
	require.NoError(t, err)
	out := make([]string, len(found))
	for i, c := range found {
		out[i] = c.Title
	}
	return out
}

// gatedStore holds the first ListTransactions call outside a store
// transaction until release is closed.
type gatedStore struct {
	ledger.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedStore(store ledger.Store) *gatedStore {
	return &gatedStore{
		Store:   store,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedStore) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	held := false
	g.once.Do(func() { held = true })
	if held {
		close(g.entered)
		<-g.release
	}
	return g.Store.ListTransactions(ctx)
}
