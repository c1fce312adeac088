package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gofinances/internal/core"
	"gofinances/internal/ledger"
)

// Store keeps the ledger in process memory. It is the default backend and the
// one used by tests.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

type dataset struct {
	categories   []core.Category
	byTitle      map[string]int
	byID         map[string]int
	transactions []core.Transaction
}

var _ ledger.Store = (*Store)(nil)

func New(categories ...string) *Store {
	s := &Store{data: newDataset()}
	view := &txView{data: s.data}
	for _, title := range dedupe(categories) {
		_, _ = view.CreateCategory(context.Background(), title)
	}
	return s
}

// NewFromFiles seeds categories from base/seed_categories.txt when present.
func NewFromFiles(base string) *Store {
	return New(readLines(filepath.Join(base, "seed_categories.txt"))...)
}

func newDataset() *dataset {
	return &dataset{
		byTitle: make(map[string]int),
		byID:    make(map[string]int),
	}
}

func (d *dataset) clone() *dataset {
	c := &dataset{
		categories:   append([]core.Category(nil), d.categories...),
		byTitle:      make(map[string]int, len(d.byTitle)),
		byID:         make(map[string]int, len(d.byID)),
		transactions: append([]core.Transaction(nil), d.transactions...),
	}
	for k, v := range d.byTitle {
		c.byTitle[k] = v
	}
	for k, v := range d.byID {
		c.byID[k] = v
	}
	return c
}

func (s *Store) FindCategoryByTitle(ctx context.Context, title string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txView{data: s.data}).FindCategoryByTitle(ctx, title)
}

func (s *Store) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txView{data: s.data}).FindCategoriesByTitles(ctx, titles)
}

func (s *Store) CreateCategory(ctx context.Context, title string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txView{data: s.data}).CreateCategory(ctx, title)
}

func (s *Store) CreateCategories(ctx context.Context, titles []string) ([]core.Category, error) {
	var out []core.Category
	err := s.RunInTx(ctx, func(tx ledger.Store) error {
		var err error
		out, err = tx.CreateCategories(ctx, titles)
		return err
	})
	return out, err
}

func (s *Store) SaveTransaction(ctx context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txView{data: s.data}).SaveTransaction(ctx, t)
}

func (s *Store) SaveTransactions(ctx context.Context, ts []core.Transaction) error {
	return s.RunInTx(ctx, func(tx ledger.Store) error {
		return tx.SaveTransactions(ctx, ts)
	})
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txView{data: s.data}).DeleteTransaction(ctx, id)
}

func (s *Store) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txView{data: s.data}).ListTransactions(ctx)
}

// RunInTx runs fn against a copy of the data and swaps it in on success.
func (s *Store) RunInTx(ctx context.Context, fn func(tx ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&txView{data: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// txView operates on a dataset without locking. The owning Store holds the
// lock for its whole lifetime.
type txView struct {
	data *dataset
}

func (v *txView) FindCategoryByTitle(_ context.Context, title string) (core.Category, error) {
	i, ok := v.data.byTitle[title]
	if !ok {
		return core.Category{}, fmt.Errorf("category %q: %w", title, core.ErrNotFound)
	}
	return v.data.categories[i], nil
}

func (v *txView) FindCategoriesByTitles(_ context.Context, titles []string) ([]core.Category, error) {
	var out []core.Category
	seen := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}
		if i, ok := v.data.byTitle[title]; ok {
			out = append(out, v.data.categories[i])
		}
	}
	return out, nil
}

func (v *txView) CreateCategory(_ context.Context, title string) (core.Category, error) {
	if i, ok := v.data.byTitle[title]; ok {
		return v.data.categories[i], nil
	}
	now := time.Now().UTC()
	c := core.Category{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	v.data.byTitle[title] = len(v.data.categories)
	v.data.byID[c.ID] = len(v.data.categories)
	v.data.categories = append(v.data.categories, c)
	return c, nil
}

func (v *txView) CreateCategories(ctx context.Context, titles []string) ([]core.Category, error) {
	out := make([]core.Category, 0, len(titles))
	for _, title := range titles {
		c, err := v.CreateCategory(ctx, title)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (v *txView) SaveTransaction(_ context.Context, t core.Transaction) error {
	if _, ok := v.data.byID[t.CategoryID]; !ok {
		return fmt.Errorf("save transaction %s: category %s: %w", t.ID, t.CategoryID, core.ErrNotFound)
	}
	t.Category = nil
	v.data.transactions = append(v.data.transactions, t)
	return nil
}

func (v *txView) SaveTransactions(ctx context.Context, ts []core.Transaction) error {
	for _, t := range ts {
		if err := v.SaveTransaction(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (v *txView) DeleteTransaction(_ context.Context, id string) error {
	for i, t := range v.data.transactions {
		if t.ID == id {
			v.data.transactions = append(v.data.transactions[:i:i], v.data.transactions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (v *txView) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	out := make([]core.Transaction, len(v.data.transactions))
	for i, t := range v.data.transactions {
		c := v.data.categories[v.data.byID[t.CategoryID]]
		t.Category = &c
		out[i] = t
	}
	return out, nil
}

func (v *txView) RunInTx(_ context.Context, fn func(tx ledger.Store) error) error {
	return fn(v)
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
