package storage

import (
	"context"
	"database/sql"
	"strings"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Category is a row of the categories table.
type Category struct {
	ID        string
	Title     string
	CreatedAt string
	UpdatedAt string
}

// Transaction is a row of the transactions table joined with its category.
type Transaction struct {
	ID                string
	Title             string
	ValueCents        int64
	Type              string
	CategoryID        string
	CreatedAt         string
	UpdatedAt         string
	CategoryTitle     string
	CategoryCreatedAt string
	CategoryUpdatedAt string
}

const getCategoryByTitle = `SELECT id, title, created_at, updated_at FROM categories WHERE title = ?`

func (q *Queries) GetCategoryByTitle(ctx context.Context, title string) (Category, error) {
	row := q.db.QueryRowContext(ctx, getCategoryByTitle, title)
	var c Category
	err := row.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const listCategoriesByTitles = `SELECT id, title, created_at, updated_at FROM categories WHERE title IN (/*TITLES*/) ORDER BY created_at, title`

func (q *Queries) ListCategoriesByTitles(ctx context.Context, titles []string) ([]Category, error) {
	if len(titles) == 0 {
		return nil, nil
	}
	query := strings.Replace(listCategoriesByTitles, "/*TITLES*/", placeholders(len(titles)), 1)
	args := make([]any, len(titles))
	for i, t := range titles {
		args[i] = t
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const insertCategory = `INSERT INTO categories (id, title, created_at, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (title) DO NOTHING`

// InsertCategory is a no-op when the title already exists.
func (q *Queries) InsertCategory(ctx context.Context, c Category) error {
	_, err := q.db.ExecContext(ctx, insertCategory, c.ID, c.Title, c.CreatedAt, c.UpdatedAt)
	return err
}

const insertTransaction = `INSERT INTO transactions (id, title, value_cents, type, category_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

type InsertTransactionParams struct {
	ID         string
	Title      string
	ValueCents int64
	Type       string
	CategoryID string
	CreatedAt  string
	UpdatedAt  string
}

func (q *Queries) InsertTransaction(ctx context.Context, arg InsertTransactionParams) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		arg.ID,
		arg.Title,
		arg.ValueCents,
		arg.Type,
		arg.CategoryID,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

// DeleteTransaction returns the number of deleted rows.
func (q *Queries) DeleteTransaction(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listTransactions = `SELECT t.id, t.title, t.value_cents, t.type, t.category_id, t.created_at, t.updated_at,
       c.title, c.created_at, c.updated_at
FROM transactions t
JOIN categories c ON c.id = t.category_id
ORDER BY t.seq ASC`

func (q *Queries) ListTransactions(ctx context.Context) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID,
			&t.Title,
			&t.ValueCents,
			&t.Type,
			&t.CategoryID,
			&t.CreatedAt,
			&t.UpdatedAt,
			&t.CategoryTitle,
			&t.CategoryCreatedAt,
			&t.CategoryUpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
