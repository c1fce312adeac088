// Package importer reads transaction rows from delimited files.
//
// Files carry a header row followed by one transaction per line with the
// columns title, type, value, category. Rows are produced one at a time so a
// file is consumed in a single sequential pass.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gofinances/internal/core"
)

const columns = 4

// Row is a parsed and validated line of an import file.
type Row struct {
	Line     int
	Title    string
	Type     core.TransactionType
	Value    core.Money
	Category string
}

// NewTransaction returns the creation input described by the row.
func (r Row) NewTransaction() core.NewTransaction {
	return core.NewTransaction{
		Title:    r.Title,
		Value:    r.Value,
		Type:     r.Type,
		Category: r.Category,
	}
}

type Reader struct {
	r       *csv.Reader
	started bool
}

// NewReader returns a Reader over CSV data. The first record is treated as a
// header and skipped.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return &Reader{r: cr}
}

// Next returns the next data row, or io.EOF once the input is exhausted.
// Invalid rows are reported as *core.RowError.
func (r *Reader) Next() (Row, error) {
	if !r.started {
		r.started = true
		if _, err := r.r.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return Row{}, io.EOF
			}
			return Row{}, fmt.Errorf("read header: %w", err)
		}
	}

	for {
		rec, err := r.r.Read()
		if errors.Is(err, io.EOF) {
			return Row{}, io.EOF
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return Row{}, &core.RowError{Line: parseErr.Line, Err: parseErr.Err}
			}
			return Row{}, fmt.Errorf("read row: %w", err)
		}
		if blank(rec) {
			continue
		}
		line, _ := r.r.FieldPos(0)
		return parseRecord(line, rec)
	}
}

// ReadAll drains the reader.
func (r *Reader) ReadAll() ([]Row, error) {
	var rows []Row
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

// ReadFile parses every row of the file at path.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return NewReader(f).ReadAll()
}

func parseRecord(line int, rec []string) (Row, error) {
	if len(rec) != columns {
		return Row{}, &core.RowError{
			Line: line,
			Err:  fmt.Errorf("expected %d columns, got %d", columns, len(rec)),
		}
	}

	title := strings.TrimSpace(rec[0])
	typ, err := core.ParseTransactionType(rec[1])
	if err != nil {
		return Row{}, &core.RowError{Line: line, Err: err}
	}
	value, err := core.ParseAmount(rec[2])
	if err != nil {
		return Row{}, &core.RowError{Line: line, Err: err}
	}
	category := strings.TrimSpace(rec[3])

	row := Row{
		Line:     line,
		Title:    title,
		Type:     typ,
		Value:    value,
		Category: category,
	}
	if err := row.NewTransaction().Validate(); err != nil {
		return Row{}, &core.RowError{Line: line, Err: err}
	}
	return row, nil
}

func blank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
