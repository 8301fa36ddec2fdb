package table

import (
	"context"

	"github.com/lab-automation/backend/internal/models"
)

// Query selects a window of filtered, sorted rows. A Limit of zero or less
// returns every row from Offset on.
type Query struct {
	Filters map[string]string
	Sort    Sort
	Offset  int
	Limit   int
}

// Source answers view queries over one dataset.
type Source interface {
	Columns() []string
	// Count returns the number of rows that pass q.Filters.
	Count(ctx context.Context, q Query) (int, error)
	// Query returns the requested window and the filtered total.
	Query(ctx context.Context, q Query) ([]models.Row, int, error)
	Close() error
}

// MemorySource runs the pipeline over an in-memory dataset.
type MemorySource struct {
	ds models.Dataset
}

// NewMemorySource wraps ds. The rows are not copied and must not be mutated.
func NewMemorySource(ds models.Dataset) *MemorySource {
	return &MemorySource{ds: ds}
}

func (m *MemorySource) Columns() []string {
	return m.ds.Columns
}

func (m *MemorySource) Count(ctx context.Context, q Query) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(Filter(m.ds.Rows, q.Filters)), nil
}

func (m *MemorySource) Query(ctx context.Context, q Query) ([]models.Row, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	rows := SortRows(Filter(m.ds.Rows, q.Filters), q.Sort)
	total := len(rows)

	start := min(max(q.Offset, 0), total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}
	return rows[start:end], total, nil
}

func (m *MemorySource) Close() error {
	return nil
}
