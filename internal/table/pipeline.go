package table

import (
	"slices"
	"strings"

	"github.com/lab-automation/backend/internal/models"
)

// ActiveFilters returns the filters whose value is non-empty after trimming,
// lowercased for matching. The untrimmed value is used for the match itself.
func ActiveFilters(filters map[string]string) map[string]string {
	active := make(map[string]string, len(filters))
	for col, v := range filters {
		if strings.TrimSpace(v) == "" {
			continue
		}
		active[col] = strings.ToLower(v)
	}
	return active
}

// Matches reports whether row satisfies every active filter.
func Matches(row models.Row, active map[string]string) bool {
	for col, needle := range active {
		if !strings.Contains(strings.ToLower(Display(row[col])), needle) {
			return false
		}
	}
	return true
}

// Filter keeps rows whose displayed value contains every active filter
// value, case-insensitively. Order is preserved.
func Filter(rows []models.Row, filters map[string]string) []models.Row {
	active := ActiveFilters(filters)
	if len(active) == 0 {
		return rows
	}
	out := make([]models.Row, 0, len(rows))
	for _, row := range rows {
		if Matches(row, active) {
			out = append(out, row)
		}
	}
	return out
}

// Compare orders two cell values. Absent values sort first. Two numbers
// compare numerically; anything else compares by displayed text.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if x, ok := Numeric(a); ok {
		if y, ok := Numeric(b); ok {
			return x.Cmp(y)
		}
	}
	return strings.Compare(Display(a), Display(b))
}

// SortRows returns a stably sorted copy of rows. An inactive sort returns
// rows unchanged.
func SortRows(rows []models.Row, s Sort) []models.Row {
	if !s.Active() {
		return rows
	}
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b models.Row) int {
		c := Compare(a[s.Key], b[s.Key])
		if s.Direction == Desc {
			return -c
		}
		return c
	})
	return out
}

// TotalPages returns max(1, ceil(total/pageSize)).
func TotalPages(total, pageSize int) int {
	if pageSize < 1 || total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// ClampPage bounds page to [1, totalPages].
func ClampPage(page, totalPages int) int {
	return max(1, min(page, totalPages))
}

// Offset returns the first row index of a 1-based page.
func Offset(page, pageSize int) int {
	return (page - 1) * pageSize
}

// Paginate returns the rows of the given 1-based page.
func Paginate(rows []models.Row, page, pageSize int) []models.Row {
	start := Offset(page, pageSize)
	if start < 0 || start >= len(rows) {
		return nil
	}
	end := min(start+pageSize, len(rows))
	return rows[start:end]
}
