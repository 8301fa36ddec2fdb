package table

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/lab-automation/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ageRows(n int) []models.Row {
	rows := make([]models.Row, n)
	for i := range rows {
		rows[i] = models.Row{"name": fmt.Sprintf("row %d", i), "age": i}
	}
	return rows
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "-", Display(nil))
	assert.Equal(t, "abc", Display("abc"))
	assert.Equal(t, "42", Display(42))
	assert.Equal(t, "3.10", Display(decimal.RequireFromString("3.1")))
	assert.Equal(t, "2.5", Display(2.5))
	assert.Equal(t, "7.25", Display(json.Number("7.25")))
	assert.Equal(t, "true", Display(true))
}

func TestFilter_AgeContainsFive(t *testing.T) {
	rows := ageRows(80)

	got := Filter(rows, map[string]string{"age": "5"})

	for _, row := range got {
		assert.Contains(t, strconv.Itoa(row["age"].(int)), "5")
	}
	want := 0
	for i := 0; i < 80; i++ {
		if strings.Contains(strconv.Itoa(i), "5") {
			want++
		}
	}
	assert.Len(t, got, want)
	assert.Equal(t, 5, got[0]["age"])
}

func TestFilter_CaseInsensitiveConjunctive(t *testing.T) {
	rows := []models.Row{
		{"name": "John Smith", "batch": "BTH-0001"},
		{"name": "john doe", "batch": "LOT-0002"},
		{"name": "Sarah Johnson", "batch": "BTH-0003"},
	}

	got := Filter(rows, map[string]string{"name": "JOHN", "batch": "bth"})

	require.Len(t, got, 2)
	assert.Equal(t, "John Smith", got[0]["name"])
	assert.Equal(t, "Sarah Johnson", got[1]["name"])
}

func TestFilter_BlankValuesInactive(t *testing.T) {
	rows := ageRows(10)

	assert.Len(t, Filter(rows, map[string]string{"age": ""}), 10)
	assert.Len(t, Filter(rows, map[string]string{"age": "   "}), 10)
	assert.Len(t, Filter(rows, nil), 10)
}

func TestFilter_UntrimmedValueMatches(t *testing.T) {
	rows := []models.Row{{"name": "Sample x 1"}, {"name": "Samplex"}}

	got := Filter(rows, map[string]string{"name": "sample "})

	require.Len(t, got, 1)
	assert.Equal(t, "Sample x 1", got[0]["name"])
}

func TestFilter_NilMatchesPlaceholder(t *testing.T) {
	rows := []models.Row{{"a": nil}, {"a": "x"}}
	assert.Len(t, Filter(rows, map[string]string{"a": "-"}), 1)
}

func TestFilter_Idempotent(t *testing.T) {
	rows := ageRows(100)
	filters := map[string]string{"age": "1", "name": "row"}

	once := Filter(rows, filters)
	twice := Filter(once, filters)

	assert.Equal(t, once, twice)
}

func TestCompare(t *testing.T) {
	assert.Negative(t, Compare(2, 10))
	assert.Negative(t, Compare(decimal.RequireFromString("9.99"), 10))
	assert.Positive(t, Compare(json.Number("12.5"), 3))
	assert.Zero(t, Compare(3, decimal.NewFromInt(3)))
	assert.Positive(t, Compare("2", "10"), "strings compare lexicographically")
	assert.Negative(t, Compare(nil, 0))
	assert.Positive(t, Compare("a", nil))
	assert.Zero(t, Compare(nil, nil))
	assert.Negative(t, Compare(10, "9x"), "mixed types compare as text")
}

func TestSortRows_Stable(t *testing.T) {
	rows := []models.Row{
		{"k": 2, "seq": 0},
		{"k": 1, "seq": 1},
		{"k": 2, "seq": 2},
		{"k": 1, "seq": 3},
		{"k": 2, "seq": 4},
	}

	asc := SortRows(rows, Sort{Key: "k", Direction: Asc})
	var seqs []int
	for _, r := range asc {
		seqs = append(seqs, r["seq"].(int))
	}
	assert.Equal(t, []int{1, 3, 0, 2, 4}, seqs)

	desc := SortRows(rows, Sort{Key: "k", Direction: Desc})
	seqs = seqs[:0]
	for _, r := range desc {
		seqs = append(seqs, r["seq"].(int))
	}
	assert.Equal(t, []int{0, 2, 4, 1, 3}, seqs)

	assert.Equal(t, 0, rows[0]["seq"], "input must not be reordered")
}

func TestSortRows_Inactive(t *testing.T) {
	rows := ageRows(5)
	assert.Equal(t, rows, SortRows(rows, Sort{}))
}

func TestPaginate_DisjointAndExhaustive(t *testing.T) {
	rows := ageRows(123)
	pageSize := 50
	pages := TotalPages(len(rows), pageSize)
	require.Equal(t, 3, pages)

	var all []models.Row
	for p := 1; p <= pages; p++ {
		all = append(all, Paginate(rows, p, pageSize)...)
	}
	assert.Equal(t, rows, all)
	assert.Empty(t, Paginate(rows, 4, pageSize))
}

func TestTotalPagesAndClamp(t *testing.T) {
	assert.Equal(t, 1, TotalPages(0, 50))
	assert.Equal(t, 1, TotalPages(50, 50))
	assert.Equal(t, 2, TotalPages(51, 50))
	assert.Equal(t, 3, TotalPages(120, 50))

	assert.Equal(t, 3, ClampPage(5, 3))
	assert.Equal(t, 1, ClampPage(0, 3))
	assert.Equal(t, 1, ClampPage(-4, 3))
	assert.Equal(t, 2, ClampPage(2, 3))
}
