package table

import (
	"context"
	"testing"

	"github.com/lab-automation/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ageDataset(n int) models.Dataset {
	return models.Dataset{Columns: []string{"name", "age"}, Rows: ageRows(n)}
}

func TestState_Transitions(t *testing.T) {
	s := NewState().WithPage(3)

	f := s.WithFilter("age", "5")
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, "5", f.Filters["age"])
	assert.Empty(t, s.Filters, "original state must not change")

	e := f.WithPage(2).WithFilter("age", "")
	assert.Equal(t, 1, e.Page)
	assert.Contains(t, e.Filters, "age")

	c := e.WithPage(2).WithoutFilter("age")
	assert.Equal(t, 1, c.Page)
	assert.NotContains(t, c.Filters, "age")
}

func TestState_ToggleSort(t *testing.T) {
	s := NewState().ToggleSort("age")
	assert.Equal(t, Sort{Key: "age", Direction: Asc}, s.Sort)

	s = s.ToggleSort("age")
	assert.Equal(t, Sort{Key: "age", Direction: Desc}, s.Sort)

	s = s.ToggleSort("age")
	assert.Equal(t, Sort{Key: "age", Direction: Asc}, s.Sort)

	s = s.ToggleSort("age").ToggleSort("name")
	assert.Equal(t, Sort{Key: "name", Direction: Asc}, s.Sort)
}

func TestView_ClampsPage(t *testing.T) {
	v := NewView(NewMemorySource(ageDataset(120)), DefaultConfig())

	page, next, err := v.Render(context.Background(), NewState().WithPage(5))
	require.NoError(t, err)

	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 3, next.Page)
	assert.Len(t, page.Rows, 20)
	assert.True(t, page.ShowPagination)
	assert.Equal(t, "100", page.Rows[0][1])

	page, _, err = v.Render(context.Background(), NewState().WithPage(0))
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
}

func TestView_FilterShrinksPages(t *testing.T) {
	v := NewView(NewMemorySource(ageDataset(120)), DefaultConfig())

	s := NewState().WithPage(3)
	s.Filters = map[string]string{"age": "1"}
	page, next, err := v.Render(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, 1, next.Page)
	assert.False(t, page.ShowPagination)
	for _, row := range page.Rows {
		assert.Contains(t, row[1], "1")
	}
}

func TestView_SortThenPaginate(t *testing.T) {
	v := NewView(NewMemorySource(ageDataset(120)), DefaultConfig())

	s := NewState().ToggleSort("age").ToggleSort("age")
	page, _, err := v.Render(context.Background(), s)
	require.NoError(t, err)

	require.Len(t, page.Rows, 50)
	assert.Equal(t, "119", page.Rows[0][1])
	assert.Equal(t, "70", page.Rows[49][1])
	assert.Equal(t, Sort{Key: "age", Direction: Desc}, page.Sort)
}

func TestView_EmptyResult(t *testing.T) {
	v := NewView(NewMemorySource(ageDataset(10)), DefaultConfig())

	page, next, err := v.Render(context.Background(), NewState().WithFilter("name", "zzz"))
	require.NoError(t, err)

	assert.True(t, page.Empty)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, 1, next.Page)
	assert.Empty(t, page.Rows)
}

func TestView_DisabledStages(t *testing.T) {
	cfg := Config{PageSize: 50}
	v := NewView(NewMemorySource(ageDataset(120)), cfg)

	s := NewState().WithFilter("age", "5").ToggleSort("age").ToggleSort("age").WithPage(2)
	page, next, err := v.Render(context.Background(), s)
	require.NoError(t, err)

	assert.Len(t, page.Rows, 120)
	assert.Equal(t, "0", page.Rows[0][1], "original order expected")
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, 1, next.Page)
	assert.False(t, page.ShowPagination)
	assert.Empty(t, page.Filters)
	assert.False(t, page.Sort.Active())
}

func TestView_UnknownColumnsIgnored(t *testing.T) {
	v := NewView(NewMemorySource(ageDataset(30)), DefaultConfig())

	s := NewState().WithFilter("missing", "x").ToggleSort("missing")
	page, _, err := v.Render(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, 30, page.TotalRows)
	assert.False(t, page.Sort.Active())
}

func TestView_PlaceholderCells(t *testing.T) {
	ds := models.Dataset{Columns: []string{"a", "b"}, Rows: []models.Row{{"a": "x"}}}
	v := NewView(NewMemorySource(ds), DefaultConfig())

	page, _, err := v.Render(context.Background(), NewState())
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"x", "-"}}, page.Rows)
}

func TestMemorySource_CancelledContext(t *testing.T) {
	src := NewMemorySource(ageDataset(5))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := src.Query(ctx, Query{})
	assert.ErrorIs(t, err, context.Canceled)
}
