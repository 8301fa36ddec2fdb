package table

import (
	"context"
	"slices"

	"github.com/lab-automation/backend/internal/models"
)

// Page is one rendered page of the view.
type Page struct {
	Columns        []string          `json:"columns" msgpack:"columns"`
	Rows           [][]string        `json:"rows" msgpack:"rows"`
	Page           int               `json:"page" msgpack:"page"`
	TotalPages     int               `json:"totalPages" msgpack:"totalPages"`
	TotalRows      int               `json:"totalRows" msgpack:"totalRows"`
	PageSize       int               `json:"pageSize" msgpack:"pageSize"`
	ShowPagination bool              `json:"showPagination" msgpack:"showPagination"`
	Empty          bool              `json:"empty" msgpack:"empty"`
	Sort           Sort              `json:"sort" msgpack:"sort"`
	Filters        map[string]string `json:"filters" msgpack:"filters"`
}

// View renders a Source according to a Config.
type View struct {
	cfg    Config
	source Source
}

// NewView creates a view over source.
func NewView(source Source, cfg Config) *View {
	return &View{cfg: cfg, source: source}
}

// Config returns the view configuration.
func (v *View) Config() Config {
	return v.cfg
}

// Effective drops the parts of s that the configuration disables or that
// name unknown columns.
func (v *View) Effective(s State) State {
	columns := v.source.Columns()
	out := NewState()
	out.Page = s.Page

	if v.cfg.EnableFiltering {
		for col, val := range s.Filters {
			if slices.Contains(columns, col) {
				out.Filters[col] = val
			}
		}
	}
	if v.cfg.EnableSorting && s.Sort.Active() && slices.Contains(columns, s.Sort.Key) {
		out.Sort = s.Sort
		if out.Sort.Direction != Desc {
			out.Sort.Direction = Asc
		}
	}
	return out
}

// Render computes the visible page for s. The returned state carries the
// clamped page number.
func (v *View) Render(ctx context.Context, s State) (Page, State, error) {
	eff := v.Effective(s)
	pageSize := v.cfg.pageSize()

	var (
		rows  []models.Row
		total int
		err   error
	)
	if v.cfg.EnablePagination {
		total, err = v.source.Count(ctx, Query{Filters: eff.Filters})
		if err != nil {
			return Page{}, s, err
		}
		totalPages := TotalPages(total, pageSize)
		eff.Page = ClampPage(eff.Page, totalPages)
		rows, total, err = v.source.Query(ctx, Query{
			Filters: eff.Filters,
			Sort:    eff.Sort,
			Offset:  Offset(eff.Page, pageSize),
			Limit:   pageSize,
		})
	} else {
		eff.Page = 1
		rows, total, err = v.source.Query(ctx, Query{Filters: eff.Filters, Sort: eff.Sort})
	}
	if err != nil {
		return Page{}, s, err
	}

	totalPages := 1
	if v.cfg.EnablePagination {
		totalPages = TotalPages(total, pageSize)
	} else {
		pageSize = total
	}

	columns := v.source.Columns()
	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = RenderRow(row, columns)
	}

	next := s
	next.Page = eff.Page

	return Page{
		Columns:        columns,
		Rows:           cells,
		Page:           eff.Page,
		TotalPages:     totalPages,
		TotalRows:      total,
		PageSize:       pageSize,
		ShowPagination: v.cfg.EnablePagination && totalPages > 1,
		Empty:          total == 0,
		Sort:           eff.Sort,
		Filters:        eff.Filters,
	}, next, nil
}

// RenderRow converts row to display strings in column order.
func RenderRow(row models.Row, columns []string) []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = Display(row[col])
	}
	return out
}
