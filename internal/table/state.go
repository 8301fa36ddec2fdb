package table

import "maps"

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort names the active sort column. An empty Key means unsorted.
type Sort struct {
	Key       string    `json:"key,omitempty" msgpack:"key,omitempty"`
	Direction Direction `json:"direction,omitempty" msgpack:"direction,omitempty"`
}

// Active reports whether a sort column is set.
func (s Sort) Active() bool {
	return s.Key != ""
}

// State is the per-view filter, sort and page selection. Page is 1-based.
// State values are treated as immutable; the With* methods return copies.
type State struct {
	Filters map[string]string `json:"filters"`
	Sort    Sort              `json:"sort"`
	Page    int               `json:"page"`
}

// NewState returns an unfiltered, unsorted state on page 1.
func NewState() State {
	return State{Filters: map[string]string{}, Page: 1}
}

// WithFilter sets the filter text for column and returns to page 1.
// An empty value is kept and treated as inactive.
func (s State) WithFilter(column, value string) State {
	next := s.clone()
	next.Filters[column] = value
	next.Page = 1
	return next
}

// WithoutFilter removes the filter for column and returns to page 1.
func (s State) WithoutFilter(column string) State {
	next := s.clone()
	delete(next.Filters, column)
	next.Page = 1
	return next
}

// ToggleSort flips the direction when column is already sorted ascending,
// and otherwise sorts column ascending.
func (s State) ToggleSort(column string) State {
	next := s.clone()
	if s.Sort.Key == column && s.Sort.Direction == Asc {
		next.Sort = Sort{Key: column, Direction: Desc}
	} else {
		next.Sort = Sort{Key: column, Direction: Asc}
	}
	return next
}

// WithPage moves to page p. The value is clamped when rendering.
func (s State) WithPage(p int) State {
	next := s.clone()
	next.Page = p
	return next
}

func (s State) clone() State {
	next := s
	next.Filters = make(map[string]string, len(s.Filters))
	maps.Copy(next.Filters, s.Filters)
	return next
}
