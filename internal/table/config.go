// Package table implements the filter, sort, paginate and render pipeline
// over a generated dataset.
package table

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 50

// Config toggles the view stages.
type Config struct {
	PageSize         int  `json:"pageSize"`
	EnablePagination bool `json:"enablePagination"`
	EnableSorting    bool `json:"enableSorting"`
	EnableFiltering  bool `json:"enableFiltering"`
}

// DefaultConfig returns the standard view configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:         DefaultPageSize,
		EnablePagination: true,
		EnableSorting:    true,
		EnableFiltering:  true,
	}
}

func (c Config) pageSize() int {
	if c.PageSize < 1 {
		return DefaultPageSize
	}
	return c.PageSize
}
