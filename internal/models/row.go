// Package models contains domain types for the lab table generator.
package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Row maps a column name to a generated scalar: string, int or decimal.Decimal.
// Rows decoded from a remote processor may also carry json.Number or nil.
type Row map[string]any

// MarshalJSON writes decimals as JSON numbers with two fractional digits.
func (r Row) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r))
	for k, v := range r {
		if d, ok := v.(decimal.Decimal); ok {
			out[k] = json.Number(d.StringFixed(2))
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}

// Dataset is the full row collection produced by one generation call.
// Columns holds the key order shared by every row.
type Dataset struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Len returns the number of rows.
func (d Dataset) Len() int {
	return len(d.Rows)
}

// Empty reports whether the dataset has no rows.
func (d Dataset) Empty() bool {
	return len(d.Rows) == 0
}
