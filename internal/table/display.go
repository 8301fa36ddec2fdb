package table

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Placeholder is shown for absent values.
const Placeholder = "-"

// Display converts a cell value to its on-screen text. Filtering matches
// against this text.
func Display(v any) string {
	switch x := v.(type) {
	case nil:
		return Placeholder
	case string:
		return x
	case decimal.Decimal:
		return x.StringFixed(2)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Numeric returns v as a decimal when it is a number.
func Numeric(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case float64:
		return decimal.NewFromFloat(x), true
	case decimal.Decimal:
		return x, true
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}
