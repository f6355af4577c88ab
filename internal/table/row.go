package table

import (
	"fmt"
	"strconv"
	"time"
)

// TimeLayout is how timestamps are rendered in exported cells.
const TimeLayout = "2006-01-02 15:04:05"

// Row maps column keys to cell values. Missing keys are empty cells.
type Row map[string]any

// Merge copies every value of o into r, overwriting existing keys.
func (r Row) Merge(o Row) {
	for k, v := range o {
		r[k] = v
	}
}

// Cell returns the formatted value for key, or "" when absent.
func (r Row) Cell(key string) string {
	v, ok := r[key]
	if !ok {
		return ""
	}
	return Format(v)
}

// Format renders a cell value. A selected choice (true) renders as "1" and
// false as an empty cell, matching the historical exports.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case *string:
		if x == nil {
			return ""
		}
		return *x
	case bool:
		if x {
			return "1"
		}
		return ""
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format(TimeLayout)
	case *time.Time:
		if x == nil || x.IsZero() {
			return ""
		}
		return x.Format(TimeLayout)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
