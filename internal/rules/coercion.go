// internal/rules/coercion.go
package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/duekeeper/duekeeper/internal/types"
)

/*
 * Cell value normalization.
 *
 * Dataset cells carry mixed Go types depending on which collaborator
 * produced them (YAML rulesets, SAP text ingestion, hand-built tests).
 * Normalization maps them onto the small set CEL's default adapter
 * handles natively so predicate comparison semantics stay uniform.
 *
 * Key distinction: a nil cell is sparse data and stays nil (predicate
 * comparisons against it fail per row, counted as non-match), while a
 * column missing from the dataset entirely is a hard error handled at
 * compile time. The two must not be conflated.
 */

// NormalizeValue converts a raw cell value to its CEL-friendly form.
// Integers widen to int64, unsigned to uint64, floats to float64.
// Strings, bools, time.Time and nil pass through unchanged.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return uint64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case float32:
		return float64(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	default:
		return v
	}
}

// Activation builds the evaluation input for one row: every dataset
// column is present, with nil for cells the row does not carry.
func Activation(columns []string, row types.Record) map[string]any {
	act := make(map[string]any, len(columns))
	for _, c := range columns {
		act[c] = NormalizeValue(row[c])
	}
	return act
}

// AsString renders a cell value for identity matching and report output.
// Dates use the day-first convention of the source exports.
func AsString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format("02.01.2006")
	case json.Number:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
