package scoring

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const timeDisplayLayout = "2006-01-02 15:04:05"

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", timeDisplayLayout, "2006-01-02"}

// normalize folds numeric kinds into float64 so that rule values decoded from
// JSON or YAML compare against typed lead fields. ok is false for nil.
func normalize(v interface{}) (interface{}, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case string:
		return x, true
	case bool:
		return x, true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f, true
		}
		return x.String(), true
	case decimal.Decimal:
		return x.InexactFloat64(), true
	case decimal.NullDecimal:
		if !x.Valid {
			return nil, false
		}
		return x.Decimal.InexactFloat64(), true
	case time.Time:
		return x, true
	case *time.Time:
		if x == nil {
			return nil, false
		}
		return *x, true
	default:
		return x, true
	}
}

// equalValues is exact and type-sensitive: a string never equals a number.
func equalValues(actual, expected interface{}) bool {
	switch a := actual.(type) {
	case string:
		e, ok := expected.(string)
		return ok && a == e
	case float64:
		e, ok := expected.(float64)
		return ok && a == e
	case bool:
		e, ok := expected.(bool)
		return ok && a == e
	case time.Time:
		e, ok := expected.(time.Time)
		return ok && a.Equal(e)
	default:
		return reflect.DeepEqual(actual, expected)
	}
}

// containsValue tests whether the string form of expected occurs in the
// string form of actual. Case-sensitive.
func containsValue(actual, expected interface{}) bool {
	return strings.Contains(stringForm(actual), stringForm(expected))
}

// compareValues returns -1, 0 or 1 and ok=false when the pair is not
// ordered (anything other than number/number or time/time-ish).
func compareValues(actual, expected interface{}) (int, bool) {
	switch a := actual.(type) {
	case float64:
		e, ok := expected.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case a < e:
			return -1, true
		case a > e:
			return 1, true
		default:
			return 0, true
		}
	case time.Time:
		var e time.Time
		switch x := expected.(type) {
		case time.Time:
			e = x
		case string:
			parsed, ok := parseDate(x)
			if !ok {
				return 0, false
			}
			e = parsed
		default:
			return 0, false
		}
		return a.Compare(e), true
	default:
		return 0, false
	}
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func stringForm(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(timeDisplayLayout)
	default:
		return fmt.Sprintf("%v", x)
	}
}
