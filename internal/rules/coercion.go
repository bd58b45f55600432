// internal/rules/coercion.go
package rules

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Type coercion for value resolution.
 *
 * Converts a raw resolved object (constant literal, input parameter, variable,
 * formula result) into the representation of its declared ValueType, so the
 * compare routines only ever see one Go type per ValueType.
 *
 * Type modes:
 *   - NUMBER: Strict - numeric kinds and numeric strings, reject booleans
 *   - STRING: Lenient - auto-format scalars, collections as "[a,b]"
 *   - BOOLEAN: Strict - bool and the literals "true"/"false"
 *   - DATE: time.Time, layout-parsed strings, numbers as unix milliseconds
 *   - COLLECTION: slices, JSON array strings, delimited or comma lists
 *
 * Nil never coerces: a present-but-null input is reported, not defaulted.
 */

// dateLayouts are tried in order when coercing strings to DATE.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Coerce converts value to the representation of vt.
// Returns an error wrapping types.ErrEvaluation for impossible coercions.
func Coerce(value any, vt ValueType) (any, error) {
	if value == nil {
		return nil, coercionError(value, vt)
	}

	switch vt {
	case ValueTypeNumber:
		return coerceNumber(value)
	case ValueTypeString:
		return coerceString(value), nil
	case ValueTypeBoolean:
		return coerceBoolean(value)
	case ValueTypeDate:
		return coerceDate(value)
	case ValueTypeCollection:
		return coerceCollection(value)
	default:
		return nil, coercionError(value, vt)
	}
}

func coercionError(value any, vt ValueType) error {
	return fmt.Errorf("%w: cannot coerce %T to %s", types.ErrEvaluation, value, vt)
}

// coerceNumber converts value to float64.
// Whitespace-only strings and booleans are rejected.
func coerceNumber(value any) (any, error) {
	if f, ok := toFloat64(value); ok {
		return f, nil
	}
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, coercionError(value, ValueTypeNumber)
		}
		return f, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, coercionError(value, ValueTypeNumber)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, coercionError(value, ValueTypeNumber)
		}
		return f, nil
	default:
		return nil, coercionError(value, ValueTypeNumber)
	}
}

// toFloat64 converts value to float64 if it's a numeric kind.
// Handles float64 from JSON unmarshaling and integer kinds from Go callers.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// coerceString formats any scalar as text.
func coerceString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case json.Number:
		return v.String()
	case []any:
		return formatDelimited(v)
	}
	if f, ok := toFloat64(value); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprintf("%v", value)
}

// coerceBoolean accepts bool and the literals "true"/"false".
// Numbers are rejected to avoid "true" vs 1 ambiguity.
func coerceBoolean(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return nil, coercionError(value, ValueTypeBoolean)
}

// coerceDate converts value to time.Time.
// Numbers are interpreted as unix milliseconds.
func coerceDate(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		return nil, coercionError(value, ValueTypeDate)
	}
	if f, ok := toFloat64(value); ok {
		return time.UnixMilli(int64(f)).UTC(), nil
	}
	return nil, coercionError(value, ValueTypeDate)
}

// coerceCollection converts slices and list strings to []any.
func coerceCollection(value any) (any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case string:
		return parseCollectionString(v), nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	}
	return nil, coercionError(value, ValueTypeCollection)
}

// parseCollectionString accepts a JSON array, a bracketed list "[a,b]" or a
// bare comma list "a,b".
func parseCollectionString(s string) []any {
	trimmed := strings.TrimSpace(s)
	var arr []any
	if strings.HasPrefix(trimmed, "[") && json.Unmarshal([]byte(trimmed), &arr) == nil {
		return arr
	}
	elems, ok := splitDelimited(trimmed)
	if !ok {
		elems = splitElements(trimmed)
	}
	out := make([]any, len(elems))
	for i, elem := range elems {
		out[i] = elem
	}
	return out
}

// splitDelimited splits a bracketed list "[a, b]" into trimmed elements.
// Returns false when s is not bracketed.
func splitDelimited(s string) ([]string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, false
	}
	return splitElements(s[1 : len(s)-1]), true
}

// splitElements splits a comma list into trimmed elements.
func splitElements(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// formatDelimited renders a collection in the bracketed list form.
func formatDelimited(items []any) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = coerceString(item)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
