// internal/rules/operators.go
package rules

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Operator comparison logic.
 *
 * One compare routine per ValueType, selected by the LEFT value's declared
 * type (never the runtime Go type). Each routine decides operator semantics
 * internally. Values reach these routines already coerced (coercion.go), so
 * a routine only type-asserts to its own representation.
 *
 * Routines:
 *   - NUMBER: float64 ordering and equality
 *   - STRING: equality, prefix/suffix, substring or element containment
 *   - BOOLEAN: equality
 *   - DATE: chronological ordering
 *   - COLLECTION: membership and subset tests
 *
 * Unsupported (type, operator) pairs are rejected by leaf validation before
 * dispatch; a routine receiving one returns false.
 */

// Operator enumerates comparison symbols.
type Operator int

const (
	OpUnspecified Operator = iota
	OpEq
	OpNe
	OpGt
	OpLt
	OpGte
	OpLte
	OpContain
	OpNotContain
	OpIn
	OpNotIn
	OpStartsWith
	OpEndsWith
)

var operatorNames = map[Operator]string{
	OpEq:         "EQ",
	OpNe:         "NE",
	OpGt:         "GT",
	OpLt:         "LT",
	OpGte:        "GTE",
	OpLte:        "LTE",
	OpContain:    "CONTAIN",
	OpNotContain: "NOT_CONTAIN",
	OpIn:         "IN",
	OpNotIn:      "NOT_IN",
	OpStartsWith: "STARTS_WITH",
	OpEndsWith:   "ENDS_WITH",
}

// operatorAliases accepts symbolic spellings on parse.
var operatorAliases = map[string]Operator{
	"==": OpEq,
	"!=": OpNe,
	">":  OpGt,
	"<":  OpLt,
	">=": OpGte,
	"<=": OpLte,
	"GE": OpGte,
	"LE": OpLte,
}

// String returns the persisted name of the operator.
func (op Operator) String() string {
	if name, ok := operatorNames[op]; ok {
		return name
	}
	return "UNSPECIFIED"
}

// ParseOperator converts a persisted symbol to an Operator.
// Empty input yields OpUnspecified without error (leaf validation reports it).
func ParseOperator(s string) (Operator, error) {
	symbol := strings.ToUpper(strings.TrimSpace(s))
	if symbol == "" {
		return OpUnspecified, nil
	}
	if op, ok := operatorAliases[symbol]; ok {
		return op, nil
	}
	for op, name := range operatorNames {
		if name == symbol {
			return op, nil
		}
	}
	return OpUnspecified, fmt.Errorf("%w: unknown operator %q", types.ErrInvalidRecord, s)
}

// compareFunc compares resolved operands for one value type.
type compareFunc func(left any, op Operator, right any) bool

// comparators is the compare strategy registry keyed by left value type.
var comparators = map[ValueType]compareFunc{
	ValueTypeNumber:     compareNumber,
	ValueTypeString:     compareString,
	ValueTypeBoolean:    compareBoolean,
	ValueTypeDate:       compareDate,
	ValueTypeCollection: compareCollection,
}

// Compare dispatches to the compare routine owned by leftType.
// Operands must already be coerced to their declared types.
func Compare(leftType ValueType, left any, op Operator, right any) (bool, error) {
	fn, ok := comparators[leftType]
	if !ok {
		return false, fmt.Errorf("%w: no compare routine for %s", types.ErrOperatorMismatch, leftType)
	}
	return fn(left, op, right), nil
}

// compareNumber performs float64 ordering.
// Returns false for non-numeric operands.
func compareNumber(left any, op Operator, right any) bool {
	l, ok1 := left.(float64)
	r, ok2 := right.(float64)
	if !ok1 || !ok2 {
		return false
	}
	switch op {
	case OpEq:
		return l == r
	case OpNe:
		return l != r
	case OpGt:
		return l > r
	case OpLt:
		return l < r
	case OpGte:
		return l >= r
	case OpLte:
		return l <= r
	default:
		return false
	}
}

// compareString applies string operators.
// CONTAIN on a delimited left operand ("[a,b,c]") tests the elements,
// otherwise it is a plain substring test.
func compareString(left any, op Operator, right any) bool {
	l, ok1 := left.(string)
	r, ok2 := right.(string)
	if !ok1 || !ok2 {
		return false
	}
	switch op {
	case OpEq:
		return l == r
	case OpNe:
		return l != r
	case OpStartsWith:
		return strings.HasPrefix(l, r)
	case OpEndsWith:
		return strings.HasSuffix(l, r)
	case OpContain:
		return stringContains(l, r)
	case OpNotContain:
		return !stringContains(l, r)
	case OpIn:
		return stringIn(l, r)
	case OpNotIn:
		return !stringIn(l, r)
	default:
		return false
	}
}

// stringContains checks element-wise containment for delimited operands,
// substring containment otherwise.
func stringContains(s, sub string) bool {
	if elems, ok := splitDelimited(s); ok {
		for _, elem := range elems {
			if strings.Contains(elem, sub) {
				return true
			}
		}
		return false
	}
	return strings.Contains(s, sub)
}

// stringIn checks whether s equals one element of the delimited list.
// An undelimited list is split on commas.
func stringIn(s, list string) bool {
	elems, ok := splitDelimited(list)
	if !ok {
		elems = splitElements(list)
	}
	for _, elem := range elems {
		if elem == s {
			return true
		}
	}
	return false
}

// compareBoolean applies equality to booleans.
func compareBoolean(left any, op Operator, right any) bool {
	l, ok1 := left.(bool)
	r, ok2 := right.(bool)
	if !ok1 || !ok2 {
		return false
	}
	switch op {
	case OpEq:
		return l == r
	case OpNe:
		return l != r
	default:
		return false
	}
}

// compareDate applies chronological ordering.
func compareDate(left any, op Operator, right any) bool {
	l, ok1 := left.(time.Time)
	r, ok2 := right.(time.Time)
	if !ok1 || !ok2 {
		return false
	}
	switch op {
	case OpEq:
		return l.Equal(r)
	case OpNe:
		return !l.Equal(r)
	case OpGt:
		return l.After(r)
	case OpLt:
		return l.Before(r)
	case OpGte:
		return !l.Before(r)
	case OpLte:
		return !l.After(r)
	default:
		return false
	}
}

// compareCollection applies membership operators to a collection left operand.
// The right operand may be a scalar (single element) or a collection.
func compareCollection(left any, op Operator, right any) bool {
	l, ok := left.([]any)
	if !ok {
		return false
	}
	switch op {
	case OpContain:
		return collectionContains(l, right)
	case OpNotContain:
		return !collectionContains(l, right)
	case OpIn:
		return collectionIn(l, right)
	case OpNotIn:
		return !collectionIn(l, right)
	default:
		return false
	}
}

// collectionContains reports whether every element of right is in set.
// A scalar right operand is treated as a single element.
func collectionContains(set []any, right any) bool {
	items, ok := right.([]any)
	if !ok {
		return memberOf(right, set)
	}
	for _, item := range items {
		if !memberOf(item, set) {
			return false
		}
	}
	return true
}

// collectionIn reports whether every element of set is in right.
// A string right operand is split like a STRING IN list; any other scalar
// is a one-element collection.
func collectionIn(set []any, right any) bool {
	var items []any
	switch r := right.(type) {
	case []any:
		items = r
	case string:
		elems, ok := splitDelimited(r)
		if !ok {
			elems = splitElements(r)
		}
		items = make([]any, len(elems))
		for i, elem := range elems {
			items[i] = elem
		}
	default:
		items = []any{right}
	}
	for _, elem := range set {
		if !memberOf(elem, items) {
			return false
		}
	}
	return true
}

// memberOf checks if value exists in set using equality semantics.
func memberOf(value any, set []any) bool {
	for _, elem := range set {
		if elementsEqual(value, elem) {
			return true
		}
	}
	return false
}

// elementsEqual compares collection elements with numeric tolerance.
// Handles float64/int/int64 mixing and numeric strings from delimited lists.
func elementsEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
	}
	if reflect.TypeOf(a) == reflect.TypeOf(b) && reflect.TypeOf(a).Comparable() {
		return a == b
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// asNumbers attempts to convert both values to float64 for numeric comparison.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}
