// internal/rules/valuetype.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Value type table.
 *
 * Each ValueType owns a fixed set of legal operators. Leaf validation checks
 * the left value's type against this table on every evaluation, so a pair
 * that is not listed here never reaches the compare routines.
 *
 * Resolved representation per type:
 *   - NUMBER: float64
 *   - STRING: string
 *   - BOOLEAN: bool
 *   - DATE: time.Time
 *   - COLLECTION: []any
 */

// ValueType is the declared semantic type of a Value.
type ValueType int

const (
	ValueTypeUnspecified ValueType = iota
	ValueTypeNumber
	ValueTypeString
	ValueTypeBoolean
	ValueTypeDate
	ValueTypeCollection
)

var valueTypeNames = map[ValueType]string{
	ValueTypeNumber:     "NUMBER",
	ValueTypeString:     "STRING",
	ValueTypeBoolean:    "BOOLEAN",
	ValueTypeDate:       "DATE",
	ValueTypeCollection: "COLLECTION",
}

// operatorTable lists the operators each value type legally supports.
var operatorTable = map[ValueType][]Operator{
	ValueTypeNumber:     {OpEq, OpNe, OpGt, OpLt, OpGte, OpLte},
	ValueTypeString:     {OpEq, OpNe, OpContain, OpNotContain, OpIn, OpNotIn, OpStartsWith, OpEndsWith},
	ValueTypeBoolean:    {OpEq, OpNe},
	ValueTypeDate:       {OpEq, OpNe, OpGt, OpLt, OpGte, OpLte},
	ValueTypeCollection: {OpContain, OpNotContain, OpIn, OpNotIn},
}

// String returns the persisted name of the value type.
func (vt ValueType) String() string {
	if name, ok := valueTypeNames[vt]; ok {
		return name
	}
	return "UNSPECIFIED"
}

// Operators returns the legal operators for the value type.
// Unknown types return nil.
func (vt ValueType) Operators() []Operator {
	ops := operatorTable[vt]
	out := make([]Operator, len(ops))
	copy(out, ops)
	return out
}

// Supports reports whether op is legal for the value type.
func (vt ValueType) Supports(op Operator) bool {
	for _, candidate := range operatorTable[vt] {
		if candidate == op {
			return true
		}
	}
	return false
}

// ParseValueType converts a persisted name (case-insensitive) to a ValueType.
func ParseValueType(s string) (ValueType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for vt, n := range valueTypeNames {
		if n == name {
			return vt, nil
		}
	}
	return ValueTypeUnspecified, fmt.Errorf("%w: unknown value type %q", types.ErrInvalidRecord, s)
}
