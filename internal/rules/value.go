// internal/rules/value.go
package rules

import (
	"fmt"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Value model.
 *
 * A Value is a typed, lazily resolved operand. Four variants:
 *   - Constant: inline literal
 *   - Parameter: name looked up in the per-call Input
 *   - Variable: name looked up in engine-wide Config
 *   - Formula: CEL expression over #placeholders bound from the Input
 *
 * Value is a sealed interface (unexported marker method); Resolve switches
 * over the variants exhaustively. Every resolved object is coerced to the
 * declared ValueType, so callers never see a representation inconsistent
 * with Type().
 */

// ValueKind tags the Value variant. Numbering matches the stored kind codes.
type ValueKind int

const (
	KindUnset     ValueKind = types.ValueKindUnset
	KindParameter ValueKind = types.ValueKindParameter
	KindVariable  ValueKind = types.ValueKindVariable
	KindConstant  ValueKind = types.ValueKindConstant
	KindFormula   ValueKind = types.ValueKindFormula
)

func (k ValueKind) String() string {
	switch k {
	case KindParameter:
		return "PARAMETER"
	case KindVariable:
		return "VARIABLE"
	case KindConstant:
		return "CONSTANT"
	case KindFormula:
		return "FORMULA"
	default:
		return "UNSET"
	}
}

// Value is a typed operand of a leaf comparison.
type Value interface {
	Kind() ValueKind
	Type() ValueType
	String() string
	isValue()
}

// Constant is an inline literal with its declared type.
type Constant struct {
	Literal   any
	ValueType ValueType
}

// Parameter references a key of the per-call Input.
type Parameter struct {
	Name      string
	ValueType ValueType
}

// Variable references a named engine-wide variable.
type Variable struct {
	Name      string
	ValueType ValueType
}

// Formula is a CEL expression whose #name placeholders bind Input parameters.
type Formula struct {
	Expression string
	ValueType  ValueType
}

// NewConstant returns a constant value.
func NewConstant(literal any, vt ValueType) Constant {
	return Constant{Literal: literal, ValueType: vt}
}

// NewParameter returns an input parameter reference.
func NewParameter(name string, vt ValueType) Parameter {
	return Parameter{Name: name, ValueType: vt}
}

// NewVariable returns an engine variable reference.
func NewVariable(name string, vt ValueType) Variable {
	return Variable{Name: name, ValueType: vt}
}

// NewFormula returns a formula value.
func NewFormula(expression string, vt ValueType) Formula {
	return Formula{Expression: expression, ValueType: vt}
}

func (Constant) Kind() ValueKind  { return KindConstant }
func (Parameter) Kind() ValueKind { return KindParameter }
func (Variable) Kind() ValueKind  { return KindVariable }
func (Formula) Kind() ValueKind   { return KindFormula }

func (c Constant) Type() ValueType  { return c.ValueType }
func (p Parameter) Type() ValueType { return p.ValueType }
func (v Variable) Type() ValueType  { return v.ValueType }
func (f Formula) Type() ValueType   { return f.ValueType }

func (c Constant) String() string  { return fmt.Sprintf("%v(%s)", c.Literal, c.ValueType) }
func (p Parameter) String() string { return fmt.Sprintf("param:%s(%s)", p.Name, p.ValueType) }
func (v Variable) String() string  { return fmt.Sprintf("var:%s(%s)", v.Name, v.ValueType) }
func (f Formula) String() string   { return fmt.Sprintf("formula:%s(%s)", f.Expression, f.ValueType) }

func (Constant) isValue()  {}
func (Parameter) isValue() {}
func (Variable) isValue()  {}
func (Formula) isValue()   {}

// Placeholders returns the parameter names the formula depends on, in order
// of first appearance. Usable for static validation before evaluation.
func (f Formula) Placeholders() []string {
	return Placeholders(f.Expression)
}
