// internal/rules/formula.go
package rules

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Formula evaluation over CEL.
 *
 * Formulas reference input parameters with #name placeholders, e.g.
 * "(#price - #discount) * 3". Before compilation every placeholder outside a
 * quoted string is rewritten to params["name"], and the CEL environment
 * declares a single params: map(string, dyn) variable. Indexing the map
 * instead of declaring one variable per name keeps placeholder names free of
 * CEL keyword restrictions and lets one environment serve all formulas.
 *
 * CEL does not mix int and double arithmetic. For NUMBER formulas, numeric
 * parameters are bound as double and bare integer literals are widened
 * ("3" becomes "3.0"), so "#a * 3" type-checks for any numeric input.
 * Integer-only operations ("#a % 2", "size(#s) + 1") do not type-check once
 * widened; those formulas compile unwidened and bind parameters as given.
 *
 * Compiled programs are cached per expression and widening mode behind an
 * RWMutex with a double-checked write path. The cache is invisible to
 * callers: evaluation results depend only on the formula and the input.
 */

const paramsVariable = "params"

// FormulaEvaluator compiles and evaluates formula values.
type FormulaEvaluator struct {
	env   *cel.Env
	cache map[programKey]compiledFormula
	mu    sync.RWMutex
}

type programKey struct {
	expression string
	numeric    bool
}

type compiledFormula struct {
	program cel.Program
	widened bool
}

// NewFormulaEvaluator creates an evaluator with the params map declaration.
func NewFormulaEvaluator() (*FormulaEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable(paramsVariable, cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &FormulaEvaluator{
		env:   env,
		cache: make(map[programKey]compiledFormula),
	}, nil
}

// Evaluate binds the formula's placeholders from in and evaluates it.
// A placeholder missing from in returns types.ErrUnresolvedReference;
// parse and runtime failures return types.ErrEvaluation.
func (e *FormulaEvaluator) Evaluate(f Formula, in types.Input) (any, error) {
	params := make(map[string]any)
	for _, name := range f.Placeholders() {
		v, ok := in[name]
		if !ok {
			return nil, fmt.Errorf("%w: formula parameter %q", types.ErrUnresolvedReference, name)
		}
		params[name] = v
	}

	compiled, err := e.program(f)
	if err != nil {
		return nil, err
	}
	for name, v := range params {
		if compiled.widened {
			params[name] = widenNumber(v)
		} else {
			params[name] = plainNumber(v)
		}
	}

	out, _, err := compiled.program.Eval(map[string]any{paramsVariable: params})
	if err != nil {
		return nil, fmt.Errorf("%w: formula %q: %v", types.ErrEvaluation, f.Expression, err)
	}
	return nativeValue(out)
}

// Validate compiles the formula without evaluating it.
func (e *FormulaEvaluator) Validate(f Formula) error {
	_, err := e.program(f)
	return err
}

// ValidateTree compiles every formula operand under root. The first
// failure is returned as a *NodeError naming the leaf.
func (e *FormulaEvaluator) ValidateTree(root Node) error {
	var err error
	Walk(root, func(n Node, _ int) {
		leaf, ok := n.(*Leaf)
		if !ok || err != nil {
			return
		}
		for _, v := range []Value{leaf.Left, leaf.Right} {
			f, ok := v.(Formula)
			if !ok {
				continue
			}
			if verr := e.Validate(f); verr != nil {
				err = nodeError(&leaf.NodeMeta, verr)
				return
			}
		}
	})
	return err
}

// program gets a compiled program from cache or compiles it.
func (e *FormulaEvaluator) program(f Formula) (compiledFormula, error) {
	if strings.TrimSpace(f.Expression) == "" {
		return compiledFormula{}, fmt.Errorf("%w: empty formula", types.ErrEvaluation)
	}
	if len(f.Expression) > types.MaxFormulaLength {
		return compiledFormula{}, fmt.Errorf("%w: formula exceeds %d bytes", types.ErrEvaluation, types.MaxFormulaLength)
	}

	key := programKey{expression: f.Expression, numeric: f.ValueType == ValueTypeNumber}

	e.mu.RLock()
	if compiled, ok := e.cache[key]; ok {
		e.mu.RUnlock()
		return compiled, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Check again in case another goroutine compiled it
	if compiled, ok := e.cache[key]; ok {
		return compiled, nil
	}

	var compiled compiledFormula
	var err error
	if key.numeric {
		compiled.program, err = e.compile(rewriteFormula(f.Expression, true))
		compiled.widened = err == nil
	}
	if !compiled.widened {
		compiled.program, err = e.compile(rewriteFormula(f.Expression, false))
	}
	if err != nil {
		return compiledFormula{}, fmt.Errorf("%w: formula %q: %v", types.ErrEvaluation, f.Expression, err)
	}

	e.cache[key] = compiled
	return compiled, nil
}

func (e *FormulaEvaluator) compile(expr string) (cel.Program, error) {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	return e.env.Program(ast, cel.CostLimit(types.FormulaCostLimit))
}

// nativeValue converts a CEL result to a plain Go value.
func nativeValue(out ref.Val) (any, error) {
	switch out.(type) {
	case traits.Lister:
		v, err := out.ConvertToNative(reflect.TypeOf([]any{}))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to convert result: %v", types.ErrEvaluation, err)
		}
		return v, nil
	case traits.Mapper:
		v, err := out.ConvertToNative(reflect.TypeOf(map[string]any{}))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to convert result: %v", types.ErrEvaluation, err)
		}
		return v, nil
	default:
		return out.Value(), nil
	}
}

// widenNumber binds integer kinds and json.Number as float64.
func widenNumber(v any) any {
	if f, ok := toFloat64(v); ok {
		return f
	}
	if n, ok := v.(json.Number); ok {
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return v
}

// plainNumber binds json.Number as int64 when integral, float64 otherwise.
func plainNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return v
}

// Placeholders returns the #name placeholders of a formula expression in
// order of first appearance. Text inside quoted strings is ignored.
func Placeholders(expr string) []string {
	var names []string
	seen := make(map[string]struct{})
	scanFormula(expr, func(tok formulaToken) {
		if tok.kind != tokenPlaceholder {
			return
		}
		if _, ok := seen[tok.text]; ok {
			return
		}
		seen[tok.text] = struct{}{}
		names = append(names, tok.text)
	})
	return names
}

// rewriteFormula replaces placeholders with params lookups and, when widen is
// set, turns bare integer literals into double literals.
func rewriteFormula(expr string, widen bool) string {
	var b strings.Builder
	b.Grow(len(expr) + 16)
	scanFormula(expr, func(tok formulaToken) {
		switch tok.kind {
		case tokenPlaceholder:
			fmt.Fprintf(&b, "%s[%q]", paramsVariable, tok.text)
		case tokenInteger:
			b.WriteString(tok.text)
			if widen {
				b.WriteString(".0")
			}
		default:
			b.WriteString(tok.text)
		}
	})
	return b.String()
}

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenPlaceholder
	tokenInteger
)

type formulaToken struct {
	kind tokenKind
	text string
}

// scanFormula splits expr into placeholders, bare integer literals and
// everything else (emitted verbatim, quoted strings included).
func scanFormula(expr string, emit func(formulaToken)) {
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == '\'' || c == '"':
			j := i + 1
			for j < len(expr) && expr[j] != c {
				if expr[j] == '\\' {
					j++
				}
				j++
			}
			if j < len(expr) {
				j++
			}
			if j > len(expr) {
				j = len(expr)
			}
			emit(formulaToken{kind: tokenText, text: expr[i:j]})
			i = j

		case c == '#' && i+1 < len(expr) && isIdentStart(expr[i+1]):
			j := i + 1
			for j < len(expr) && isIdentPart(expr[j]) {
				j++
			}
			emit(formulaToken{kind: tokenPlaceholder, text: expr[i+1 : j]})
			i = j

		case isDigit(c) && (i == 0 || (!isIdentPart(expr[i-1]) && expr[i-1] != '.')):
			j := i
			for j < len(expr) && isDigit(expr[j]) {
				j++
			}
			kind := tokenInteger
			if j < len(expr) && (expr[j] == '.' || expr[j] == 'e' || expr[j] == 'E' || expr[j] == 'x' || expr[j] == 'u' || expr[j] == 'U') {
				kind = tokenText
			}
			emit(formulaToken{kind: kind, text: expr[i:j]})
			i = j

		default:
			emit(formulaToken{kind: tokenText, text: expr[i : i+1]})
			i++
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
