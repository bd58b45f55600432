// internal/rules/resolve.go
package rules

import (
	"fmt"

	"github.com/solatis/rulekeeper/internal/types"
)

// Resolve resolves v against the input and configuration and coerces the
// result to v's declared type. The input is never modified.
// Missing parameter/variable names return types.ErrUnresolvedReference;
// formula and coercion failures return types.ErrEvaluation.
func Resolve(v Value, in types.Input, cfg *Config) (any, error) {
	var raw any
	switch val := v.(type) {
	case Constant:
		raw = val.Literal
	case Parameter:
		p, ok := in[val.Name]
		if !ok {
			return nil, fmt.Errorf("%w: parameter %q", types.ErrUnresolvedReference, val.Name)
		}
		raw = p
	case Variable:
		p, ok := cfg.Variable(val.Name)
		if !ok {
			return nil, fmt.Errorf("%w: variable %q", types.ErrUnresolvedReference, val.Name)
		}
		raw = p
	case Formula:
		evaluator := cfg.Formulas()
		if evaluator == nil {
			return nil, fmt.Errorf("%w: no formula evaluator configured", types.ErrEvaluation)
		}
		out, err := evaluator.Evaluate(val, in)
		if err != nil {
			return nil, err
		}
		raw = out
	default:
		return nil, fmt.Errorf("%w: value is not set", types.ErrConditionConfig)
	}
	return Coerce(raw, v.Type())
}

// Parameters returns every input parameter name the tree needs: direct
// Parameter references and formula placeholders, sorted and deduplicated.
func Parameters(root Node) []string {
	seen := make(map[string]struct{})
	Walk(root, func(n Node, _ int) {
		leaf, ok := n.(*Leaf)
		if !ok {
			return
		}
		for _, v := range []Value{leaf.Left, leaf.Right} {
			switch val := v.(type) {
			case Parameter:
				seen[val.Name] = struct{}{}
			case Formula:
				for _, name := range val.Placeholders() {
					seen[name] = struct{}{}
				}
			}
		}
	})
	return sortedKeys(seen)
}
