// internal/rules/evaluate.go
package rules

import (
	"fmt"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Tree evaluation.
 *
 * Leaf flow:
 *   1. Validate structure (operator, left and right set)
 *   2. Validate types (left type == right type unless left is COLLECTION)
 *   3. Validate operator against the left type's legal set
 *   4. Resolve left, then right (coerced to their declared types)
 *   5. Dispatch on the left type's compare routine
 *
 * Validation runs on every evaluation, not only at build time: trees may be
 * assembled in code without the builder.
 *
 * Composite flow: empty group is true (vacuous truth). AND stops at the first
 * false child, OR at the first true child. Children run in their stored order
 * and child errors propagate without translation.
 *
 * Errors raised at a node are wrapped once in *NodeError; a composite passes
 * a child's *NodeError through unchanged so the innermost node is reported.
 */

// EvaluateNode evaluates a single node against the input.
// Errors are *NodeError values wrapping the sentinels in internal/types.
func EvaluateNode(n Node, in types.Input, cfg *Config, opts ...EvalOption) (bool, error) {
	return evaluateNode(n, in, cfg, newEvalOptions(opts))
}

func evaluateNode(n Node, in types.Input, cfg *Config, o *evalOptions) (bool, error) {
	if !o.tracing() {
		return dispatchNode(n, in, cfg, o)
	}

	start := o.clock()
	result, err := dispatchNode(n, in, cfg, o)
	rec := TraceRecord{
		NodeID:   n.Meta().ID,
		NodeName: n.Meta().Name,
		NodeType: n.Type(),
		Result:   result,
		Elapsed:  o.clock().Sub(start),
	}
	if err != nil {
		rec.Detail = err.Error()
	} else if leaf, ok := n.(*Leaf); ok {
		rec.Detail = describeLeaf(leaf)
	}
	o.emit(rec)
	return result, err
}

func dispatchNode(n Node, in types.Input, cfg *Config, o *evalOptions) (bool, error) {
	switch node := n.(type) {
	case *Leaf:
		result, err := evaluateLeaf(node, in, cfg)
		if err != nil {
			return false, nodeError(&node.NodeMeta, err)
		}
		return result, nil
	case *Composite:
		return evaluateComposite(node, in, cfg, o)
	default:
		return false, fmt.Errorf("%w: unsupported node %T", types.ErrConditionConfig, n)
	}
}

// Validate checks the leaf's structure and typing without resolving values.
func (l *Leaf) Validate() error {
	if l.Operator == OpUnspecified {
		return fmt.Errorf("%w: operator is not set", types.ErrConditionConfig)
	}
	if l.Left == nil {
		return fmt.Errorf("%w: left value is not set", types.ErrConditionConfig)
	}
	if l.Right == nil {
		return fmt.Errorf("%w: right value is not set", types.ErrConditionConfig)
	}

	leftType := l.Left.Type()
	if leftType != ValueTypeCollection && leftType != l.Right.Type() {
		return fmt.Errorf("%w: left %s, right %s", types.ErrTypeMismatch, leftType, l.Right.Type())
	}
	if !leftType.Supports(l.Operator) {
		return fmt.Errorf("%w: %s does not support %s", types.ErrOperatorMismatch, leftType, l.Operator)
	}
	return nil
}

func evaluateLeaf(l *Leaf, in types.Input, cfg *Config) (bool, error) {
	if err := l.Validate(); err != nil {
		return false, err
	}

	left, err := Resolve(l.Left, in, cfg)
	if err != nil {
		return false, fmt.Errorf("left value: %w", err)
	}
	right, err := Resolve(l.Right, in, cfg)
	if err != nil {
		return false, fmt.Errorf("right value: %w", err)
	}

	return Compare(l.Left.Type(), left, l.Operator, right)
}

func evaluateComposite(c *Composite, in types.Input, cfg *Config, o *evalOptions) (bool, error) {
	if len(c.children) == 0 {
		return true, nil
	}

	switch c.Logic {
	case LogicAnd:
		for _, child := range c.children {
			ok, err := evaluateNode(child, in, cfg, o)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case LogicOr:
		for _, child := range c.children {
			ok, err := evaluateNode(child, in, cfg, o)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, nodeError(&c.NodeMeta,
			fmt.Errorf("%w: unknown logical operator %q", types.ErrConditionConfig, c.Logic))
	}
}

func describeLeaf(l *Leaf) string {
	return fmt.Sprintf("%s %s %s", l.Left, l.Operator, l.Right)
}
