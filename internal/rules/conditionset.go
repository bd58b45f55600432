// internal/rules/conditionset.go
package rules

import (
	"github.com/solatis/rulekeeper/internal/types"
)

// ConditionSet is the evaluation entry point for one rule's condition tree.
// An empty set (nil root) always evaluates to true.
//
// A set is a read-only snapshot once shared: SetRoot is not synchronized with
// concurrent Evaluate calls. Replace the whole set instead.
type ConditionSet struct {
	root Node
}

// NewConditionSet wraps root, which may be nil.
func NewConditionSet(root Node) *ConditionSet {
	return &ConditionSet{root: root}
}

// BuildConditionSet builds the tree from records. An empty record slice
// yields an empty set.
func BuildConditionSet(records []types.NodeRecord) (*ConditionSet, error) {
	if len(records) == 0 {
		return NewConditionSet(nil), nil
	}
	root, err := BuildTree(records)
	if err != nil {
		return nil, err
	}
	return NewConditionSet(root), nil
}

// Root returns the tree root, nil for an empty set.
func (s *ConditionSet) Root() Node {
	if s == nil {
		return nil
	}
	return s.root
}

// SetRoot replaces the tree root.
func (s *ConditionSet) SetRoot(root Node) {
	s.root = root
}

// Evaluate evaluates the tree against the input.
// Every failure is returned as *EvaluationFailure wrapping the node error.
func (s *ConditionSet) Evaluate(in types.Input, cfg *Config, opts ...EvalOption) (bool, error) {
	root := s.Root()
	if root == nil {
		return true, nil
	}
	result, err := EvaluateNode(root, in, cfg, opts...)
	if err != nil {
		return false, &EvaluationFailure{Cause: err}
	}
	return result, nil
}

// Parameters returns the input parameter names the tree references.
func (s *ConditionSet) Parameters() []string {
	return Parameters(s.Root())
}

// Records flattens the tree into storage records.
func (s *ConditionSet) Records() []types.NodeRecord {
	return FlattenTree(s.Root())
}

// Len returns the number of nodes in the tree.
func (s *ConditionSet) Len() int {
	n := 0
	Walk(s.Root(), func(Node, int) { n++ })
	return n
}
