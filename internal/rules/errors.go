// internal/rules/errors.go
package rules

import (
	"fmt"

	"github.com/solatis/rulekeeper/internal/types"
)

// NodeError attributes a leaf or composite failure to the node that raised it.
// Unwraps to the underlying sentinel.
type NodeError struct {
	NodeID   types.NodeID
	NodeName string
	Err      error
}

func (e *NodeError) Error() string {
	if e.NodeName == "" {
		return fmt.Sprintf("node %d: %v", e.NodeID, e.Err)
	}
	return fmt.Sprintf("node %d (%s): %v", e.NodeID, e.NodeName, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// EvaluationFailure is the single failure shape returned by ConditionSet.
// errors.Is matches both types.ErrEvaluationFailure and the cause chain.
type EvaluationFailure struct {
	Cause error
}

func (e *EvaluationFailure) Error() string {
	return fmt.Sprintf("%v: %v", types.ErrEvaluationFailure, e.Cause)
}

func (e *EvaluationFailure) Unwrap() []error {
	return []error{types.ErrEvaluationFailure, e.Cause}
}

func nodeError(meta *NodeMeta, err error) error {
	return &NodeError{NodeID: meta.ID, NodeName: meta.Name, Err: err}
}
