// Package types provides domain models shared across rulekeeper components.
//
// Zero-dependency design: types.go, conditions.go and errors.go use only the
// standard library so storage and transport packages can depend on them without
// pulling in the evaluation engine. ID utilities in ids.go import uuid but are
// isolated for selective inclusion.
//
// Separation from the engine: internal/rules owns the typed tree (Leaf,
// Composite, Value). This package holds the wire/storage shape (NodeRecord) and
// the sentinel errors both sides agree on.
package types

// RuleID represents a UUIDv7 rule identifier.
// String alias enables type safety while maintaining JSON string serialization.
type RuleID string

// NodeID identifies a condition node within one rule's tree.
// Storage assigns it; the engine only requires uniqueness within a rule.
type NodeID int64

// Input is the per-call evaluation context: parameter name to arbitrary value.
// Lookup is by exact key. The engine never mutates it.
type Input map[string]any

// Resource limits enforced by the tree builder and formula evaluator.
const (
	// MaxTreeDepth prevents stack overflow during recursive build and evaluation.
	// 32 levels is far beyond any hand-edited condition tree.
	MaxTreeDepth = 32

	// MaxNodesPerRule bounds the flat record list accepted for one rule.
	// 4096 nodes keeps a full rebuild well under a millisecond.
	MaxNodesPerRule = 4096

	// MaxFormulaLength caps formula source size before compilation.
	MaxFormulaLength = 4096

	// FormulaCostLimit bounds CEL runtime cost for a single formula evaluation.
	FormulaCostLimit = 1_000_000
)
