package types

import "errors"

// Sentinel errors for condition configuration and evaluation.
var (
	// ErrConditionConfig indicates a leaf is missing its operator, left or right value,
	// or a composite carries an unknown logical operator.
	ErrConditionConfig = errors.New("condition configuration incomplete")

	// ErrTypeMismatch indicates left and right value types differ (left not COLLECTION).
	ErrTypeMismatch = errors.New("left and right value types do not match")

	// ErrOperatorMismatch indicates the left value type does not declare the operator.
	ErrOperatorMismatch = errors.New("operator not supported by value type")

	// ErrUnresolvedReference indicates a parameter or variable name has no value.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrEvaluation indicates a formula failed to parse or evaluate, or a resolved
	// value could not be coerced to its declared type.
	ErrEvaluation = errors.New("value evaluation failed")

	// ErrEvaluationFailure is the single failure shape returned by condition sets.
	ErrEvaluationFailure = errors.New("condition evaluation failed")
)

// Sentinel errors for tree construction from flat node records.
// Raised only by the builder, never while evaluating a built tree.
var (
	// ErrNoRoot indicates no record has a nil parent id.
	ErrNoRoot = errors.New("condition tree has no root node")

	// ErrMultipleRoots indicates more than one record has a nil parent id.
	ErrMultipleRoots = errors.New("condition tree has multiple root nodes")

	// ErrInvalidParent indicates a record addresses a leaf as its parent.
	ErrInvalidParent = errors.New("leaf node cannot have children")

	// ErrDuplicateNode indicates two records share an id.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrOrphanNode indicates a record is unreachable from the root (dangling
	// parent id or a parent cycle).
	ErrOrphanNode = errors.New("node not reachable from root")

	// ErrUnknownNodeType indicates a node type other than LEAF or COMPOSITE.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrInvalidRecord indicates malformed value, operator or logical operator fields.
	ErrInvalidRecord = errors.New("invalid node record")

	// ErrTreeTooDeep indicates nesting exceeds MaxTreeDepth.
	ErrTreeTooDeep = errors.New("condition tree exceeds maximum depth")

	// ErrTooManyNodes indicates a rule exceeds MaxNodesPerRule records.
	ErrTooManyNodes = errors.New("condition tree has too many nodes")
)

// ErrTreeNotFound indicates storage holds no records for a rule.
var ErrTreeNotFound = errors.New("condition tree not found")
