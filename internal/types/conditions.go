// internal/types/conditions.go
package types

/*
 * Storage-facing shape of a condition tree.
 *
 * NodeRecord is the flat, parent-id addressed representation exchanged with
 * storage. internal/rules reconstructs the typed tree from a []NodeRecord and
 * flattens it back; nothing else interprets the leaf/composite fields.
 *
 * Field ownership:
 *   - Common: ID, RuleID, ParentID, NodeType, OrderNo
 *   - LEAF only: Condition*, Left*, Symbol, Right*
 *   - COMPOSITE only: LogicalOperator, Group*
 *
 * Enum-like fields stay plain strings/ints here (like the wire format) so this
 * package carries no dependency on the engine.
 */

// Node type tags stored in NodeRecord.NodeType.
const (
	NodeTypeLeaf      = "LEAF"
	NodeTypeComposite = "COMPOSITE"
)

// Logical operators stored in NodeRecord.LogicalOperator.
const (
	LogicalAnd = "AND"
	LogicalOr  = "OR"
)

// Value kinds stored in NodeRecord.LeftKind / RightKind.
// Zero means the value is absent.
const (
	ValueKindUnset     = 0
	ValueKindParameter = 1
	ValueKindVariable  = 2
	ValueKindConstant  = 3
	ValueKindFormula   = 4
)

// NodeRecord is one condition tree node in storage form.
type NodeRecord struct {
	ID              NodeID  `db:"id" json:"id" yaml:"id"`
	RuleID          RuleID  `db:"rule_id" json:"rule_id" yaml:"rule_id"`
	ParentID        *NodeID `db:"parent_id" json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	NodeType        string  `db:"node_type" json:"node_type" yaml:"node_type"`
	LogicalOperator string  `db:"logical_operator" json:"logical_operator,omitempty" yaml:"logical_operator,omitempty"`
	OrderNo         *int    `db:"order_no" json:"order_no,omitempty" yaml:"order_no,omitempty"`

	ConditionName        string `db:"condition_name" json:"condition_name,omitempty" yaml:"condition_name,omitempty"`
	ConditionDescription string `db:"condition_description" json:"condition_description,omitempty" yaml:"condition_description,omitempty"`
	LeftKind             int    `db:"left_kind" json:"left_kind,omitempty" yaml:"left_kind,omitempty"`
	LeftValue            string `db:"left_value" json:"left_value,omitempty" yaml:"left_value,omitempty"`
	LeftValueType        string `db:"left_value_type" json:"left_value_type,omitempty" yaml:"left_value_type,omitempty"`
	Symbol               string `db:"symbol" json:"symbol,omitempty" yaml:"symbol,omitempty"`
	RightKind            int    `db:"right_kind" json:"right_kind,omitempty" yaml:"right_kind,omitempty"`
	RightValue           string `db:"right_value" json:"right_value,omitempty" yaml:"right_value,omitempty"`
	RightValueType       string `db:"right_value_type" json:"right_value_type,omitempty" yaml:"right_value_type,omitempty"`

	GroupName        string `db:"group_name" json:"group_name,omitempty" yaml:"group_name,omitempty"`
	GroupDescription string `db:"group_description" json:"group_description,omitempty" yaml:"group_description,omitempty"`
}

// IsRoot reports whether the record has no parent.
func (r NodeRecord) IsRoot() bool {
	return r.ParentID == nil
}

// IsLeaf reports whether the record is tagged LEAF.
func (r NodeRecord) IsLeaf() bool {
	return r.NodeType == NodeTypeLeaf
}

// IsComposite reports whether the record is tagged COMPOSITE.
func (r NodeRecord) IsComposite() bool {
	return r.NodeType == NodeTypeComposite
}
