// internal/rules/node.go
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Condition tree nodes.
 *
 * Node is a closed variant: *Leaf (one comparison) or *Composite (AND/OR over
 * ordered children). Consumers switch on the concrete type; there is no shared
 * base exposing child operations a leaf cannot honor.
 *
 * Child order: Composite keeps children sorted by OrderNo ascending, nil order
 * numbers last, ties in insertion order (stable sort). The order is fixed at
 * AddChild time so evaluation never sorts.
 *
 * Ownership: a child belongs to exactly one composite. Mutation (AddChild,
 * RemoveChild) is not synchronized; a tree being evaluated must not be mutated.
 */

// NodeType tags the node variant.
type NodeType string

const (
	NodeTypeLeaf      NodeType = types.NodeTypeLeaf
	NodeTypeComposite NodeType = types.NodeTypeComposite
)

// LogicalOperator combines composite children.
type LogicalOperator string

const (
	LogicUnspecified LogicalOperator = ""
	LogicAnd         LogicalOperator = types.LogicalAnd
	LogicOr          LogicalOperator = types.LogicalOr
)

// ParseLogicalOperator converts a stored operator (case-insensitive).
// Empty input yields LogicUnspecified.
func ParseLogicalOperator(s string) (LogicalOperator, error) {
	switch LogicalOperator(strings.ToUpper(strings.TrimSpace(s))) {
	case LogicAnd:
		return LogicAnd, nil
	case LogicOr:
		return LogicOr, nil
	case LogicUnspecified:
		return LogicUnspecified, nil
	default:
		return LogicUnspecified, fmt.Errorf("%w: unknown logical operator %q", types.ErrInvalidRecord, s)
	}
}

// NodeMeta holds identity and placement shared by both variants.
type NodeMeta struct {
	ID          types.NodeID
	Name        string
	Description string
	ParentID    *types.NodeID // nil for the root
	OrderNo     *int          // nil sorts last
}

// Meta returns the node's identity and placement.
func (m *NodeMeta) Meta() *NodeMeta {
	return m
}

// Node is a condition tree node: *Leaf or *Composite.
type Node interface {
	Meta() *NodeMeta
	Type() NodeType
	isNode()
}

// Leaf is a single left-operator-right comparison. Leaves never have children.
type Leaf struct {
	NodeMeta
	Left     Value
	Operator Operator
	Right    Value
}

// Composite aggregates ordered children under AND or OR.
type Composite struct {
	NodeMeta
	Logic    LogicalOperator
	children []Node
}

// NewLeaf creates a named leaf comparison.
func NewLeaf(name string, left Value, op Operator, right Value) *Leaf {
	return &Leaf{
		NodeMeta: NodeMeta{Name: name},
		Left:     left,
		Operator: op,
		Right:    right,
	}
}

// NewAnd creates an empty AND group.
func NewAnd(name string) *Composite {
	return &Composite{NodeMeta: NodeMeta{Name: name}, Logic: LogicAnd}
}

// NewOr creates an empty OR group.
func NewOr(name string) *Composite {
	return &Composite{NodeMeta: NodeMeta{Name: name}, Logic: LogicOr}
}

func (*Leaf) Type() NodeType      { return NodeTypeLeaf }
func (*Composite) Type() NodeType { return NodeTypeComposite }

func (*Leaf) isNode()      {}
func (*Composite) isNode() {}

// WithID sets the node id and returns the leaf for chaining.
func (l *Leaf) WithID(id types.NodeID) *Leaf {
	l.ID = id
	return l
}

// WithOrder sets the order number and returns the leaf for chaining.
func (l *Leaf) WithOrder(orderNo int) *Leaf {
	l.OrderNo = &orderNo
	return l
}

// WithID sets the node id and returns the composite for chaining.
func (c *Composite) WithID(id types.NodeID) *Composite {
	c.ID = id
	return c
}

// WithOrder sets the order number and returns the composite for chaining.
func (c *Composite) WithOrder(orderNo int) *Composite {
	c.OrderNo = &orderNo
	return c
}

// AddChild attaches child, sets its parent id and re-sorts the children.
// Returns the composite for chaining. A nil child is ignored.
func (c *Composite) AddChild(child Node) *Composite {
	if child == nil {
		return c
	}
	parentID := c.ID
	child.Meta().ParentID = &parentID
	c.children = append(c.children, child)
	sort.SliceStable(c.children, func(i, j int) bool {
		return orderLess(c.children[i].Meta().OrderNo, c.children[j].Meta().OrderNo)
	})
	return c
}

// RemoveChild detaches the direct child with the given id.
// Reports whether a child was removed.
func (c *Composite) RemoveChild(id types.NodeID) bool {
	for i, child := range c.children {
		if child.Meta().ID == id {
			c.children = append(c.children[:i:i], c.children[i+1:]...)
			child.Meta().ParentID = nil
			return true
		}
	}
	return false
}

// Children returns the ordered children. The slice is a copy.
func (c *Composite) Children() []Node {
	out := make([]Node, len(c.children))
	copy(out, c.children)
	return out
}

// Len returns the number of direct children.
func (c *Composite) Len() int {
	return len(c.children)
}

// orderLess orders by order number ascending with nil last.
// Two nils compare equal so the stable sort keeps insertion order.
func orderLess(a, b *int) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a < *b
	}
}

// Walk visits root and its descendants in pre-order with their depth
// (root = 0). A nil root visits nothing.
func Walk(root Node, visit func(n Node, depth int)) {
	var walk func(n Node, depth int)
	walk = func(n Node, depth int) {
		visit(n, depth)
		if c, ok := n.(*Composite); ok {
			for _, child := range c.children {
				walk(child, depth+1)
			}
		}
	}
	if root != nil {
		walk(root, 0)
	}
}
