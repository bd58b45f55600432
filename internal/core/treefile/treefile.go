// Package treefile reads and writes condition trees as nested YAML.
//
// The document nests children under their group, which is how trees are
// hand-edited; storage uses the flat parent-addressed records. Parse assigns
// missing node ids in pre-order after the highest explicit id and numbers
// siblings by position.
//
//	rule: 0190a6f4-...         # optional
//	tree:
//	  name: eligible
//	  logic: AND
//	  children:
//	    - name: adult
//	      left:     {kind: PARAMETER, value: age, type: NUMBER}
//	      operator: GTE
//	      right:    {kind: CONSTANT, value: "18", type: NUMBER}
package treefile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/solatis/rulekeeper/internal/types"
)

// Document is one rule's tree file.
type Document struct {
	Rule string `yaml:"rule,omitempty"`
	Tree *Node  `yaml:"tree"`
}

// Node is a group (Group, Logic or Children set) or a leaf. Group marks
// an empty group whose logical operator is not set yet.
type Node struct {
	ID          int64  `yaml:"id,omitempty"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`

	Group    bool    `yaml:"group,omitempty"`
	Logic    string  `yaml:"logic,omitempty"`
	Children []*Node `yaml:"children,omitempty"`

	Left     *Operand `yaml:"left,omitempty"`
	Operator string   `yaml:"operator,omitempty"`
	Right    *Operand `yaml:"right,omitempty"`
}

// Operand is a leaf value. Kind is PARAMETER, VARIABLE, CONSTANT or FORMULA.
type Operand struct {
	Kind  string `yaml:"kind"`
	Value string `yaml:"value"`
	Type  string `yaml:"type"`
}

var kindCodes = map[string]int{
	"PARAMETER": types.ValueKindParameter,
	"VARIABLE":  types.ValueKindVariable,
	"CONSTANT":  types.ValueKindConstant,
	"FORMULA":   types.ValueKindFormula,
}

func kindName(code int) string {
	for name, c := range kindCodes {
		if c == code {
			return name
		}
	}
	return ""
}

func (n *Node) isGroup() bool {
	return n.Group || n.Logic != "" || len(n.Children) > 0
}

// Load reads a tree file.
func Load(path string) (*Document, []types.NodeRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read tree file: %w", err)
	}
	doc, records, err := Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, records, nil
}

// Parse decodes a document and flattens its tree into records.
// Unknown keys are rejected. Structural validation is left to the builder.
func Parse(data []byte) (*Document, []types.NodeRecord, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: empty tree file", types.ErrNoRoot)
		}
		return nil, nil, fmt.Errorf("%w: %v", types.ErrInvalidRecord, err)
	}
	if doc.Tree == nil {
		return nil, nil, fmt.Errorf("%w: tree is missing", types.ErrNoRoot)
	}

	f := &flattener{next: maxID(doc.Tree, 0) + 1}
	if err := f.flatten(doc.Tree, nil, nil, 0); err != nil {
		return nil, nil, err
	}
	return &doc, f.records, nil
}

type flattener struct {
	next    int64
	records []types.NodeRecord
}

func maxID(n *Node, depth int) int64 {
	if n == nil || depth > types.MaxTreeDepth {
		return 0
	}
	m := n.ID
	for _, c := range n.Children {
		if id := maxID(c, depth+1); id > m {
			m = id
		}
	}
	return m
}

func (f *flattener) flatten(n *Node, parent *types.NodeID, orderNo *int, depth int) error {
	if n == nil {
		return fmt.Errorf("%w: empty node", types.ErrInvalidRecord)
	}
	if depth >= types.MaxTreeDepth {
		return fmt.Errorf("%w: depth %d", types.ErrTreeTooDeep, depth+1)
	}
	if len(f.records) >= types.MaxNodesPerRule {
		return fmt.Errorf("%w: more than %d", types.ErrTooManyNodes, types.MaxNodesPerRule)
	}

	id := types.NodeID(n.ID)
	if id == 0 {
		id = types.NodeID(f.next)
		f.next++
	}

	rec := types.NodeRecord{ID: id, ParentID: parent, OrderNo: orderNo}
	if !n.isGroup() {
		rec.NodeType = types.NodeTypeLeaf
		rec.ConditionName = n.Name
		rec.ConditionDescription = n.Description
		rec.Symbol = n.Operator
		var err error
		if rec.LeftKind, rec.LeftValue, rec.LeftValueType, err = operandFields(n.Left); err != nil {
			return fmt.Errorf("node %q left: %w", n.Name, err)
		}
		if rec.RightKind, rec.RightValue, rec.RightValueType, err = operandFields(n.Right); err != nil {
			return fmt.Errorf("node %q right: %w", n.Name, err)
		}
		f.records = append(f.records, rec)
		return nil
	}

	if n.Left != nil || n.Right != nil || n.Operator != "" {
		return fmt.Errorf("%w: group %q carries leaf fields", types.ErrInvalidRecord, n.Name)
	}
	rec.NodeType = types.NodeTypeComposite
	rec.GroupName = n.Name
	rec.GroupDescription = n.Description
	rec.LogicalOperator = strings.ToUpper(n.Logic)
	f.records = append(f.records, rec)

	for i, child := range n.Children {
		order := i + 1
		if err := f.flatten(child, &id, &order, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func operandFields(o *Operand) (kind int, value, valueType string, err error) {
	if o == nil {
		return types.ValueKindUnset, "", "", nil
	}
	code, ok := kindCodes[strings.ToUpper(o.Kind)]
	if !ok {
		return 0, "", "", fmt.Errorf("%w: unknown value kind %q", types.ErrInvalidRecord, o.Kind)
	}
	return code, o.Value, strings.ToUpper(o.Type), nil
}

// Marshal renders records as a nested tree document.
// Records must form one tree; children follow the record order.
func Marshal(ruleID types.RuleID, records []types.NodeRecord) ([]byte, error) {
	nodes := make(map[types.NodeID]*Node, len(records))
	var root *Node
	for _, r := range records {
		nodes[r.ID] = recordNode(r)
	}
	for _, r := range records {
		n := nodes[r.ID]
		if r.ParentID == nil {
			if root != nil {
				return nil, types.ErrMultipleRoots
			}
			root = n
			continue
		}
		parent, ok := nodes[*r.ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: node %d", types.ErrOrphanNode, r.ID)
		}
		parent.Children = append(parent.Children, n)
	}
	if root == nil {
		return nil, types.ErrNoRoot
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Document{Rule: string(ruleID), Tree: root}); err != nil {
		return nil, fmt.Errorf("failed to encode tree: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode tree: %w", err)
	}
	return buf.Bytes(), nil
}

func recordNode(r types.NodeRecord) *Node {
	n := &Node{ID: int64(r.ID)}
	if r.NodeType == types.NodeTypeComposite {
		n.Name = r.GroupName
		n.Description = r.GroupDescription
		n.Logic = r.LogicalOperator
		n.Group = r.LogicalOperator == ""
		return n
	}
	n.Name = r.ConditionName
	n.Description = r.ConditionDescription
	n.Operator = r.Symbol
	n.Left = recordOperand(r.LeftKind, r.LeftValue, r.LeftValueType)
	n.Right = recordOperand(r.RightKind, r.RightValue, r.RightValueType)
	return n
}

func recordOperand(kind int, value, valueType string) *Operand {
	if kind == types.ValueKindUnset {
		return nil
	}
	return &Operand{Kind: kindName(kind), Value: value, Type: valueType}
}
