// internal/rules/builder.go
package rules

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Flat record <-> tree conversion.
 *
 * BuildTree turns the parent-id addressed records of one rule into an owned
 * tree. Structural checks, in order:
 *   1. Record count within MaxNodesPerRule
 *   2. Each record decodes (known node type, parseable enum fields)
 *   3. Ids are unique
 *   4. Exactly one record has no parent
 *   5. No record names a leaf as its parent
 *   6. Every record is reachable from the root (dangling parents and parent
 *      cycles are rejected, never silently dropped)
 *   7. Nesting within MaxTreeDepth
 *
 * Children are attached through Composite.AddChild so sibling order follows
 * order numbers regardless of record order.
 *
 * Value encoding: kind code + payload string + value type name. Kind 0 (or an
 * empty value type) means the value is absent; evaluation then reports a
 * configuration error for the leaf. Constant payloads stay strings after a
 * build and are coerced at resolve time.
 *
 * Constants built in code are flattened to the payload of the value they
 * resolve to, so a rebuilt tree evaluates like the original. String literals
 * are stored verbatim. A literal that cannot resolve keeps its raw rendering
 * when that still fails to resolve, and is stored as absent otherwise.
 *
 * FlattenTree is the inverse: pre-order records with variant-exclusive fields.
 * RuleID is left empty; storage stamps it.
 */

// BuildTree reconstructs the condition tree from flat records.
func BuildTree(records []types.NodeRecord) (Node, error) {
	if len(records) > types.MaxNodesPerRule {
		return nil, fmt.Errorf("%w: %d records (max %d)", types.ErrTooManyNodes, len(records), types.MaxNodesPerRule)
	}

	nodes := make(map[types.NodeID]Node, len(records))
	var roots []types.NodeID
	for _, rec := range records {
		if _, dup := nodes[rec.ID]; dup {
			return nil, fmt.Errorf("%w: %d", types.ErrDuplicateNode, rec.ID)
		}
		n, err := decodeNode(rec)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", rec.ID, err)
		}
		nodes[rec.ID] = n
		if rec.IsRoot() {
			roots = append(roots, rec.ID)
		}
	}

	switch len(roots) {
	case 0:
		return nil, types.ErrNoRoot
	case 1:
	default:
		return nil, fmt.Errorf("%w: %v", types.ErrMultipleRoots, roots)
	}

	children := make(map[types.NodeID][]Node, len(records))
	for _, rec := range records {
		if rec.ParentID == nil {
			continue
		}
		parent, ok := nodes[*rec.ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: node %d references missing parent %d",
				types.ErrOrphanNode, rec.ID, *rec.ParentID)
		}
		if _, isLeaf := parent.(*Leaf); isLeaf {
			return nil, fmt.Errorf("%w: node %d is a child of leaf %d",
				types.ErrInvalidParent, rec.ID, *rec.ParentID)
		}
		children[*rec.ParentID] = append(children[*rec.ParentID], nodes[rec.ID])
	}

	root := nodes[roots[0]]
	attached := 0
	var attach func(n Node, depth int) error
	attach = func(n Node, depth int) error {
		if depth > types.MaxTreeDepth {
			return fmt.Errorf("%w: node %d at depth %d (max %d)",
				types.ErrTreeTooDeep, n.Meta().ID, depth, types.MaxTreeDepth)
		}
		attached++
		c, ok := n.(*Composite)
		if !ok {
			return nil
		}
		for _, child := range children[c.ID] {
			c.AddChild(child)
			if err := attach(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := attach(root, 0); err != nil {
		return nil, err
	}

	if attached != len(records) {
		return nil, fmt.Errorf("%w: %d of %d nodes unreachable (parent cycle)",
			types.ErrOrphanNode, len(records)-attached, len(records))
	}
	return root, nil
}

// FlattenTree returns the records of root's tree in pre-order.
// A nil root yields an empty slice.
func FlattenTree(root Node) []types.NodeRecord {
	records := []types.NodeRecord{}
	Walk(root, func(n Node, _ int) {
		records = append(records, encodeNode(n))
	})
	return records
}

func decodeNode(rec types.NodeRecord) (Node, error) {
	meta := NodeMeta{
		ID:       rec.ID,
		ParentID: rec.ParentID,
		OrderNo:  rec.OrderNo,
	}

	switch rec.NodeType {
	case types.NodeTypeLeaf:
		meta.Name = rec.ConditionName
		meta.Description = rec.ConditionDescription
		op, err := ParseOperator(rec.Symbol)
		if err != nil {
			return nil, err
		}
		left, err := decodeValue(rec.LeftKind, rec.LeftValue, rec.LeftValueType)
		if err != nil {
			return nil, fmt.Errorf("left value: %w", err)
		}
		right, err := decodeValue(rec.RightKind, rec.RightValue, rec.RightValueType)
		if err != nil {
			return nil, fmt.Errorf("right value: %w", err)
		}
		return &Leaf{NodeMeta: meta, Left: left, Operator: op, Right: right}, nil
	case types.NodeTypeComposite:
		meta.Name = rec.GroupName
		meta.Description = rec.GroupDescription
		logic, err := ParseLogicalOperator(rec.LogicalOperator)
		if err != nil {
			return nil, err
		}
		return &Composite{NodeMeta: meta, Logic: logic}, nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownNodeType, rec.NodeType)
	}
}

func decodeValue(kind int, payload, valueType string) (Value, error) {
	if ValueKind(kind) == KindUnset || valueType == "" {
		return nil, nil
	}
	vt, err := ParseValueType(valueType)
	if err != nil {
		return nil, err
	}

	switch ValueKind(kind) {
	case KindConstant:
		return NewConstant(payload, vt), nil
	case KindParameter:
		return NewParameter(payload, vt), nil
	case KindVariable:
		return NewVariable(payload, vt), nil
	case KindFormula:
		if len(payload) > types.MaxFormulaLength {
			return nil, fmt.Errorf("%w: formula exceeds %d bytes", types.ErrInvalidRecord, types.MaxFormulaLength)
		}
		return NewFormula(payload, vt), nil
	default:
		return nil, fmt.Errorf("%w: unknown value kind %d", types.ErrInvalidRecord, kind)
	}
}

func encodeNode(n Node) types.NodeRecord {
	meta := n.Meta()
	rec := types.NodeRecord{
		ID:       meta.ID,
		ParentID: meta.ParentID,
		NodeType: string(n.Type()),
		OrderNo:  meta.OrderNo,
	}

	switch node := n.(type) {
	case *Leaf:
		rec.ConditionName = node.Name
		rec.ConditionDescription = node.Description
		if node.Operator != OpUnspecified {
			rec.Symbol = node.Operator.String()
		}
		rec.LeftKind, rec.LeftValue, rec.LeftValueType = encodeValue(node.Left)
		rec.RightKind, rec.RightValue, rec.RightValueType = encodeValue(node.Right)
	case *Composite:
		rec.GroupName = node.Name
		rec.GroupDescription = node.Description
		rec.LogicalOperator = string(node.Logic)
	}
	return rec
}

func encodeValue(v Value) (kind int, payload, valueType string) {
	if v == nil {
		return int(KindUnset), "", ""
	}
	switch val := v.(type) {
	case Constant:
		var ok bool
		if payload, ok = formatConstant(val); !ok {
			return int(KindUnset), "", ""
		}
	case Parameter:
		payload = val.Name
	case Variable:
		payload = val.Name
	case Formula:
		payload = val.Expression
	}
	return int(v.Kind()), payload, v.Type().String()
}

// formatConstant renders c as a payload that resolves to the same value.
// Reports false when no payload fails the way c does.
func formatConstant(c Constant) (string, bool) {
	switch literal := c.Literal.(type) {
	case nil:
		return "", false
	case string:
		return literal, true
	}

	value, err := Coerce(c.Literal, c.ValueType)
	if err != nil {
		raw := formatLiteral(c.Literal)
		if _, err := Coerce(raw, c.ValueType); err == nil {
			return "", false
		}
		return raw, true
	}

	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case time.Time:
		return formatDate(v), true
	case []any:
		return formatCollection(v), true
	}
	return formatLiteral(value), true
}

// formatDate writes the instant in UTC at full precision. Years RFC3339
// cannot carry fall back to unix milliseconds.
func formatDate(t time.Time) string {
	t = t.UTC()
	if y := t.Year(); y < 0 || y > 9999 {
		return strconv.FormatInt(t.UnixMilli(), 10)
	}
	return t.Format(time.RFC3339Nano)
}

// formatCollection renders items as a JSON array, or the bracketed list form
// when an element has no JSON encoding.
func formatCollection(items []any) string {
	if len(items) == 0 {
		return "[]"
	}
	if data, err := json.Marshal(items); err == nil {
		return string(data)
	}
	return formatDelimited(items)
}

// formatLiteral renders a raw literal as text.
// Collections become JSON arrays and dates RFC3339.
func formatLiteral(literal any) string {
	switch v := literal.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case json.Number:
		return v.String()
	}

	rv := reflect.ValueOf(literal)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if data, err := json.Marshal(literal); err == nil {
			return string(data)
		}
	}
	if f, ok := toFloat64(literal); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(literal)
}
