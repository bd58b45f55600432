package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/rulekeeper/internal/types"
)

func nodeID(id types.NodeID) *types.NodeID { return &id }
func orderNo(n int) *int                   { return &n }

func groupRecord(id types.NodeID, parent *types.NodeID, logic string) types.NodeRecord {
	return types.NodeRecord{ID: id, ParentID: parent, NodeType: types.NodeTypeComposite, LogicalOperator: logic}
}

func leafRecord(id types.NodeID, parent *types.NodeID) types.NodeRecord {
	return types.NodeRecord{
		ID:             id,
		ParentID:       parent,
		NodeType:       types.NodeTypeLeaf,
		ConditionName:  "leaf",
		LeftKind:       types.ValueKindParameter,
		LeftValue:      "age",
		LeftValueType:  "NUMBER",
		Symbol:         "GTE",
		RightKind:      types.ValueKindConstant,
		RightValue:     "18",
		RightValueType: "NUMBER",
	}
}

func TestBuildTree(t *testing.T) {
	records := []types.NodeRecord{
		leafRecord(3, nodeID(1)),
		groupRecord(1, nil, "AND"),
		groupRecord(2, nodeID(1), "OR"),
		leafRecord(4, nodeID(2)),
	}
	records[0].OrderNo = orderNo(2)
	records[2].OrderNo = orderNo(1)
	records[2].GroupName = "either"

	root, err := BuildTree(records)
	if err != nil {
		t.Fatalf("BuildTree() error = %v", err)
	}

	group, ok := root.(*Composite)
	if !ok {
		t.Fatalf("root = %T, want *Composite", root)
	}
	if group.Logic != LogicAnd || group.ID != 1 {
		t.Errorf("root = %+v, want AND group 1", group.NodeMeta)
	}

	children := group.Children()
	if len(children) != 2 {
		t.Fatalf("len(children) = %d, want 2", len(children))
	}
	if children[0].Meta().ID != 2 || children[1].Meta().ID != 3 {
		t.Errorf("children order = [%d %d], want [2 3]", children[0].Meta().ID, children[1].Meta().ID)
	}
	if children[0].Meta().Name != "either" {
		t.Errorf("group name = %q, want either", children[0].Meta().Name)
	}

	leaf, ok := children[1].(*Leaf)
	if !ok {
		t.Fatalf("children[1] = %T, want *Leaf", children[1])
	}
	if leaf.Operator != OpGte {
		t.Errorf("leaf.Operator = %v, want GTE", leaf.Operator)
	}
	if leaf.Left != NewParameter("age", ValueTypeNumber) {
		t.Errorf("leaf.Left = %v, want param:age(NUMBER)", leaf.Left)
	}
	if leaf.Right != NewConstant("18", ValueTypeNumber) {
		t.Errorf("leaf.Right = %v, want 18(NUMBER)", leaf.Right)
	}

	got, err := EvaluateNode(root, types.Input{"age": 21}, nil)
	if err != nil || !got {
		t.Errorf("EvaluateNode() = %v, %v, want true, nil", got, err)
	}
}

func TestBuildTree_Errors(t *testing.T) {
	badSymbol := leafRecord(2, nodeID(1))
	badSymbol.Symbol = "LIKE"
	badType := leafRecord(2, nodeID(1))
	badType.RightValueType = "MONEY"
	badKind := leafRecord(2, nodeID(1))
	badKind.LeftKind = 9
	badLogic := groupRecord(1, nil, "NAND")

	tests := []struct {
		name    string
		records []types.NodeRecord
		wantErr error
	}{
		{"no records", nil, types.ErrNoRoot},
		{"no root", []types.NodeRecord{groupRecord(1, nodeID(2), "AND"), groupRecord(2, nodeID(1), "AND")}, types.ErrNoRoot},
		{"multiple roots", []types.NodeRecord{groupRecord(1, nil, "AND"), groupRecord(2, nil, "OR")}, types.ErrMultipleRoots},
		{"leaf as parent", []types.NodeRecord{groupRecord(1, nil, "AND"), leafRecord(2, nodeID(1)), leafRecord(3, nodeID(2))}, types.ErrInvalidParent},
		{"dangling parent", []types.NodeRecord{groupRecord(1, nil, "AND"), leafRecord(2, nodeID(42))}, types.ErrOrphanNode},
		{"parent cycle", []types.NodeRecord{groupRecord(1, nil, "AND"), groupRecord(2, nodeID(3), "AND"), groupRecord(3, nodeID(2), "OR")}, types.ErrOrphanNode},
		{"self parent", []types.NodeRecord{groupRecord(1, nil, "AND"), groupRecord(2, nodeID(2), "AND")}, types.ErrOrphanNode},
		{"duplicate id", []types.NodeRecord{groupRecord(1, nil, "AND"), leafRecord(1, nodeID(1))}, types.ErrDuplicateNode},
		{"unknown node type", []types.NodeRecord{{ID: 1, NodeType: "BRANCH"}}, types.ErrUnknownNodeType},
		{"bad symbol", []types.NodeRecord{groupRecord(1, nil, "AND"), badSymbol}, types.ErrInvalidRecord},
		{"bad value type", []types.NodeRecord{groupRecord(1, nil, "AND"), badType}, types.ErrInvalidRecord},
		{"bad value kind", []types.NodeRecord{groupRecord(1, nil, "AND"), badKind}, types.ErrInvalidRecord},
		{"bad logical operator", []types.NodeRecord{badLogic}, types.ErrInvalidRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := BuildTree(tt.records)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("BuildTree() error = %v, want %v", err, tt.wantErr)
			}
			if root != nil {
				t.Errorf("BuildTree() root = %v, want nil", root)
			}
		})
	}
}

func TestBuildTree_Limits(t *testing.T) {
	deep := []types.NodeRecord{groupRecord(0, nil, "AND")}
	for i := 1; i <= types.MaxTreeDepth+1; i++ {
		deep = append(deep, groupRecord(types.NodeID(i), nodeID(types.NodeID(i-1)), "AND"))
	}
	if _, err := BuildTree(deep); !errors.Is(err, types.ErrTreeTooDeep) {
		t.Errorf("BuildTree(deep) error = %v, want ErrTreeTooDeep", err)
	}
	if _, err := BuildTree(deep[:types.MaxTreeDepth+1]); err != nil {
		t.Errorf("BuildTree(max depth) error = %v, want nil", err)
	}

	wide := []types.NodeRecord{groupRecord(0, nil, "OR")}
	for i := 1; i <= types.MaxNodesPerRule; i++ {
		wide = append(wide, leafRecord(types.NodeID(i), nodeID(0)))
	}
	if _, err := BuildTree(wide); !errors.Is(err, types.ErrTooManyNodes) {
		t.Errorf("BuildTree(wide) error = %v, want ErrTooManyNodes", err)
	}
}

func TestBuildTree_AbsentValue(t *testing.T) {
	rec := leafRecord(1, nil)
	rec.RightKind = types.ValueKindUnset
	rec.RightValue = ""
	rec.RightValueType = ""

	root, err := BuildTree([]types.NodeRecord{rec})
	if err != nil {
		t.Fatalf("BuildTree() error = %v", err)
	}
	if leaf := root.(*Leaf); leaf.Right != nil {
		t.Errorf("leaf.Right = %v, want nil", leaf.Right)
	}

	_, err = EvaluateNode(root, types.Input{"age": 1}, nil)
	if !errors.Is(err, types.ErrConditionConfig) {
		t.Errorf("EvaluateNode() error = %v, want ErrConditionConfig", err)
	}
}

func TestFlattenTree(t *testing.T) {
	if got := FlattenTree(nil); got == nil || len(got) != 0 {
		t.Errorf("FlattenTree(nil) = %#v, want empty slice", got)
	}

	when := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	root := NewAnd("root").WithID(1)
	root.Description = "top level"
	root.AddChild(NewLeaf("tags", NewParameter("tags", ValueTypeCollection), OpContain,
		NewConstant([]any{"a", 1.5}, ValueTypeCollection)).WithID(2).WithOrder(2))
	root.AddChild(NewLeaf("expiry", NewFormula("#start", ValueTypeDate), OpLt,
		NewConstant(when, ValueTypeDate)).WithID(3).WithOrder(1))

	records := FlattenTree(root)
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}

	want := []types.NodeRecord{
		{
			ID:               1,
			NodeType:         types.NodeTypeComposite,
			LogicalOperator:  "AND",
			GroupName:        "root",
			GroupDescription: "top level",
		},
		{
			ID:             3,
			ParentID:       nodeID(1),
			NodeType:       types.NodeTypeLeaf,
			OrderNo:        orderNo(1),
			ConditionName:  "expiry",
			LeftKind:       types.ValueKindFormula,
			LeftValue:      "#start",
			LeftValueType:  "DATE",
			Symbol:         "LT",
			RightKind:      types.ValueKindConstant,
			RightValue:     "2024-03-01T10:00:00Z",
			RightValueType: "DATE",
		},
		{
			ID:             2,
			ParentID:       nodeID(1),
			NodeType:       types.NodeTypeLeaf,
			OrderNo:        orderNo(2),
			ConditionName:  "tags",
			LeftKind:       types.ValueKindParameter,
			LeftValue:      "tags",
			LeftValueType:  "COLLECTION",
			Symbol:         "CONTAIN",
			RightKind:      types.ValueKindConstant,
			RightValue:     `["a",1.5]`,
			RightValueType: "COLLECTION",
		},
	}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("FlattenTree() =\n%+v\nwant\n%+v", records, want)
	}
}

func TestFlattenTree_ConstantsResolveAlike(t *testing.T) {
	cfg := newTestConfig(t, nil)
	when := time.Date(2024, 1, 1, 0, 0, 0, 500, time.UTC)

	tests := []struct {
		name  string
		left  Value
		right Value
	}{
		{
			name:  "string from slice",
			left:  NewConstant([]any{"a", "b"}, ValueTypeString),
			right: NewConstant("[a,b]", ValueTypeString),
		},
		{
			name:  "string from time",
			left:  NewConstant(when, ValueTypeString),
			right: NewConstant("2024-01-01T00:00:00Z", ValueTypeString),
		},
		{
			name:  "date from fractional milliseconds",
			left:  NewConstant(1700000000000.5, ValueTypeDate),
			right: NewConstant(int64(1700000000000), ValueTypeDate),
		},
		{
			name:  "number from json number",
			left:  NewConstant(json.Number("2.50"), ValueTypeNumber),
			right: NewConstant(2.5, ValueTypeNumber),
		},
		{
			name:  "date in another zone",
			left:  NewConstant(when.In(time.FixedZone("x", 5*3600+1800)), ValueTypeDate),
			right: NewConstant(when, ValueTypeDate),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := NewAnd("root").WithID(1)
			root.AddChild(NewLeaf("eq", tt.left, OpEq, tt.right).WithID(2))

			before, err := EvaluateNode(root, nil, cfg)
			if err != nil || !before {
				t.Fatalf("EvaluateNode(original) = %v, %v, want true", before, err)
			}

			rebuilt, err := BuildTree(FlattenTree(root))
			if err != nil {
				t.Fatalf("BuildTree() error = %v", err)
			}
			after, err := EvaluateNode(rebuilt, nil, cfg)
			if err != nil || !after {
				t.Errorf("EvaluateNode(rebuilt) = %v, %v, want true (records %+v)", after, err, FlattenTree(root))
			}
		})
	}
}

func TestFlattenTree_UnresolvableConstants(t *testing.T) {
	cfg := newTestConfig(t, nil)

	tests := []struct {
		name  string
		value Value
		op    Operator
	}{
		{"nil literal", NewConstant(nil, ValueTypeString), OpNe},
		{"number from bool", NewConstant(true, ValueTypeNumber), OpNe},
		{"collection from number", NewConstant(5, ValueTypeCollection), OpNotIn},
		{"boolean from number", NewConstant(1, ValueTypeBoolean), OpNe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leaf := NewLeaf("bad", tt.value, tt.op, tt.value).WithID(1)
			if _, err := EvaluateNode(leaf, nil, cfg); err == nil {
				t.Fatalf("EvaluateNode(original) error = nil, want error")
			}
			rebuilt, err := BuildTree(FlattenTree(leaf))
			if err != nil {
				t.Fatalf("BuildTree() error = %v", err)
			}
			if _, err := EvaluateNode(rebuilt, nil, cfg); err == nil {
				t.Errorf("EvaluateNode(rebuilt) error = nil, want error")
			}
		})
	}
}

// genLiteral produces a raw literal for vt in one of the Go shapes callers
// hand to NewConstant. Occasionally the literal cannot resolve to vt.
func genLiteral(rng *rand.Rand, vt ValueType) any {
	genTime := func() time.Time {
		zone := time.FixedZone("z", (rng.Intn(48)-24)*1800)
		return time.Unix(rng.Int63n(4_000_000_000), rng.Int63n(1_000_000_000)).In(zone)
	}
	words := []string{"a", "b", "NL", "BE", "x,y", "7"}
	genSlice := func() []any {
		out := make([]any, rng.Intn(4))
		for i := range out {
			if rng.Intn(2) == 0 {
				out[i] = words[rng.Intn(len(words))]
			} else {
				out[i] = rng.Intn(10)
			}
		}
		return out
	}

	if rng.Intn(10) == 0 {
		return []any{true, 3.5, nil}[rng.Intn(3)]
	}

	switch vt {
	case ValueTypeNumber:
		n := rng.Intn(20)
		return []any{n, int64(n), float64(n) + 0.25, uint8(n), json.Number(fmt.Sprint(n)), fmt.Sprint(n)}[rng.Intn(6)]
	case ValueTypeString:
		return []any{words[rng.Intn(len(words))], rng.Intn(10), rng.Float64(), rng.Intn(2) == 0, genTime(), genSlice()}[rng.Intn(6)]
	case ValueTypeBoolean:
		return []any{rng.Intn(2) == 0, "true", "false"}[rng.Intn(3)]
	case ValueTypeDate:
		t := genTime()
		return []any{t, float64(t.UnixMilli()) + 0.5, t.UnixMilli(), t.UTC().Format("2006-01-02")}[rng.Intn(4)]
	default:
		return []any{genSlice(), []string{"a", "b"}, []int{1, 7}, "a,b", "[NL, BE]"}[rng.Intn(5)]
	}
}

// genTypedTree builds a group of constant and parameter leaves in code along
// with an input that binds every parameter.
func genTypedTree(seed int64, size int) (Node, types.Input) {
	rng := rand.New(rand.NewSource(seed))
	valueTypes := []ValueType{ValueTypeNumber, ValueTypeString, ValueTypeBoolean, ValueTypeDate, ValueTypeCollection}

	root := NewAnd("root").WithID(1)
	if rng.Intn(2) == 0 {
		root = NewOr("root").WithID(1)
	}
	in := types.Input{}
	for i := 0; i < size; i++ {
		vt := valueTypes[rng.Intn(len(valueTypes))]
		rightType := vt
		if vt == ValueTypeCollection && rng.Intn(2) == 0 {
			rightType = []ValueType{ValueTypeString, ValueTypeNumber}[rng.Intn(2)]
		}
		ops := vt.Operators()

		var left Value = NewConstant(genLiteral(rng, vt), vt)
		if rng.Intn(3) == 0 {
			name := fmt.Sprintf("p%d", i)
			in[name] = genLiteral(rng, vt)
			left = NewParameter(name, vt)
		}
		right := NewConstant(genLiteral(rng, rightType), rightType)
		root.AddChild(NewLeaf("cond", left, ops[rng.Intn(len(ops))], right).WithID(types.NodeID(i + 2)))
	}
	return root, in
}

// genRecords produces a structurally valid flat tree from a seed.
func genRecords(seed int64, size int) []types.NodeRecord {
	rng := rand.New(rand.NewSource(seed))
	valueTypes := []ValueType{ValueTypeNumber, ValueTypeString, ValueTypeBoolean, ValueTypeDate, ValueTypeCollection}
	kinds := []int{types.ValueKindParameter, types.ValueKindVariable, types.ValueKindConstant, types.ValueKindFormula}

	records := []types.NodeRecord{groupRecord(1, nil, "AND")}
	groups := []types.NodeID{1}
	for i := 2; i <= size; i++ {
		id := types.NodeID(i)
		parent := groups[rng.Intn(len(groups))]

		var rec types.NodeRecord
		if rng.Intn(3) == 0 {
			logic := "AND"
			if rng.Intn(2) == 0 {
				logic = "OR"
			}
			rec = groupRecord(id, nodeID(parent), logic)
			rec.GroupName = "group"
			groups = append(groups, id)
		} else {
			vt := valueTypes[rng.Intn(len(valueTypes))]
			ops := vt.Operators()
			rec = types.NodeRecord{
				ID:             id,
				ParentID:       nodeID(parent),
				NodeType:       types.NodeTypeLeaf,
				ConditionName:  "cond",
				LeftKind:       kinds[rng.Intn(len(kinds))],
				LeftValue:      "left",
				LeftValueType:  vt.String(),
				Symbol:         ops[rng.Intn(len(ops))].String(),
				RightKind:      kinds[rng.Intn(len(kinds))],
				RightValue:     "right",
				RightValueType: vt.String(),
			}
		}
		if rng.Intn(4) != 0 {
			rec.OrderNo = orderNo(rng.Intn(10))
		}
		records = append(records, rec)
	}

	rng.Shuffle(len(records), func(i, j int) { records[i], records[j] = records[j], records[i] })
	return records
}

func sortByID(records []types.NodeRecord) []types.NodeRecord {
	out := make([]types.NodeRecord, len(records))
	copy(out, records)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func TestBuildFlatten_PropertyRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("flatten(build(records)) preserves every record", prop.ForAll(
		func(seed int64, size int) bool {
			records := genRecords(seed, size)
			root, err := BuildTree(records)
			if err != nil {
				t.Logf("BuildTree() error = %v", err)
				return false
			}
			flat := FlattenTree(root)
			return reflect.DeepEqual(sortByID(flat), sortByID(records))
		},
		gen.Int64(),
		gen.IntRange(1, 60),
	))

	properties.Property("build(flatten(tree)) yields the same records", prop.ForAll(
		func(seed int64, size int) bool {
			root, err := BuildTree(genRecords(seed, size))
			if err != nil {
				return false
			}
			first := FlattenTree(root)
			rebuilt, err := BuildTree(first)
			if err != nil {
				return false
			}
			return reflect.DeepEqual(FlattenTree(rebuilt), first)
		},
		gen.Int64(),
		gen.IntRange(1, 60),
	))

	properties.Property("build(flatten(tree)) evaluates like tree", prop.ForAll(
		func(seed int64, size int) bool {
			cfg := newTestConfig(t, nil)
			root, in := genTypedTree(seed, size)
			rebuilt, err := BuildTree(FlattenTree(root))
			if err != nil {
				t.Logf("BuildTree() error = %v", err)
				return false
			}
			rebuiltByID := make(map[types.NodeID]Node)
			Walk(rebuilt, func(n Node, _ int) { rebuiltByID[n.Meta().ID] = n })

			same := true
			Walk(root, func(n Node, _ int) {
				want, wantErr := EvaluateNode(n, in, cfg)
				got, gotErr := EvaluateNode(rebuiltByID[n.Meta().ID], in, cfg)
				if got != want || (gotErr == nil) != (wantErr == nil) {
					t.Logf("seed %d node %d: original = %v, %v; rebuilt = %v, %v",
						seed, n.Meta().ID, want, wantErr, got, gotErr)
					same = false
				}
			})
			return same
		},
		gen.Int64(),
		gen.IntRange(1, 8),
	))

	properties.Property("siblings are ordered by order number with nil last", prop.ForAll(
		func(seed int64, size int) bool {
			root, err := BuildTree(genRecords(seed, size))
			if err != nil {
				return false
			}
			ok := true
			Walk(root, func(n Node, _ int) {
				c, isGroup := n.(*Composite)
				if !isGroup {
					return
				}
				children := c.Children()
				for i := 1; i < len(children); i++ {
					if orderLess(children[i].Meta().OrderNo, children[i-1].Meta().OrderNo) {
						ok = false
					}
				}
			})
			return ok
		},
		gen.Int64(),
		gen.IntRange(1, 60),
	))

	properties.TestingRun(t)
}
