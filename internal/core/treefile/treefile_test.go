package treefile

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

const sampleTree = `
rule: 0190a6f4-5f4e-7c3a-9b1d-2a3b4c5d6e7f
tree:
  name: eligible
  logic: AND
  children:
    - name: adult
      left: {kind: PARAMETER, value: age, type: NUMBER}
      operator: GTE
      right: {kind: CONSTANT, value: 18, type: NUMBER}
    - name: region
      logic: or
      children:
        - name: benelux
          left: {kind: PARAMETER, value: country, type: STRING}
          operator: IN
          right: {kind: CONSTANT, value: "NL,BE,LU", type: STRING}
        - name: override
          left: {kind: FORMULA, value: "#score > 90", type: BOOLEAN}
          operator: EQ
          right: {kind: CONSTANT, value: "true", type: BOOLEAN}
`

func TestParse(t *testing.T) {
	doc, records, err := Parse([]byte(sampleTree))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.Rule != "0190a6f4-5f4e-7c3a-9b1d-2a3b4c5d6e7f" {
		t.Errorf("Rule = %q", doc.Rule)
	}
	if len(records) != 5 {
		t.Fatalf("len(records) = %d, want 5", len(records))
	}

	wantIDs := []types.NodeID{1, 2, 3, 4, 5}
	wantParents := []types.NodeID{0, 1, 1, 3, 3}
	for i, r := range records {
		if r.ID != wantIDs[i] {
			t.Errorf("records[%d].ID = %d, want %d", i, r.ID, wantIDs[i])
		}
		var parent types.NodeID
		if r.ParentID != nil {
			parent = *r.ParentID
		}
		if parent != wantParents[i] {
			t.Errorf("records[%d].ParentID = %d, want %d", i, parent, wantParents[i])
		}
	}

	if records[1].RightValue != "18" || records[1].LeftKind != types.ValueKindParameter {
		t.Errorf("adult leaf = %+v", records[1])
	}
	if records[2].LogicalOperator != types.LogicalOr {
		t.Errorf("region logic = %q, want OR", records[2].LogicalOperator)
	}
	if records[4].LeftKind != types.ValueKindFormula {
		t.Errorf("override left kind = %d, want %d", records[4].LeftKind, types.ValueKindFormula)
	}
	if *records[3].OrderNo != 1 || *records[4].OrderNo != 2 {
		t.Errorf("sibling order = %d,%d, want 1,2", *records[3].OrderNo, *records[4].OrderNo)
	}

	set, err := rules.BuildConditionSet(records)
	if err != nil {
		t.Fatalf("BuildConditionSet() error = %v", err)
	}
	cfg, err := rules.NewConfig(nil)
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	got, err := set.Evaluate(types.Input{"age": 30, "country": "LU", "score": 10}, cfg)
	if err != nil || !got {
		t.Errorf("Evaluate() = %v, %v, want true, nil", got, err)
	}
}

func TestParse_ExplicitIDs(t *testing.T) {
	src := `
tree:
  id: 10
  logic: AND
  children:
    - left: {kind: PARAMETER, value: a, type: STRING}
      operator: EQ
      right: {kind: CONSTANT, value: x, type: STRING}
    - id: 4
      left: {kind: PARAMETER, value: b, type: STRING}
      operator: EQ
      right: {kind: CONSTANT, value: y, type: STRING}
`
	_, records, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := []types.NodeID{10, 11, 4}
	for i, r := range records {
		if r.ID != want[i] {
			t.Errorf("records[%d].ID = %d, want %d", i, r.ID, want[i])
		}
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{"empty", "", types.ErrNoRoot},
		{"no tree", "rule: abc\n", types.ErrNoRoot},
		{"unknown key", "tree:\n  logic: AND\n  colour: red\n", types.ErrInvalidRecord},
		{"unknown kind", "tree:\n  left: {kind: MAGIC, value: a, type: STRING}\n", types.ErrInvalidRecord},
		{"group with operator", "tree:\n  logic: AND\n  operator: EQ\n", types.ErrInvalidRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse([]byte(tt.src))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	_, records, err := Parse([]byte(sampleTree))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	data, err := Marshal("0190a6f4-5f4e-7c3a-9b1d-2a3b4c5d6e7f", records)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	_, again, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse(Marshal()) error = %v\n%s", err, data)
	}
	if !reflect.DeepEqual(records, again) {
		t.Errorf("round trip mismatch\n got: %+v\nwant: %+v", again, records)
	}
}

func TestMarshal_GroupWithoutLogic(t *testing.T) {
	root := types.NodeID(1)
	first := 1
	records := []types.NodeRecord{
		{ID: 1, NodeType: types.NodeTypeComposite, LogicalOperator: "AND", GroupName: "root"},
		{ID: 2, ParentID: &root, OrderNo: &first, NodeType: types.NodeTypeComposite, GroupName: "pending"},
	}

	data, err := Marshal("", records)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	_, again, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse(Marshal()) error = %v\n%s", err, data)
	}
	if !reflect.DeepEqual(records, again) {
		t.Errorf("round trip mismatch\n got: %+v\nwant: %+v\n%s", again, records, data)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.yaml")
	if err := os.WriteFile(path, []byte(sampleTree), 0o644); err != nil {
		t.Fatal(err)
	}
	_, records, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records) != 5 {
		t.Errorf("len(records) = %d, want 5", len(records))
	}

	if _, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) error = nil, want error")
	}
}
