package rules

import (
	"errors"
	"reflect"
	"testing"

	"github.com/solatis/rulekeeper/internal/types"
)

func TestResolve(t *testing.T) {
	cfg := newTestConfig(t, map[string]any{"cities": "[北京市,上海市]", "limit": "250"})

	tests := []struct {
		name    string
		value   Value
		input   types.Input
		want    any
		wantErr error
	}{
		{"constant coerced", NewConstant("42", ValueTypeNumber), nil, 42.0, nil},
		{"parameter exact key", NewParameter("Age", ValueTypeNumber), types.Input{"Age": 3, "age": 4}, 3.0, nil},
		{"parameter missing", NewParameter("age", ValueTypeNumber), types.Input{"Age": 3}, nil, types.ErrUnresolvedReference},
		{"variable coerced", NewVariable("limit", ValueTypeNumber), nil, 250.0, nil},
		{"variable as collection", NewVariable("cities", ValueTypeCollection), nil, []any{"北京市", "上海市"}, nil},
		{"variable missing", NewVariable("nope", ValueTypeString), nil, nil, types.ErrUnresolvedReference},
		{"formula", NewFormula("#a + #b", ValueTypeNumber), types.Input{"a": 1, "b": 2.5}, 3.5, nil},
		{"formula result coerced to string", NewFormula("#a * 2", ValueTypeString), types.Input{"a": 2}, "4", nil},
		{"unset value", nil, nil, nil, types.ErrConditionConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.value, tt.input, cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v, want nil", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Resolve() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestResolve_FormulaWithoutEvaluator(t *testing.T) {
	_, err := Resolve(NewFormula("#a", ValueTypeNumber), types.Input{"a": 1}, nil)
	if !errors.Is(err, types.ErrEvaluation) {
		t.Errorf("Resolve() error = %v, want ErrEvaluation", err)
	}
}

func TestValueKinds(t *testing.T) {
	tests := []struct {
		value Value
		kind  ValueKind
		code  int
	}{
		{NewParameter("p", ValueTypeString), KindParameter, 1},
		{NewVariable("v", ValueTypeString), KindVariable, 2},
		{NewConstant("c", ValueTypeString), KindConstant, 3},
		{NewFormula("#f", ValueTypeString), KindFormula, 4},
	}
	for _, tt := range tests {
		if tt.value.Kind() != tt.kind || int(tt.value.Kind()) != tt.code {
			t.Errorf("%v.Kind() = %d, want %s (%d)", tt.value, tt.value.Kind(), tt.kind, tt.code)
		}
	}
}
