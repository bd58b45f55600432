package rules

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/solatis/rulekeeper/internal/types"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		valueType ValueType
		wantValue any
		wantErr   error
	}{
		// NUMBER
		{
			name:      "number: string to float64",
			value:     "25",
			valueType: ValueTypeNumber,
			wantValue: 25.0,
		},
		{
			name:      "number: float64 passthrough",
			value:     42.5,
			valueType: ValueTypeNumber,
			wantValue: 42.5,
		},
		{
			name:      "number: int to float64",
			value:     100,
			valueType: ValueTypeNumber,
			wantValue: 100.0,
		},
		{
			name:      "number: int64 to float64",
			value:     int64(999),
			valueType: ValueTypeNumber,
			wantValue: 999.0,
		},
		{
			name:      "number: string with whitespace",
			value:     "  42  ",
			valueType: ValueTypeNumber,
			wantValue: 42.0,
		},
		{
			name:      "number: scientific notation",
			value:     "1e10",
			valueType: ValueTypeNumber,
			wantValue: 1e10,
		},
		{
			name:      "number: non-numeric string fails",
			value:     "abc",
			valueType: ValueTypeNumber,
			wantErr:   types.ErrEvaluation,
		},
		{
			name:      "number: whitespace-only string fails",
			value:     "   ",
			valueType: ValueTypeNumber,
			wantErr:   types.ErrEvaluation,
		},
		{
			name:      "number: boolean fails",
			value:     true,
			valueType: ValueTypeNumber,
			wantErr:   types.ErrEvaluation,
		},

		// STRING
		{
			name:      "string: passthrough",
			value:     "深圳市",
			valueType: ValueTypeString,
			wantValue: "深圳市",
		},
		{
			name:      "string: integral float formats without fraction",
			value:     18.0,
			valueType: ValueTypeString,
			wantValue: "18",
		},
		{
			name:      "string: bool",
			value:     false,
			valueType: ValueTypeString,
			wantValue: "false",
		},
		{
			name:      "string: collection renders bracketed",
			value:     []any{"a", "b"},
			valueType: ValueTypeString,
			wantValue: "[a,b]",
		},

		// BOOLEAN
		{
			name:      "boolean: passthrough",
			value:     true,
			valueType: ValueTypeBoolean,
			wantValue: true,
		},
		{
			name:      "boolean: literal string case-insensitive",
			value:     " FALSE ",
			valueType: ValueTypeBoolean,
			wantValue: false,
		},
		{
			name:      "boolean: number fails",
			value:     1,
			valueType: ValueTypeBoolean,
			wantErr:   types.ErrEvaluation,
		},
		{
			name:      "boolean: arbitrary string fails",
			value:     "yes",
			valueType: ValueTypeBoolean,
			wantErr:   types.ErrEvaluation,
		},

		// DATE
		{
			name:      "date: RFC3339",
			value:     "2024-03-01T10:00:00Z",
			valueType: ValueTypeDate,
			wantValue: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:      "date: date only",
			value:     "2024-03-01",
			valueType: ValueTypeDate,
			wantValue: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "date: unix milliseconds",
			value:     int64(1709287200000),
			valueType: ValueTypeDate,
			wantValue: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:      "date: garbage string fails",
			value:     "yesterday",
			valueType: ValueTypeDate,
			wantErr:   types.ErrEvaluation,
		},

		// COLLECTION
		{
			name:      "collection: JSON array string",
			value:     `["a", "b"]`,
			valueType: ValueTypeCollection,
			wantValue: []any{"a", "b"},
		},
		{
			name:      "collection: bracketed list",
			value:     "[北京市, 上海市]",
			valueType: ValueTypeCollection,
			wantValue: []any{"北京市", "上海市"},
		},
		{
			name:      "collection: comma list",
			value:     "x,y",
			valueType: ValueTypeCollection,
			wantValue: []any{"x", "y"},
		},
		{
			name:      "collection: typed slice",
			value:     []string{"x", "y"},
			valueType: ValueTypeCollection,
			wantValue: []any{"x", "y"},
		},
		{
			name:      "collection: scalar fails",
			value:     42,
			valueType: ValueTypeCollection,
			wantErr:   types.ErrEvaluation,
		},

		// nil never coerces
		{
			name:      "nil to number fails",
			value:     nil,
			valueType: ValueTypeNumber,
			wantErr:   types.ErrEvaluation,
		},
		{
			name:      "nil to string fails",
			value:     nil,
			valueType: ValueTypeString,
			wantErr:   types.ErrEvaluation,
		},
		{
			name:      "unspecified type fails",
			value:     "x",
			valueType: ValueTypeUnspecified,
			wantErr:   types.ErrEvaluation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.value, tt.valueType)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Coerce() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Coerce() error = %v, want nil", err)
			}
			if want, ok := tt.wantValue.(time.Time); ok {
				if got, ok := got.(time.Time); !ok || !got.Equal(want) {
					t.Errorf("Coerce() = %v, want %v", got, want)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.wantValue) {
				t.Errorf("Coerce() = %#v, want %#v", got, tt.wantValue)
			}
		})
	}
}

func TestCoerce_DoesNotMutateInput(t *testing.T) {
	in := []any{"a", "b"}
	got, err := Coerce(in, ValueTypeString)
	if err != nil {
		t.Fatalf("Coerce() error = %v, want nil", err)
	}
	if got != "[a,b]" {
		t.Errorf("Coerce() = %v, want [a,b]", got)
	}
	if !reflect.DeepEqual(in, []any{"a", "b"}) {
		t.Errorf("input mutated: %v", in)
	}
}
