package rules

import (
	"sort"
)

// Config is the read-only engine configuration shared by all evaluations:
// named variables (lookup tables, thresholds) and the formula evaluator.
// Safe for concurrent use; never mutated after construction.
type Config struct {
	variables map[string]any
	formulas  *FormulaEvaluator
}

// NewConfig creates a configuration with the given variables and a fresh
// CEL formula evaluator. The variables map is copied.
func NewConfig(variables map[string]any) (*Config, error) {
	formulas, err := NewFormulaEvaluator()
	if err != nil {
		return nil, err
	}
	return &Config{
		variables: copyVariables(variables),
		formulas:  formulas,
	}, nil
}

// WithVariables returns a new Config with replaced variables that shares the
// receiver's formula evaluator (and its compiled program cache).
func (c *Config) WithVariables(variables map[string]any) *Config {
	var formulas *FormulaEvaluator
	if c != nil {
		formulas = c.formulas
	}
	return &Config{
		variables: copyVariables(variables),
		formulas:  formulas,
	}
}

// Variable looks up a named variable. A nil Config has no variables.
func (c *Config) Variable(name string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.variables[name]
	return v, ok
}

// VariableNames returns the sorted variable names.
func (c *Config) VariableNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.variables))
	for name := range c.variables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Formulas returns the formula evaluator, nil when unset.
func (c *Config) Formulas() *FormulaEvaluator {
	if c == nil {
		return nil
	}
	return c.formulas
}

func copyVariables(variables map[string]any) map[string]any {
	out := make(map[string]any, len(variables))
	for k, v := range variables {
		out[k] = v
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
