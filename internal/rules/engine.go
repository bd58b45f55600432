package rules

import (
	"sync/atomic"

	"github.com/solatis/rulekeeper/internal/types"
)

// Engine evaluates condition sets against a swappable configuration snapshot.
// SetConfig and Evaluate are safe for concurrent use; an evaluation keeps the
// snapshot it started with.
type Engine struct {
	config atomic.Pointer[Config]
}

// NewEngine creates an engine with the given configuration (may be nil).
func NewEngine(cfg *Config) *Engine {
	e := &Engine{}
	e.config.Store(cfg)
	return e
}

// Config returns the current configuration snapshot.
func (e *Engine) Config() *Config {
	return e.config.Load()
}

// SetConfig atomically replaces the configuration.
func (e *Engine) SetConfig(cfg *Config) {
	e.config.Store(cfg)
}

// SetVariables replaces the variables, keeping the formula evaluator and its
// compiled program cache.
func (e *Engine) SetVariables(variables map[string]any) {
	e.config.Store(e.config.Load().WithVariables(variables))
}

// Evaluate evaluates set against the input with the current configuration.
func (e *Engine) Evaluate(set *ConditionSet, in types.Input, opts ...EvalOption) (bool, error) {
	return set.Evaluate(in, e.config.Load(), opts...)
}
