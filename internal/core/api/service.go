// Package api provides the condition service: storage-backed condition trees
// evaluated by the rules engine, exposed over gRPC.
package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/solatis/rulekeeper/internal/core/metrics"
	"github.com/solatis/rulekeeper/internal/core/store"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

// ConditionService is a thin orchestration layer over store and engine.
// Built condition sets are cached per rule; writes through this service
// refresh the entry, entries loaded by other instances expire after cacheTTL.
type ConditionService struct {
	store    store.NodeStore
	engine   *rules.Engine
	logger   *zap.Logger
	metrics  *metrics.Metrics
	cacheTTL time.Duration
	now      func() time.Time

	mu    sync.RWMutex
	cache map[types.RuleID]cachedSet
}

type cachedSet struct {
	set      *rules.ConditionSet
	loadedAt time.Time
}

// Option configures a ConditionService.
type Option func(*ConditionService)

// WithLogger sets the logger. Per-node evaluation records are logged at
// debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(s *ConditionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ConditionService) {
		s.metrics = m
	}
}

// WithCacheTTL bounds how long a cached tree is served. Zero keeps entries
// until the next write through this service.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *ConditionService) {
		s.cacheTTL = ttl
	}
}

// NewConditionService creates a service instance with dependencies.
func NewConditionService(st store.NodeStore, engine *rules.Engine, opts ...Option) (*ConditionService, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}

	s := &ConditionService{
		store:  st,
		engine: engine,
		logger: zap.NewNop(),
		now:    time.Now,
		cache:  make(map[types.RuleID]cachedSet),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Engine returns the rules engine the service evaluates with.
func (s *ConditionService) Engine() *rules.Engine {
	return s.engine
}

// GetTree returns the rule's built condition set.
// Returns types.ErrTreeNotFound when the rule has no stored tree.
func (s *ConditionService) GetTree(ctx context.Context, ruleID types.RuleID) (*rules.ConditionSet, error) {
	if set, ok := s.cached(ruleID); ok {
		s.metrics.CacheHit(metrics.CacheMemory)
		return set, nil
	}
	s.metrics.CacheMiss(metrics.CacheMemory)

	records, err := s.store.List(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	set, err := rules.BuildConditionSet(records)
	if err != nil {
		return nil, fmt.Errorf("stored tree for rule %s is invalid: %w", ruleID, err)
	}

	s.remember(ruleID, set)
	return set, nil
}

// Records returns the rule's stored records in canonical flattened form.
func (s *ConditionService) Records(ctx context.Context, ruleID types.RuleID) ([]types.NodeRecord, error) {
	set, err := s.GetTree(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	records := set.Records()
	for i := range records {
		records[i].RuleID = ruleID
	}
	return records, nil
}

// SaveTree validates records by building them and compiling their formulas,
// then atomically replaces the rule's stored tree. Nothing is written when
// validation fails.
func (s *ConditionService) SaveTree(ctx context.Context, ruleID types.RuleID, records []types.NodeRecord) (err error) {
	defer func() { s.metrics.TreeWrite(metrics.OpSave, err) }()

	if ruleID == "" {
		return fmt.Errorf("%w: rule id required", ErrInvalidArgument)
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: rule %s", types.ErrNoRoot, ruleID)
	}

	set, err := rules.BuildConditionSet(records)
	if err != nil {
		return err
	}
	if formulas := s.engine.Config().Formulas(); formulas != nil {
		if err := formulas.ValidateTree(set.Root()); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
	}

	if err := s.store.Replace(ctx, ruleID, set.Records()); err != nil {
		s.forget(ruleID)
		return err
	}

	s.remember(ruleID, set)
	s.logger.Info("Saved condition tree",
		zap.String("rule_id", string(ruleID)),
		zap.Int("nodes", set.Len()),
	)
	return nil
}

// RuleIDs lists the rules with a stored tree.
func (s *ConditionService) RuleIDs(ctx context.Context) ([]types.RuleID, error) {
	return s.store.RuleIDs(ctx)
}

// DeleteTree removes the rule's stored tree.
func (s *ConditionService) DeleteTree(ctx context.Context, ruleID types.RuleID) (err error) {
	defer func() { s.metrics.TreeWrite(metrics.OpDelete, err) }()

	err = s.store.Delete(ctx, ruleID)
	s.forget(ruleID)
	if err != nil {
		return err
	}

	s.logger.Info("Deleted condition tree", zap.String("rule_id", string(ruleID)))
	return nil
}

// TestResult is the outcome of TestCondition.
type TestResult struct {
	EvaluationID  string              `json:"evaluation_id"`
	Result        bool                `json:"result"`
	ExecutionTime time.Duration       `json:"execution_time"`
	Logs          []rules.TraceRecord `json:"logs"`
	Error         string              `json:"error,omitempty"`
}

// TestCondition evaluates the rule's tree against params and reports the
// per-node trace. An evaluation failure is reported in the result, not as an
// error; a rule without a tree evaluates to true with no logs.
func (s *ConditionService) TestCondition(ctx context.Context, ruleID types.RuleID, params types.Input) (*TestResult, error) {
	set, err := s.GetTree(ctx, ruleID)
	if errors.Is(err, types.ErrTreeNotFound) {
		set = rules.NewConditionSet(nil)
	} else if err != nil {
		return nil, err
	}

	evalID := types.NewEvaluationID()
	trace := rules.NewTrace()
	start := s.now()
	result, evalErr := s.engine.Evaluate(set, params,
		rules.WithObserver(trace),
		rules.WithObserver(s.logObserver(ruleID, evalID)),
	)
	elapsed := s.now().Sub(start)
	s.metrics.RecordEvaluation(result, evalErr, elapsed)

	res := &TestResult{
		EvaluationID:  evalID,
		Result:        result,
		ExecutionTime: elapsed,
		Logs:          trace.Records(),
	}
	if evalErr != nil {
		res.Error = evalErr.Error()
		s.logger.Debug("Condition evaluation failed",
			zap.String("rule_id", string(ruleID)),
			zap.String("evaluation_id", evalID),
			zap.Error(evalErr),
		)
	}
	return res, nil
}

// logObserver returns a debug-level observer, nil when debug is disabled.
func (s *ConditionService) logObserver(ruleID types.RuleID, evalID string) rules.Observer {
	if !s.logger.Core().Enabled(zapcore.DebugLevel) {
		return nil
	}
	return rules.ObserverFunc(func(rec rules.TraceRecord) {
		s.logger.Debug("Node evaluated",
			zap.String("rule_id", string(ruleID)),
			zap.String("evaluation_id", evalID),
			zap.Int64("node_id", int64(rec.NodeID)),
			zap.String("node_name", rec.NodeName),
			zap.String("node_type", string(rec.NodeType)),
			zap.Bool("result", rec.Result),
			zap.String("detail", rec.Detail),
			zap.Duration("elapsed", rec.Elapsed),
		)
	})
}

func (s *ConditionService) cached(ruleID types.RuleID) (*rules.ConditionSet, bool) {
	s.mu.RLock()
	entry, ok := s.cache[ruleID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.cacheTTL > 0 && s.now().Sub(entry.loadedAt) > s.cacheTTL {
		return nil, false
	}
	return entry.set, true
}

func (s *ConditionService) remember(ruleID types.RuleID, set *rules.ConditionSet) {
	s.mu.Lock()
	s.cache[ruleID] = cachedSet{set: set, loadedAt: s.now()}
	s.mu.Unlock()
}

func (s *ConditionService) forget(ruleID types.RuleID) {
	s.mu.Lock()
	delete(s.cache, ruleID)
	s.mu.Unlock()
}
