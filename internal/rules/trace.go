// internal/rules/trace.go
package rules

import (
	"sync"
	"time"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Evaluation tracing.
 *
 * An Observer receives one TraceRecord per node that finished evaluating,
 * in completion order (children before their parent). Short-circuited
 * siblings are never visited and never reported. Nodes that fail report
 * Result=false and the error text in Detail.
 *
 * The engine itself never logs; callers attach an Observer (Trace, or a
 * logger-backed one in the service layer) through WithObserver.
 */

// TraceRecord is the outcome of evaluating one node.
type TraceRecord struct {
	NodeID   types.NodeID  `json:"node_id"`
	NodeName string        `json:"node_name"`
	NodeType NodeType      `json:"node_type"`
	Result   bool          `json:"result"`
	Detail   string        `json:"detail,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Observer receives per-node evaluation records.
type Observer interface {
	ObserveNode(rec TraceRecord)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(rec TraceRecord)

func (f ObserverFunc) ObserveNode(rec TraceRecord) {
	f(rec)
}

// Trace collects records in memory. Safe for concurrent use.
type Trace struct {
	mu      sync.Mutex
	records []TraceRecord
}

// NewTrace creates an empty trace collector.
func NewTrace() *Trace {
	return &Trace{}
}

func (t *Trace) ObserveNode(rec TraceRecord) {
	t.mu.Lock()
	t.records = append(t.records, rec)
	t.mu.Unlock()
}

// Records returns a copy of the collected records.
func (t *Trace) Records() []TraceRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceRecord, len(t.records))
	copy(out, t.records)
	return out
}

// EvalOption configures a single evaluation.
type EvalOption func(*evalOptions)

type evalOptions struct {
	observers []Observer
	clock     func() time.Time
}

// WithObserver attaches an observer. Multiple observers are called in order.
func WithObserver(o Observer) EvalOption {
	return func(opts *evalOptions) {
		if o != nil {
			opts.observers = append(opts.observers, o)
		}
	}
}

// WithClock overrides the clock used to measure per-node elapsed time.
func WithClock(now func() time.Time) EvalOption {
	return func(opts *evalOptions) {
		if now != nil {
			opts.clock = now
		}
	}
}

func newEvalOptions(opts []EvalOption) *evalOptions {
	o := &evalOptions{clock: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *evalOptions) tracing() bool {
	return len(o.observers) > 0
}

func (o *evalOptions) emit(rec TraceRecord) {
	for _, obs := range o.observers {
		obs.ObserveNode(rec)
	}
}
