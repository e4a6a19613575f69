package llm

import (
	"context"
	"time"
)

// Strategy is one step of a fallback chain.
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Outcome records how a single strategy fared.
type Outcome struct {
	Strategy string
	Err      error
	Duration time.Duration
}

// OK reports whether the strategy produced a value.
func (o Outcome) OK() bool { return o.Err == nil }

// FirstSuccess runs strategies in order and stops at the first one that
// succeeds. It returns that value, the outcome of every strategy that ran,
// and whether any succeeded. observe, when non-nil, sees each outcome as it
// happens. A cancelled parent context stops the chain.
func FirstSuccess[T any](ctx context.Context, strategies []Strategy[T], observe func(Outcome)) (T, []Outcome, bool) {
	var zero T
	outcomes := make([]Outcome, 0, len(strategies))
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			break
		}
		start := time.Now()
		v, err := s.Run(ctx)
		o := Outcome{Strategy: s.Name, Err: err, Duration: time.Since(start)}
		outcomes = append(outcomes, o)
		if observe != nil {
			observe(o)
		}
		if err == nil {
			return v, outcomes, true
		}
	}
	return zero, outcomes, false
}
