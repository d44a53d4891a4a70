// Package resilience provides the fallback primitives the pipeline is built
// on: an ordered strategy cascade with a guaranteed terminal default, and a
// three-state circuit breaker for flaky external endpoints.
//
// Every extraction, scoring, and translation stage is expressed as a
// [Cascade]: generative strategies first, deterministic rule-based strategies
// last. A cascade always produces a well-typed result; strategy failures are
// values consumed by the combinator, never errors that escape the stage.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"log/slog"
)

// Attempt is one named strategy in a [Cascade]. Run returns an error to hand
// control to the next strategy; the error never leaves the cascade.
type Attempt[R any] struct {
	// Name identifies the strategy in logs and metrics (e.g., "strict",
	// "lenient", "rules").
	Name string

	// Run executes the strategy. A nil error means the result is accepted.
	Run func(ctx context.Context) (R, error)
}

// Cascade tries an ordered list of strategies and falls back to a terminal
// default that cannot fail. The default makes the cascade total: Execute
// always returns a result.
type Cascade[R any] struct {
	attempts    []Attempt[R]
	defaultName string
	defaultFn   func(ctx context.Context) R
}

// NewCascade builds a [Cascade] with the given terminal default and ordered
// strategies. defaultFn must be non-nil and must never panic; it is the
// stage's deterministic fallback.
func NewCascade[R any](defaultName string, defaultFn func(ctx context.Context) R, attempts ...Attempt[R]) *Cascade[R] {
	return &Cascade[R]{
		attempts:    attempts,
		defaultName: defaultName,
		defaultFn:   defaultFn,
	}
}

// Execute runs each strategy in order until one succeeds, falling back to the
// terminal default when all fail. It returns the result together with the
// name of the strategy that produced it.
func (c *Cascade[R]) Execute(ctx context.Context) (R, string) {
	for _, a := range c.attempts {
		result, err := a.Run(ctx)
		if err == nil {
			return result, a.Name
		}
		slog.Debug("cascade strategy failed, trying next",
			"strategy", a.Name, "error", err)
	}
	return c.defaultFn(ctx), c.defaultName
}
