// Package teachback implements the comprehension-verification engine: it
// generates three teach-back questions from a ClinicalRecord, matches the
// patient's single answer recording back to each question by content, and
// scores both per-question and overall understanding.
package teachback

import (
	"regexp"
	"strings"

	"github.com/medvoice-ai/teachback/internal/observe"
	"github.com/medvoice-ai/teachback/pkg/provider/llm"
)

// Engine drives question generation, answer extraction, and scoring.
// The provider may be nil; every operation then uses its deterministic
// fallback.
type Engine struct {
	llm     llm.Provider
	metrics *observe.Metrics
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithMetrics sets the metrics instance used to record cascade tiers and
// generative latency.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine returns an Engine backed by the given generative provider.
// Pass nil to run fallback paths only.
func NewEngine(p llm.Provider, opts ...Option) *Engine {
	e := &Engine{llm: p}
	for _, o := range opts {
		o(e)
	}
	return e
}

// intRe finds the first integer in a model response. Scoring prompts ask
// for a bare number but models habitually wrap it in prose.
var intRe = regexp.MustCompile(`-?\d+`)

// clampScore forces v into the [0,100] score range.
func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// stripFences removes surrounding markdown code fences from a model response.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
