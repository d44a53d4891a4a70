// Package clinical turns a free-form consultation transcript into the fixed
// four-field ClinicalRecord via a cascade of strict, lenient, and rule-based
// extraction strategies.
//
// The cascade is total: Extract returns a well-shaped record for any input,
// including an all-empty record for an empty transcript. Absence of evidence
// in the transcript always yields an empty field, never an invented value.
package clinical

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medvoice-ai/teachback/internal/observe"
	"github.com/medvoice-ai/teachback/internal/resilience"
	"github.com/medvoice-ai/teachback/pkg/provider/llm"
	"github.com/medvoice-ai/teachback/pkg/types"
)

// errNoFields signals that an extraction strategy produced no usable fields
// and the cascade should try the next tier.
var errNoFields = errors.New("clinical: extraction produced no fields")

// Extractor derives ClinicalRecords from transcripts. Provider may be nil,
// in which case only the rule-based tier runs.
type Extractor struct {
	llm     llm.Provider
	metrics *observe.Metrics
}

// Option is a functional option for configuring an Extractor.
type Option func(*Extractor)

// WithMetrics sets the metrics instance used to record cascade tiers and
// generative latency.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// NewExtractor returns an Extractor backed by the given generative provider.
// Pass nil to run the rule-based tier only.
func NewExtractor(p llm.Provider, opts ...Option) *Extractor {
	e := &Extractor{llm: p}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract derives a ClinicalRecord from transcriptText. The strategies are
// tried in order: strict structured extraction with lenient gap-filling,
// then a full lenient pass, then keyword rules. Parse failures and empty
// model output degrade to the next tier instead of propagating.
//
// An empty or whitespace-only transcript returns the all-empty record
// without invoking any strategy.
func (e *Extractor) Extract(ctx context.Context, transcriptText string) types.ClinicalRecord {
	text := strings.TrimSpace(transcriptText)
	if text == "" {
		return types.ClinicalRecord{}
	}

	ctx, span := observe.StartSpan(ctx, "clinical.extract")
	defer span.End()

	var attempts []resilience.Attempt[types.ClinicalRecord]
	if e.llm != nil {
		attempts = append(attempts,
			resilience.Attempt[types.ClinicalRecord]{
				Name: "strict",
				Run: func(ctx context.Context) (types.ClinicalRecord, error) {
					return e.extractStrict(ctx, text)
				},
			},
			resilience.Attempt[types.ClinicalRecord]{
				Name: "lenient",
				Run: func(ctx context.Context) (types.ClinicalRecord, error) {
					return e.extractLenient(ctx, text)
				},
			},
		)
	}

	cascade := resilience.NewCascade(
		"rules",
		func(ctx context.Context) types.ClinicalRecord {
			return ExtractWithRules(text)
		},
		attempts...,
	)

	record, tier := cascade.Execute(ctx)
	record.Normalize()

	if e.metrics != nil {
		e.metrics.RecordTier(ctx, "clinical", tier)
	}
	observe.Logger(ctx).Debug("clinical extraction complete", "tier", tier)

	return record
}

// extractStrict runs the strict no-inference prompt and fills any remaining
// gaps from a lenient pass without overwriting populated fields. It fails
// only when the strict parse fails or every field ends up empty.
func (e *Extractor) extractStrict(ctx context.Context, text string) (types.ClinicalRecord, error) {
	prompt := fmt.Sprintf(
		"Extract exactly these four fields from the consultation transcript below "+
			"and return them as a JSON object:\n"+
			`{"symptoms": "", "diagnosis": "", "medications": "", "follow_up": ""}`+"\n"+
			"Only include information explicitly stated in the transcript. "+
			"Do not infer, assume, or hallucinate anything. "+
			"Use an empty string for any field the transcript does not mention. "+
			"Return only the JSON object.\n\nTranscript:\n%s", text)

	record, err := e.generateRecord(ctx, prompt)
	if err != nil {
		return types.ClinicalRecord{}, err
	}

	if !record.Complete() {
		// Fill gaps leniently; populated fields are never overwritten.
		if lenient, lerr := e.extractLenient(ctx, text); lerr == nil {
			record.FillFrom(lenient)
		}
	}

	if record.Empty() {
		return types.ClinicalRecord{}, errNoFields
	}
	return record, nil
}

// extractLenient runs the permissive extraction prompt, allowing reasonable
// inference from context. Fails when parsing fails or nothing is extracted.
func (e *Extractor) extractLenient(ctx context.Context, text string) (types.ClinicalRecord, error) {
	prompt := fmt.Sprintf(
		"Read the consultation transcript below and summarise it into a JSON object "+
			"with exactly these four fields:\n"+
			`{"symptoms": "", "diagnosis": "", "medications": "", "follow_up": ""}`+"\n"+
			"You may rephrase and draw reasonable conclusions from context, but stay true "+
			"to the conversation. Use an empty string for anything genuinely absent. "+
			"Return only the JSON object.\n\nTranscript:\n%s", text)

	record, err := e.generateRecord(ctx, prompt)
	if err != nil {
		return types.ClinicalRecord{}, err
	}
	if record.Empty() {
		return types.ClinicalRecord{}, errNoFields
	}
	return record, nil
}

// generateRecord sends prompt to the model and parses the response as a
// ClinicalRecord.
func (e *Extractor) generateRecord(ctx context.Context, prompt string) (types.ClinicalRecord, error) {
	start := time.Now()
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		Temperature: 0.1,
	})
	if e.metrics != nil {
		e.metrics.GenerateDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordModelError(ctx, "llm", "clinical_extract")
		}
		return types.ClinicalRecord{}, fmt.Errorf("clinical: completion: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return types.ClinicalRecord{}, errors.New("clinical: empty model response")
	}
	return parseRecord(resp.Content)
}

// parseRecord parses a model response into a ClinicalRecord. Model output is
// untrusted text: markdown fences are stripped and the outermost JSON object
// is isolated before unmarshalling. Fields absent from the output become
// empty strings.
func parseRecord(raw string) (types.ClinicalRecord, error) {
	cleaned := stripFences(raw)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return types.ClinicalRecord{}, errors.New("clinical: no JSON object in response")
	}
	cleaned = cleaned[start : end+1]

	var record types.ClinicalRecord
	if err := json.Unmarshal([]byte(cleaned), &record); err != nil {
		return types.ClinicalRecord{}, fmt.Errorf("clinical: parse response: %w", err)
	}
	record.Normalize()
	return record, nil
}

// stripFences removes surrounding markdown code fences from a model response.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
