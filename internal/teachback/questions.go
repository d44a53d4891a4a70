package teachback

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/medvoice-ai/teachback/internal/observe"
	"github.com/medvoice-ai/teachback/pkg/provider/llm"
	"github.com/medvoice-ai/teachback/pkg/types"
)

// questionDimensions fixes the order and coverage of the three teach-back
// dimensions. Every generated set maps onto these positions.
var questionDimensions = [3]types.Dimension{
	types.DimensionMedication,
	types.DimensionFollowUp,
	types.DimensionWarning,
}

// canonicalQuestions is the fixed fallback set used when no generative
// provider is configured or its output is unusable. Exactly one question
// per dimension.
func canonicalQuestions() []types.TeachBackQuestion {
	return []types.TeachBackQuestion{
		{Dimension: types.DimensionMedication, Text: "Can you tell me which medicines you need to take, and how often you should take them?"},
		{Dimension: types.DimensionFollowUp, Text: "When do you need to come back to see the doctor?"},
		{Dimension: types.DimensionWarning, Text: "Which symptoms would mean you should get medical help right away?"},
	}
}

// GenerateQuestions produces exactly three teach-back questions covering
// medication adherence, follow-up timing, and warning signs. It never
// returns fewer than three: malformed or short generative output falls back
// to the canonical set.
func (e *Engine) GenerateQuestions(ctx context.Context, record types.ClinicalRecord) []types.TeachBackQuestion {
	if e.llm == nil {
		return canonicalQuestions()
	}

	ctx, span := observe.StartSpan(ctx, "teachback.generate_questions")
	defer span.End()

	prompt := fmt.Sprintf(
		"A doctor has finished a consultation with these findings:\n"+
			"Symptoms: %s\nDiagnosis: %s\nMedications: %s\nFollow-up: %s\n\n"+
			"Write exactly 3 simple teach-back questions to check the patient understood "+
			"their instructions, in this order:\n"+
			"1. one about how and when to take their medication\n"+
			"2. one about when to return for follow-up\n"+
			"3. one about which warning signs require immediate medical attention\n"+
			"Use plain, friendly language a patient can answer out loud. "+
			"Return a JSON array of exactly 3 strings, nothing else.",
		record.Symptoms, record.Diagnosis, record.Medications, record.FollowUp)

	start := time.Now()
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		Temperature: 0.4,
	})
	if e.metrics != nil {
		e.metrics.GenerateDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil || resp == nil {
		observe.Logger(ctx).Debug("question generation failed, using canonical set", "error", err)
		if e.metrics != nil {
			e.metrics.RecordTier(ctx, "questions", "canonical")
		}
		return canonicalQuestions()
	}

	texts, perr := parseStringArray(resp.Content)
	if perr != nil || len(texts) < 3 {
		observe.Logger(ctx).Debug("question generation returned malformed output, using canonical set",
			"error", perr, "count", len(texts))
		if e.metrics != nil {
			e.metrics.RecordTier(ctx, "questions", "canonical")
		}
		return canonicalQuestions()
	}

	questions := make([]types.TeachBackQuestion, 3)
	for i := 0; i < 3; i++ {
		text := strings.TrimSpace(texts[i])
		if text == "" {
			if e.metrics != nil {
				e.metrics.RecordTier(ctx, "questions", "canonical")
			}
			return canonicalQuestions()
		}
		questions[i] = types.TeachBackQuestion{
			Dimension: questionDimensions[i],
			Text:      text,
		}
	}

	if e.metrics != nil {
		e.metrics.RecordTier(ctx, "questions", "generative")
	}
	return questions
}

// parseStringArray parses a model response as a JSON array of strings,
// tolerating markdown fences and surrounding prose by isolating the
// outermost bracketed structure.
func parseStringArray(raw string) ([]string, error) {
	cleaned := stripFences(raw)

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("teachback: no JSON array in response")
	}

	var out []string
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("teachback: parse response: %w", err)
	}
	return out, nil
}
