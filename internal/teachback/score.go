package teachback

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/medvoice-ai/teachback/internal/observe"
	"github.com/medvoice-ai/teachback/pkg/provider/llm"
	"github.com/medvoice-ai/teachback/pkg/types"
)

// defaultScore is the neutral score assigned to a non-empty answer when no
// generative provider is available or scoring output is unusable.
const defaultScore = 75

// criticalGapThreshold marks a per-question score as a safety-relevant gap.
// Any score below it caps the holistic overall score (see OverallScore).
const criticalGapThreshold = 40

// Score evaluates one answer against the ClinicalRecord ground truth and
// returns an integer in [0,100].
//
// An empty or sentinel answer scores 0 deterministically, without any
// generative call. Scoring is language-independent: a correct answer in
// Tamil must score the same as its English equivalent.
func (e *Engine) Score(ctx context.Context, question types.TeachBackQuestion, answer string, record types.ClinicalRecord) int {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" || strings.EqualFold(trimmed, types.NoAnswerText) {
		return 0
	}
	if e.llm == nil {
		return defaultScore
	}

	ctx, span := observe.StartSpan(ctx, "teachback.score")
	defer span.End()

	dim := question.Dimension
	if dim == "" {
		dim = ClassifyQuestion(question.Text)
	}

	prompt := fmt.Sprintf(
		"Score how well a patient understood their instructions.\n\n"+
			"Question (%s): %s\n"+
			"Patient's answer: %s\n"+
			"Correct information from the consultation:\n%s\n\n"+
			"Rate the answer's factual correctness against the correct information "+
			"on a scale of 0 to 100. Judge meaning only: an answer in Tamil or any "+
			"other language is scored exactly as its English equivalent would be. "+
			"100 means fully correct, 0 means entirely wrong or unrelated. "+
			"Reply with only the number.",
		dim, question.Text, trimmed, groundTruth(dim, record))

	start := time.Now()
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		Temperature: 0.1,
	})
	if e.metrics != nil {
		e.metrics.GenerateDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil || resp == nil {
		if e.metrics != nil {
			e.metrics.RecordModelError(ctx, "llm", "score")
		}
		return defaultScore
	}

	score, ok := parseScore(resp.Content)
	if !ok {
		observe.Logger(ctx).Debug("unparseable score response, using neutral default",
			"response", resp.Content)
		return defaultScore
	}
	return score
}

// OverallScore derives the single holistic understanding score from all
// (question, answer, score) triples. It is explicitly not an arithmetic
// mean: the holistic assessment models "is this patient safe to discharge",
// and one critical gap must dominate the result. Whatever number the model
// produces, a per-question score below criticalGapThreshold caps the overall
// score at the midpoint of the mean and the minimum, which is always below
// the mean for dispersed scores.
//
// Without a generative provider the overall score falls back to the plain
// arithmetic mean of answered questions (0 when none are answered). That
// fallback contradicts the critical-gap weighting and is kept as-is for
// compatibility with existing stored scores.
func (e *Engine) OverallScore(ctx context.Context, questions []types.TeachBackQuestion, answers []types.TeachBackAnswer, record types.ClinicalRecord) int {
	if len(answers) == 0 {
		return 0
	}

	sum, min := 0, 100
	for _, a := range answers {
		s := clampScore(a.Score)
		sum += s
		if s < min {
			min = s
		}
	}
	mean := sum / len(answers)

	if e.llm == nil {
		return mean
	}

	ctx, span := observe.StartSpan(ctx, "teachback.overall_score")
	defer span.End()

	var triples strings.Builder
	for i, q := range questions {
		if i >= len(answers) {
			break
		}
		fmt.Fprintf(&triples, "Q%d (%s): %s\nAnswer: %s\nScore: %d\n\n",
			i+1, q.Dimension, q.Text, answers[i].Text, clampScore(answers[i].Score))
	}

	prompt := fmt.Sprintf(
		"A patient was asked teach-back questions after a consultation.\n\n%s"+
			"Consultation facts:\nDiagnosis: %s\nMedications: %s\nFollow-up: %s\n\n"+
			"Give one number from 0 to 100 answering: is this patient safe to go home "+
			"and manage their own care? A serious misunderstanding about medication, "+
			"follow-up, or warning signs must pull the number down sharply even when "+
			"the other answers are perfect. Reply with only the number.",
		triples.String(), record.Diagnosis, record.Medications, record.FollowUp)

	start := time.Now()
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		Temperature: 0.1,
	})
	if e.metrics != nil {
		e.metrics.GenerateDuration.Record(ctx, time.Since(start).Seconds())
	}

	overall := mean
	if err == nil && resp != nil {
		if parsed, ok := parseScore(resp.Content); ok {
			overall = parsed
		}
	} else if e.metrics != nil {
		e.metrics.RecordModelError(ctx, "llm", "overall_score")
	}

	// Deterministic critical-gap cap. The model is asked to weigh gaps, but
	// its output is untrusted; the cap enforces the policy regardless.
	if min < criticalGapThreshold {
		if ceiling := (mean + min) / 2; overall > ceiling {
			overall = ceiling
		}
		if overall > mean {
			overall = mean
		}
	}

	return clampScore(overall)
}

// ClassifyQuestion assigns a comprehension dimension to free-text question
// wording by keyword matching.
func ClassifyQuestion(text string) types.Dimension {
	lower := strings.ToLower(text)
	switch {
	case containsAnyOf(lower, "medicin", "medicat", "tablet", "drug", "dose", "take"):
		return types.DimensionMedication
	case containsAnyOf(lower, "come back", "follow", "return", "visit", "appointment", "when"):
		return types.DimensionFollowUp
	case containsAnyOf(lower, "warning", "emergency", "worse", "danger", "symptom", "right away", "immediately"):
		return types.DimensionWarning
	default:
		return types.DimensionGeneral
	}
}

// groundTruth selects the ClinicalRecord fields an answer on the given
// dimension is checked against.
func groundTruth(dim types.Dimension, record types.ClinicalRecord) string {
	switch dim {
	case types.DimensionMedication:
		return "Medications: " + record.Medications
	case types.DimensionFollowUp:
		return "Follow-up: " + record.FollowUp
	case types.DimensionWarning:
		return fmt.Sprintf("Diagnosis: %s\nFollow-up: %s", record.Diagnosis, record.FollowUp)
	default:
		return fmt.Sprintf("Symptoms: %s\nDiagnosis: %s\nMedications: %s\nFollow-up: %s",
			record.Symptoms, record.Diagnosis, record.Medications, record.FollowUp)
	}
}

// parseScore extracts the first integer from a model response and clamps it
// to [0,100]. Returns false when no integer is present.
func parseScore(raw string) (int, bool) {
	m := intRe.FindString(stripFences(raw))
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return clampScore(v), true
}

// containsAnyOf reports whether s contains any of the substrings.
func containsAnyOf(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
