package teachback

import (
	"context"
	"errors"
	"testing"

	"github.com/medvoice-ai/teachback/pkg/provider/llm"
	"github.com/medvoice-ai/teachback/pkg/provider/llm/mock"
	"github.com/medvoice-ai/teachback/pkg/types"
)

func medicationQuestion() types.TeachBackQuestion {
	return types.TeachBackQuestion{
		Dimension: types.DimensionMedication,
		Text:      "How will you take your medicine?",
	}
}

func TestScore_EmptyAnswerIsZeroWithoutModelCall(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "95"}}
	e := NewEngine(p)

	for _, answer := range []string{"", "  ", types.NoAnswerText, "no answer provided"} {
		if got := e.Score(context.Background(), medicationQuestion(), answer, testRecord); got != 0 {
			t.Errorf("Score(%q) = %d, want 0", answer, got)
		}
	}
	if p.CallCount() != 0 {
		t.Fatalf("made %d model calls for empty answers, want 0", p.CallCount())
	}
}

func TestScore_NilProviderReturnsNeutralDefault(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil)
	got := e.Score(context.Background(), medicationQuestion(), "I take it daily", testRecord)
	if got != defaultScore {
		t.Fatalf("Score = %d, want %d", got, defaultScore)
	}
}

func TestScore_ParsesAndClampsModelOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		want     int
	}{
		{"bare number", "85", 85},
		{"wrapped in prose", "I would rate this 70 out of 100.", 70},
		{"above range", "150", 100},
		{"negative", "-5", 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: tt.response}}
			e := NewEngine(p)

			got := e.Score(context.Background(), medicationQuestion(), "an answer", testRecord)
			if got != tt.want {
				t.Fatalf("Score = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScore_UnusableOutputReturnsNeutralDefault(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response *llm.CompletionResponse
		err      error
	}{
		{"provider error", nil, errors.New("model offline")},
		{"no number", &llm.CompletionResponse{Content: "a great answer"}, nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &mock.Provider{CompleteResponse: tt.response, CompleteErr: tt.err}
			e := NewEngine(p)

			got := e.Score(context.Background(), medicationQuestion(), "an answer", testRecord)
			if got != defaultScore {
				t.Fatalf("Score = %d, want %d", got, defaultScore)
			}
		})
	}
}

func TestOverallScore_NoAnswersIsZero(t *testing.T) {
	t.Parallel()

	e := NewEngine(&mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "90"}})
	if got := e.OverallScore(context.Background(), nil, nil, testRecord); got != 0 {
		t.Fatalf("OverallScore = %d, want 0", got)
	}
}

func TestOverallScore_NilProviderIsArithmeticMean(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil)
	answers := []types.TeachBackAnswer{{Score: 80}, {Score: 60}, {Score: 70}}

	got := e.OverallScore(context.Background(), canonicalQuestions(), answers, testRecord)
	if got != 70 {
		t.Fatalf("OverallScore = %d, want 70", got)
	}
}

func TestOverallScore_CriticalGapCapsModelOutput(t *testing.T) {
	t.Parallel()

	// One critical gap must dominate even when the model says everything is
	// fine. mean=40, min=10, cap=(40+10)/2=25.
	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "95"}}
	e := NewEngine(p)
	answers := []types.TeachBackAnswer{{Score: 100}, {Score: 10}, {Score: 10}}

	got := e.OverallScore(context.Background(), canonicalQuestions(), answers, testRecord)
	if got > 25 {
		t.Fatalf("OverallScore = %d, want at most 25 with a critical gap", got)
	}
	if got >= criticalGapThreshold {
		t.Fatalf("OverallScore = %d, must stay below the critical gap threshold %d", got, criticalGapThreshold)
	}
}

func TestOverallScore_NoGapTrustsModel(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "88"}}
	e := NewEngine(p)
	answers := []types.TeachBackAnswer{{Score: 90}, {Score: 85}, {Score: 80}}

	got := e.OverallScore(context.Background(), canonicalQuestions(), answers, testRecord)
	if got != 88 {
		t.Fatalf("OverallScore = %d, want the model's 88", got)
	}
}

func TestOverallScore_ModelFailureFallsBackToMean(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{CompleteErr: errors.New("model offline")}
	e := NewEngine(p)
	answers := []types.TeachBackAnswer{{Score: 90}, {Score: 80}, {Score: 70}}

	got := e.OverallScore(context.Background(), canonicalQuestions(), answers, testRecord)
	if got != 80 {
		t.Fatalf("OverallScore = %d, want mean 80", got)
	}
}

func TestClassifyQuestion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want types.Dimension
	}{
		{"How should you take your tablets?", types.DimensionMedication},
		{"When will you come back for a follow-up?", types.DimensionFollowUp},
		{"Which warning signs need immediate attention?", types.DimensionWarning},
		{"How are you feeling today?", types.DimensionGeneral},
	}
	for _, tt := range tests {
		if got := ClassifyQuestion(tt.text); got != tt.want {
			t.Errorf("ClassifyQuestion(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestParseScore(t *testing.T) {
	t.Parallel()

	if _, ok := parseScore("no digits"); ok {
		t.Fatal("parseScore accepted digit-free input")
	}
	if got, ok := parseScore("```\n42\n```"); !ok || got != 42 {
		t.Fatalf("parseScore fenced = %d, %v", got, ok)
	}
}
