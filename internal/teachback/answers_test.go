package teachback

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/medvoice-ai/teachback/pkg/provider/llm"
	"github.com/medvoice-ai/teachback/pkg/provider/llm/mock"
	"github.com/medvoice-ai/teachback/pkg/types"
)

const answerRecording = `Patient: I take the Paracetamol 500mg three times a day after food.
Patient: I go back to the doctor next week.`

func TestExtractAnswers_EmptyRecordingYieldsSentinels(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{}
	e := NewEngine(p)
	questions := canonicalQuestions()

	answers := e.ExtractAnswers(context.Background(), questions, "   \n ")
	if len(answers) != len(questions) {
		t.Fatalf("got %d answers for %d questions", len(answers), len(questions))
	}
	for i, a := range answers {
		if a != types.NoAnswerText {
			t.Errorf("answer %d = %q, want sentinel", i, a)
		}
	}
	if p.CallCount() != 0 {
		t.Fatalf("made %d model calls for empty recording, want 0", p.CallCount())
	}
}

func TestExtractAnswers_NilProviderSplitsPatientLines(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil)
	questions := canonicalQuestions()

	answers := e.ExtractAnswers(context.Background(), questions, answerRecording)
	if len(answers) != 3 {
		t.Fatalf("got %d answers, want 3", len(answers))
	}
	if !strings.Contains(answers[0], "Paracetamol 500mg") {
		t.Errorf("answer 0 = %q, want the first patient line", answers[0])
	}
	if !strings.Contains(answers[1], "next week") {
		t.Errorf("answer 1 = %q, want the second patient line", answers[1])
	}
	// Two patient lines for three questions: the third stays unanswered so
	// it can score 0 instead of being backfilled with unrelated text.
	if answers[2] != types.NoAnswerText {
		t.Errorf("answer 2 = %q, want sentinel", answers[2])
	}
	for i, a := range answers {
		if strings.Contains(a, "Patient:") {
			t.Errorf("answer %d = %q, speaker labels must not leak through", i, a)
		}
	}
}

func TestExtractAnswers_NilProviderUnlabelledSplitsSentences(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil)
	questions := canonicalQuestions()
	recording := "I take the tablet three times a day. I will come back in one week."

	answers := e.ExtractAnswers(context.Background(), questions, recording)
	if !strings.Contains(answers[0], "three times a day") {
		t.Errorf("answer 0 = %q, want the first sentence", answers[0])
	}
	if !strings.Contains(answers[1], "one week") {
		t.Errorf("answer 1 = %q, want the second sentence", answers[1])
	}
	if answers[2] != types.NoAnswerText {
		t.Errorf("answer 2 = %q, want sentinel", answers[2])
	}
}

func TestExtractAnswers_BatchPath(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `["Takes Paracetamol 500mg three times a day.", "Returns next week.", "No answer provided"]`,
		},
	}
	e := NewEngine(p)
	questions := canonicalQuestions()

	answers := e.ExtractAnswers(context.Background(), questions, answerRecording)
	if p.CallCount() != 1 {
		t.Fatalf("made %d model calls, want 1 batch call", p.CallCount())
	}
	if answers[0] != "Takes Paracetamol 500mg three times a day." {
		t.Fatalf("answer 0 = %q", answers[0])
	}
	if answers[2] != types.NoAnswerText {
		t.Fatalf("answer 2 = %q, want sentinel", answers[2])
	}
}

func TestExtractAnswers_BatchFailureFallsBackToSequential(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		Responses: []*llm.CompletionResponse{
			// Batch call: malformed.
			{Content: "not an array"},
			// Then one call per question.
			{Content: "Takes the tablet three times a day."},
			{Content: "Comes back next week."},
			{Content: "No answer provided"},
		},
	}
	e := NewEngine(p)
	questions := canonicalQuestions()

	answers := e.ExtractAnswers(context.Background(), questions, answerRecording)
	if p.CallCount() != 4 {
		t.Fatalf("made %d model calls, want 1 failed batch + 3 sequential", p.CallCount())
	}
	if answers[0] != "Takes the tablet three times a day." {
		t.Fatalf("answer 0 = %q", answers[0])
	}
	if answers[2] != types.NoAnswerText {
		t.Fatalf("answer 2 = %q, want sentinel", answers[2])
	}
}

func TestExtractAnswers_SequentialErrorsYieldSentinels(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{CompleteErr: errors.New("model offline")}
	e := NewEngine(p)
	questions := canonicalQuestions()

	answers := e.ExtractAnswers(context.Background(), questions, answerRecording)
	for i, a := range answers {
		if a != types.NoAnswerText {
			t.Errorf("answer %d = %q, want sentinel when every call fails", i, a)
		}
	}
}

func TestExtractAnswers_CapsOverlongAnswers(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("very long answer ", 100)
	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `["` + long + `", "b", "c"]`,
		},
	}
	e := NewEngine(p)

	answers := e.ExtractAnswers(context.Background(), canonicalQuestions(), answerRecording)
	if len(answers[0]) > maxAnswerChars {
		t.Fatalf("answer 0 is %d chars, want at most %d", len(answers[0]), maxAnswerChars)
	}
}

func TestCapAnswer_KeepsRuneBoundary(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("மருந்து ", 200)
	capped := capAnswer(long)
	if len(capped) > maxAnswerChars {
		t.Fatalf("capped answer is %d bytes, want at most %d", len(capped), maxAnswerChars)
	}
	if !utf8.ValidString(capped) {
		t.Fatal("capped answer is not valid UTF-8")
	}
}

func TestExtractAnswers_NoQuestions(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{}
	e := NewEngine(p)

	answers := e.ExtractAnswers(context.Background(), nil, answerRecording)
	if len(answers) != 0 {
		t.Fatalf("got %d answers for 0 questions", len(answers))
	}
	if p.CallCount() != 0 {
		t.Fatalf("made %d model calls for 0 questions, want 0", p.CallCount())
	}
}
