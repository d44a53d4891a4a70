package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/medvoice-ai/teachback/internal/transcribe"
	llmmock "github.com/medvoice-ai/teachback/pkg/provider/llm/mock"
	"github.com/medvoice-ai/teachback/pkg/provider/stt"
	sttmock "github.com/medvoice-ai/teachback/pkg/provider/stt/mock"
	"github.com/medvoice-ai/teachback/pkg/types"
)

const consultation = `Doctor: What brings you in today?
Patient: I have had a headache and fever since yesterday.
Doctor: This looks like a viral fever. I will prescribe Paracetamol 500mg three times a day.
Doctor: Come back for a follow up in one week.`

func TestPipeline_EndToEndWithoutProvider(t *testing.T) {
	t.Parallel()

	backend := &sttmock.Engine{
		Result: &stt.Result{Text: consultation, Language: "en"},
	}
	pipe := New(backend, nil)
	ctx := context.Background()

	transcript, err := pipe.Transcribe(ctx, make([]byte, 1000), "webm")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if transcript.Language != "en" {
		t.Fatalf("language = %q", transcript.Language)
	}

	record := pipe.ExtractRecord(ctx, transcript)
	if record.Empty() {
		t.Fatal("rule-based extraction produced an empty record")
	}
	if !strings.Contains(record.Medications, "Paracetamol 500mg") {
		t.Fatalf("Medications = %q", record.Medications)
	}

	questions := pipe.GenerateQuestions(ctx, record)
	if len(questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(questions))
	}

	recording := "Patient: I take the Paracetamol 500mg tablet three times a day.\n" +
		"Patient: I will come back for the follow up in one week."
	result := pipe.ScoreTeachBack(ctx, questions, recording, record)
	if len(result.Answers) != 3 {
		t.Fatalf("got %d answers, want 3", len(result.Answers))
	}
	// Two patient lines answer the first two questions at the neutral
	// default; the warning-signs question stays unanswered and scores 0
	// instead of inheriting the default, so the mean is (75+75+0)/3.
	if result.Answers[2].Text != types.NoAnswerText {
		t.Fatalf("answer 2 text = %q, want sentinel", result.Answers[2].Text)
	}
	if result.Answers[2].Score != 0 {
		t.Fatalf("answer 2 score = %d, want 0", result.Answers[2].Score)
	}
	if result.OverallScore != 50 {
		t.Fatalf("OverallScore = %d, want 50", result.OverallScore)
	}

	report := pipe.ComposeReport(ctx, record, "en")
	if report.Content == "" || report.WarningSigns == "" {
		t.Fatalf("report incomplete: %+v", report)
	}
}

func TestPipeline_EmptyAnswerRecordingScoresZero(t *testing.T) {
	t.Parallel()

	backend := &sttmock.Engine{Result: &stt.Result{Text: consultation}}
	pipe := New(backend, nil)
	ctx := context.Background()

	record := types.ClinicalRecord{Medications: "Paracetamol 500mg"}
	questions := pipe.GenerateQuestions(ctx, record)

	result := pipe.ScoreTeachBack(ctx, questions, "", record)
	for i, a := range result.Answers {
		if a.Text != types.NoAnswerText {
			t.Errorf("answer %d text = %q, want sentinel", i, a.Text)
		}
		if a.Score != 0 {
			t.Errorf("answer %d score = %d, want 0", i, a.Score)
		}
	}
	if result.OverallScore != 0 {
		t.Fatalf("OverallScore = %d, want 0 for a silent patient", result.OverallScore)
	}
}

func TestPipeline_TranscribeErrorPropagates(t *testing.T) {
	t.Parallel()

	backend := &sttmock.Engine{Err: errors.New("backend down")}
	pipe := New(backend, nil)

	if _, err := pipe.Transcribe(context.Background(), make([]byte, 1000), "webm"); err == nil {
		t.Fatal("expected transcription error")
	}

	if _, err := pipe.Transcribe(context.Background(), []byte{1}, "webm"); !errors.Is(err, transcribe.ErrAudioTooShort) {
		t.Fatalf("err = %v, want ErrAudioTooShort", err)
	}
}

func TestPipeline_TranscriptsGetSpeakerLabels(t *testing.T) {
	t.Parallel()

	backend := &sttmock.Engine{
		Result: &stt.Result{Text: "What brings you in? I have a fever.", Language: "en"},
	}
	pipe := New(backend, nil)

	transcript, err := pipe.Transcribe(context.Background(), make([]byte, 1000), "webm")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if !strings.Contains(transcript.Text, "Doctor:") || !strings.Contains(transcript.Text, "Patient:") {
		t.Fatalf("transcript = %q, want speaker labels applied", transcript.Text)
	}
}

func TestPipeline_LocalizeRecordKeepsShape(t *testing.T) {
	t.Parallel()

	backend := &sttmock.Engine{Result: &stt.Result{Text: "x"}}
	pipe := New(backend, nil)

	record := types.ClinicalRecord{
		Symptoms:    "fever",
		Diagnosis:   "viral fever",
		Medications: "Paracetamol 500mg",
		FollowUp:    "one week",
	}

	// No translator backends configured: localization must return the
	// original values rather than dropping fields.
	got := pipe.LocalizeRecord(context.Background(), record, "ta")
	if got != record {
		t.Fatalf("LocalizeRecord = %+v, want %+v", got, record)
	}
}

func TestPipeline_LocalizeQuestionsKeepsDimensions(t *testing.T) {
	t.Parallel()

	backend := &sttmock.Engine{Result: &stt.Result{Text: "x"}}
	p := &llmmock.Provider{}
	pipe := New(backend, p)

	questions := pipe.GenerateQuestions(context.Background(), types.ClinicalRecord{})
	localized := pipe.LocalizeQuestions(context.Background(), questions, "en")

	if len(localized) != len(questions) {
		t.Fatalf("got %d localized questions, want %d", len(localized), len(questions))
	}
	for i := range questions {
		if localized[i].Dimension != questions[i].Dimension {
			t.Errorf("question %d dimension changed: %q -> %q", i, questions[i].Dimension, localized[i].Dimension)
		}
	}
}
