package transcript

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/medvoice-ai/teachback/pkg/provider/llm"
	"github.com/medvoice-ai/teachback/pkg/provider/llm/mock"
)

func TestCleanAndLabel_EmptyInput(t *testing.T) {
	t.Parallel()

	pp := NewPostProcessor(nil)
	if got := pp.CleanAndLabel(context.Background(), "  \n "); got != "" {
		t.Fatalf("CleanAndLabel = %q, want empty", got)
	}
}

func TestCleanAndLabel_AlreadyLabelledPassesThrough(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{}
	pp := NewPostProcessor(p)
	text := "Doctor: Hello.\nPatient: Hi."

	if got := pp.CleanAndLabel(context.Background(), text); got != text {
		t.Fatalf("CleanAndLabel = %q, want unchanged input", got)
	}
	if p.CallCount() != 0 {
		t.Fatalf("made %d model calls for labelled English text, want 0", p.CallCount())
	}
}

func TestCleanAndLabel_GenerativeLabelling(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "Doctor: How are you?\nPatient: I have a fever.",
		},
	}
	pp := NewPostProcessor(p)

	got := pp.CleanAndLabel(context.Background(), "How are you? I have a fever.")
	if !strings.HasPrefix(got, "Doctor:") {
		t.Fatalf("CleanAndLabel = %q, want model-labelled output", got)
	}
}

func TestCleanAndLabel_UnlabelledModelOutputFallsBackToHeuristic(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "just some prose without labels"},
	}
	pp := NewPostProcessor(p)

	got := pp.CleanAndLabel(context.Background(), "How are you? I have a fever.")
	if !HasSpeakerLabels(got) {
		t.Fatalf("CleanAndLabel = %q, heuristic fallback must still label", got)
	}
}

func TestCleanAndLabel_ModelErrorFallsBackToHeuristic(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{CompleteErr: errors.New("model offline")}
	pp := NewPostProcessor(p)

	got := pp.CleanAndLabel(context.Background(), "How are you? I have a fever.")
	want := "Doctor: How are you?\nPatient: I have a fever."
	if got != want {
		t.Fatalf("CleanAndLabel = %q, want %q", got, want)
	}
}

func TestCorrectTamil_DiscardsDrasticShrink(t *testing.T) {
	t.Parallel()

	// Ten sentences in, one short line out: the model summarised instead of
	// correcting, so the raw text must be kept.
	raw := strings.Repeat("எனக்கு தலைவலி இருக்கிறது. ", 10)
	p := &mock.Provider{
		Responses: []*llm.CompletionResponse{
			{Content: "தலைவலி."},
			// Labelling call afterwards.
			{Content: "Doctor: " + strings.TrimSpace(raw)},
		},
	}
	pp := NewPostProcessor(p)

	got := pp.CleanAndLabel(context.Background(), raw)
	if !strings.Contains(got, "தலைவலி இருக்கிறது") {
		t.Fatalf("CleanAndLabel = %q, shrunken correction must be discarded", got)
	}
}

func TestCorrectTamil_AcceptsFullLengthCorrection(t *testing.T) {
	t.Parallel()

	raw := "Doctor: எனக்கு தளைவலி இற்க்கிறது."
	corrected := "Doctor: எனக்கு தலைவலி இருக்கிறது."
	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: corrected},
	}
	pp := NewPostProcessor(p)

	if got := pp.CleanAndLabel(context.Background(), raw); got != corrected {
		t.Fatalf("CleanAndLabel = %q, want corrected text %q", got, corrected)
	}
}

func TestHeuristicLabel_AlternatesStartingWithDoctor(t *testing.T) {
	t.Parallel()

	got := HeuristicLabel("Hello. Hi doctor. What is wrong? I have a fever.")
	lines := strings.Split(got, "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines: %q", len(lines), got)
	}
	wantPrefixes := []string{DoctorLabel, PatientLabel, DoctorLabel, PatientLabel}
	for i, l := range lines {
		if !strings.HasPrefix(l, wantPrefixes[i]) {
			t.Errorf("line %d = %q, want prefix %q", i, l, wantPrefixes[i])
		}
	}
}

func TestHeuristicLabel_SingleSentenceGoesToDoctor(t *testing.T) {
	t.Parallel()

	got := HeuristicLabel("Take your medicine.")
	if got != "Doctor: Take your medicine." {
		t.Fatalf("HeuristicLabel = %q", got)
	}
}

func TestStripSpeakerLabels(t *testing.T) {
	t.Parallel()

	got := StripSpeakerLabels("Doctor: Hello.\npatient : Hi there.\nNo label here.")
	if strings.Contains(got, ":") && HasSpeakerLabels(got) {
		t.Fatalf("StripSpeakerLabels = %q, labels remain", got)
	}
	if !strings.Contains(got, "Hi there.") || !strings.Contains(got, "No label here.") {
		t.Fatalf("StripSpeakerLabels = %q, content lost", got)
	}
}

func TestContainsTamil(t *testing.T) {
	t.Parallel()

	if ContainsTamil("plain english text") {
		t.Fatal("ContainsTamil(english) = true")
	}
	if !ContainsTamil("fever என்றால் காய்ச்சல்") {
		t.Fatal("ContainsTamil(mixed) = false")
	}
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	got := SplitSentences("One. Two! Three? ")
	want := []string{"One.", "Two!", "Three?"}
	if len(got) != len(want) {
		t.Fatalf("SplitSentences = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d = %q, want %q", i, got[i], want[i])
		}
	}
}
