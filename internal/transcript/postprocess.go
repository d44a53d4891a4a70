// Package transcript post-processes raw speech-to-text output: it repairs
// garbled Tamil, attributes sentences to speakers, and strips speaker labels
// again where downstream matching must not trust them.
//
// This package never translates. Which language each sentence was spoken in
// is part of the transcript's meaning and is preserved exactly; rendering
// text into another language is the translation layer's job.
package transcript

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/medvoice-ai/teachback/internal/observe"
	"github.com/medvoice-ai/teachback/pkg/provider/llm"
	"github.com/medvoice-ai/teachback/pkg/types"
)

// Speaker labels used throughout the pipeline. The doctor speaks first in
// the heuristic attribution because consultations open with the doctor's
// greeting or question.
const (
	DoctorLabel  = "Doctor:"
	PatientLabel = "Patient:"
)

// sentenceRe splits text into sentences on terminal punctuation, keeping the
// punctuation with the sentence.
var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]*`)

// labelRe matches a speaker label at the start of a line or after
// whitespace, case-insensitively.
var labelRe = regexp.MustCompile(`(?i)(doctor|patient)\s*:`)

// PostProcessor cleans and speaker-labels raw transcripts. The provider may
// be nil, in which case only the deterministic paths run.
type PostProcessor struct {
	llm llm.Provider
}

// NewPostProcessor returns a PostProcessor backed by the given generative
// provider. Pass nil to run heuristics only.
func NewPostProcessor(p llm.Provider) *PostProcessor {
	return &PostProcessor{llm: p}
}

// CleanAndLabel corrects garbled Tamil output and applies speaker labels.
// It is total: for any input it returns usable text, degrading through
// generative and heuristic paths as needed.
func (pp *PostProcessor) CleanAndLabel(ctx context.Context, raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	if ContainsTamil(text) && pp.llm != nil {
		text = pp.correctTamil(ctx, text)
	}

	if HasSpeakerLabels(text) {
		return text
	}

	if pp.llm != nil {
		if labeled := pp.labelGeneratively(ctx, text); labeled != "" {
			return labeled
		}
	}

	return HeuristicLabel(text)
}

// correctTamil runs a generative spelling/grammar pass over Tamil text.
// The corrected output is discarded when it shrinks below half the input
// length, which indicates the model summarised or dropped content.
func (pp *PostProcessor) correctTamil(ctx context.Context, text string) string {
	prompt := fmt.Sprintf(
		"Fix the spelling and grammar of this Tamil transcription. "+
			"Keep all English medical terms, drug names, and dosages exactly as written. "+
			"Keep any speaker labels such as %q and %q exactly as written. "+
			"Do not translate, summarise, or shorten the text. "+
			"Return only the corrected text.\n\n%s",
		DoctorLabel, PatientLabel, text)

	resp, err := pp.llm.Complete(ctx, llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		Temperature: 0.2,
	})
	if err != nil || resp == nil {
		observe.Logger(ctx).Debug("tamil correction failed, keeping raw text", "error", err)
		return text
	}

	corrected := strings.TrimSpace(resp.Content)
	if corrected == "" || len(corrected)*2 < len(text) {
		// A drastic shrink means the model rewrote rather than corrected.
		return text
	}
	return corrected
}

// labelGeneratively asks the model to attribute each sentence to a speaker
// by content. Returns "" when the output is unusable so the caller falls
// back to the heuristic.
func (pp *PostProcessor) labelGeneratively(ctx context.Context, text string) string {
	prompt := fmt.Sprintf(
		"Attribute each sentence of this doctor-patient conversation to its speaker. "+
			"Diagnostic or prescriptive statements belong to the doctor; symptom "+
			"descriptions and questions about treatment belong to the patient. "+
			"Prefix each sentence with %q or %q. "+
			"Keep every sentence in the exact language it was spoken, do not translate. "+
			"If Tamil words were transcribed phonetically in Latin letters, rewrite them "+
			"in Tamil script. Return only the labelled conversation.\n\n%s",
		DoctorLabel, PatientLabel, text)

	resp, err := pp.llm.Complete(ctx, llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		Temperature: 0.2,
	})
	if err != nil || resp == nil {
		observe.Logger(ctx).Debug("generative speaker labelling failed", "error", err)
		return ""
	}

	labeled := strings.TrimSpace(resp.Content)
	if labeled == "" || !HasSpeakerLabels(labeled) {
		return ""
	}
	return labeled
}

// HeuristicLabel splits text on sentence-ending punctuation and alternates
// speaker labels, starting with the doctor. Single-sentence input is
// attributed entirely to the doctor.
func HeuristicLabel(text string) string {
	sentences := sentenceRe.FindAllString(text, -1)
	var lines []string
	for i, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		label := DoctorLabel
		if i%2 == 1 {
			label = PatientLabel
		}
		lines = append(lines, label+" "+s)
	}
	if len(lines) == 0 {
		return text
	}
	return strings.Join(lines, "\n")
}

// SplitSentences breaks text into sentences on terminal punctuation, keeping
// the punctuation with each sentence. Whitespace-only fragments are dropped.
func SplitSentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// HasSpeakerLabels reports whether text already carries explicit speaker
// markers.
func HasSpeakerLabels(text string) bool {
	return labelRe.MatchString(text)
}

// StripSpeakerLabels removes every speaker marker from text. Teach-back
// answer matching treats diarization labels as unreliable and must operate
// on unattributed text.
func StripSpeakerLabels(text string) string {
	stripped := labelRe.ReplaceAllString(text, "")
	lines := strings.Split(stripped, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ContainsTamil reports whether text contains characters from the Tamil
// Unicode block (U+0B80 to U+0BFF).
func ContainsTamil(text string) bool {
	for _, r := range text {
		if r >= 0x0B80 && r <= 0x0BFF {
			return true
		}
	}
	return false
}
