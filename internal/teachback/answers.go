package teachback

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/medvoice-ai/teachback/internal/observe"
	"github.com/medvoice-ai/teachback/internal/transcript"
	"github.com/medvoice-ai/teachback/pkg/provider/llm"
	"github.com/medvoice-ai/teachback/pkg/types"
)

// maxAnswerChars caps each extracted answer. Anything longer is a model
// transcription dump rather than a summary.
const maxAnswerChars = 800

// ExtractAnswers locates the patient's answer to each question inside one
// "answer-all" recording transcript. Matching is content-based, not
// positional: the patient may answer out of order, merge answers, or skip
// questions entirely.
//
// Speaker labels are stripped before matching because diarization of a
// single-speaker answer recording is unreliable. Without a provider,
// matching degrades to the patient's utterances in recording order. The
// result always has exactly len(questions) entries; questions whose topic
// never appears get [types.NoAnswerText].
func (e *Engine) ExtractAnswers(ctx context.Context, questions []types.TeachBackQuestion, answerTranscript string) []string {
	answers := make([]string, len(questions))
	for i := range answers {
		answers[i] = types.NoAnswerText
	}

	cleaned := transcript.StripSpeakerLabels(answerTranscript)
	if strings.TrimSpace(cleaned) == "" || len(questions) == 0 {
		return answers
	}
	if e.llm == nil {
		// Without a model there is no content matching: take the patient's
		// utterances in recording order and pad the rest with the sentinel,
		// so an unanswered question still scores 0.
		for i, a := range splitPatientAnswers(answerTranscript) {
			if i >= len(answers) {
				break
			}
			answers[i] = capAnswer(a)
		}
		return answers
	}

	ctx, span := observe.StartSpan(ctx, "teachback.extract_answers")
	defer span.End()

	if batch, err := e.extractBatch(ctx, questions, cleaned); err == nil {
		if e.metrics != nil {
			e.metrics.RecordTier(ctx, "answers", "batch")
		}
		return batch
	} else {
		observe.Logger(ctx).Debug("batch answer extraction failed, falling back to sequential", "error", err)
	}

	// Sequential fallback: one slower independent call per question, same
	// content-matching contract.
	for i, q := range questions {
		answers[i] = e.extractOne(ctx, q, cleaned)
	}
	if e.metrics != nil {
		e.metrics.RecordTier(ctx, "answers", "sequential")
	}
	return answers
}

// extractBatch matches all questions in a single completion. Fails on any
// malformed output so the caller can fall back to sequential extraction.
func (e *Engine) extractBatch(ctx context.Context, questions []types.TeachBackQuestion, cleaned string) ([]string, error) {
	var qlist strings.Builder
	for i, q := range questions {
		fmt.Fprintf(&qlist, "%d. %s\n", i+1, q.Text)
	}

	prompt := fmt.Sprintf(
		"A patient answered several teach-back questions in one recording. "+
			"The answers may be in any order, combined, or missing.\n\n"+
			"Questions:\n%s\n"+
			"Patient's recording (transcribed):\n%s\n\n"+
			"For each question, find the part of the recording that answers it by topic "+
			"(for a medication question look for drug names, dosages, or frequency; for a "+
			"follow-up question look for dates or durations; for a warning-signs question "+
			"look for symptoms to watch for). Summarise each answer in one or two short "+
			"sentences. If the recording never addresses a question's topic, use exactly %q.\n"+
			"Return a JSON array of exactly %d strings in question order, nothing else.",
		qlist.String(), cleaned, types.NoAnswerText, len(questions))

	start := time.Now()
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		Temperature: 0.2,
	})
	if e.metrics != nil {
		e.metrics.GenerateDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordModelError(ctx, "llm", "answer_extract")
		}
		return nil, fmt.Errorf("teachback: batch completion: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("teachback: empty batch response")
	}

	parsed, err := parseStringArray(resp.Content)
	if err != nil {
		return nil, err
	}
	if len(parsed) < len(questions) {
		return nil, fmt.Errorf("teachback: batch returned %d answers for %d questions", len(parsed), len(questions))
	}

	answers := make([]string, len(questions))
	for i := range questions {
		a := strings.TrimSpace(parsed[i])
		if a == "" {
			a = types.NoAnswerText
		}
		answers[i] = capAnswer(a)
	}
	return answers, nil
}

// extractOne matches a single question against the full cleaned transcript.
// Any failure yields the no-answer sentinel rather than an error.
func (e *Engine) extractOne(ctx context.Context, q types.TeachBackQuestion, cleaned string) string {
	prompt := fmt.Sprintf(
		"Question asked to a patient: %s\n\n"+
			"Patient's full recording (transcribed):\n%s\n\n"+
			"Find the part of the recording that answers this question by topic and "+
			"summarise it in one or two short sentences. If the recording never "+
			"addresses the topic, reply with exactly %q. Return only the summary.",
		q.Text, cleaned, types.NoAnswerText)

	start := time.Now()
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		Temperature: 0.2,
	})
	if e.metrics != nil {
		e.metrics.GenerateDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil || resp == nil {
		if e.metrics != nil {
			e.metrics.RecordModelError(ctx, "llm", "answer_extract")
		}
		return types.NoAnswerText
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return types.NoAnswerText
	}
	return capAnswer(answer)
}

// splitPatientAnswers takes the patient's lines from a labelled recording in
// order. A recording with no speaker labels at all is treated as patient
// speech and split into sentences instead.
func splitPatientAnswers(recording string) []string {
	var out []string
	for _, line := range strings.Split(recording, "\n") {
		idx := strings.Index(strings.ToLower(line), "patient:")
		if idx < 0 {
			continue
		}
		if a := strings.TrimSpace(line[idx+len("patient:"):]); a != "" {
			out = append(out, a)
		}
	}
	if len(out) == 0 && !transcript.HasSpeakerLabels(recording) {
		out = transcript.SplitSentences(recording)
	}
	return out
}

// capAnswer truncates an answer to maxAnswerChars without splitting a
// multi-byte rune.
func capAnswer(a string) string {
	if len(a) <= maxAnswerChars {
		return a
	}
	cut := maxAnswerChars
	for cut > 0 && !utf8.RuneStart(a[cut]) {
		cut--
	}
	return a[:cut]
}
