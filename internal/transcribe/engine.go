// Package transcribe turns raw consultation recordings into language-tagged
// transcripts. It validates input size, selects the decode quality from the
// recording length, and primes the speech model with clinical vocabulary.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medvoice-ai/teachback/internal/observe"
	"github.com/medvoice-ai/teachback/pkg/provider/stt"
	"github.com/medvoice-ai/teachback/pkg/types"
)

// ErrAudioTooShort is returned for recordings below the minimum byte
// threshold. This is a user input error: the clip is rejected before any
// decode is attempted and should be surfaced as "please record again".
var ErrAudioTooShort = errors.New("audio recording is too short")

// ErrEmptyTranscription is returned when decoding yields no text. There is
// no further fallback for this stage; the caller should tell the user the
// audio may be silent, too short, or in an unsupported format.
var ErrEmptyTranscription = errors.New("no speech detected in recording")

// domainPrompt primes the decoder toward consultation vocabulary. Whisper
// treats it as preceding context, biasing token choice toward drug names and
// dosage phrasing without forcing them.
const domainPrompt = "A medical consultation between a doctor and a patient, " +
	"possibly mixing English and Tamil, mentioning symptoms, diagnoses, " +
	"drug names and dosages such as Paracetamol 500mg, and follow-up instructions."

// Engine wraps a speech-to-text backend with the pipeline's input rules.
type Engine struct {
	stt               stt.Engine
	minBytes          int
	accurateThreshold int
	metrics           *observe.Metrics
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithThresholds overrides the minimum accepted recording size and the size
// above which the high-quality decode configuration is used.
func WithThresholds(minBytes, accurateThresholdBytes int) Option {
	return func(e *Engine) {
		if minBytes > 0 {
			e.minBytes = minBytes
		}
		if accurateThresholdBytes > 0 {
			e.accurateThreshold = accurateThresholdBytes
		}
	}
}

// WithMetrics sets the metrics instance used to record transcription latency.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine on top of the given speech backend.
func New(backend stt.Engine, opts ...Option) *Engine {
	e := &Engine{
		stt:               backend,
		minBytes:          500,
		accurateThreshold: 30000,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Transcribe converts one encoded recording into a language-tagged
// transcript. Language is auto-detected, never pinned: consultations
// routinely code-switch within a single utterance.
//
// Returns [ErrAudioTooShort] for near-empty clips without touching the
// speech backend, and [ErrEmptyTranscription] when decoding yields nothing.
func (e *Engine) Transcribe(ctx context.Context, audio []byte, formatHint string) (types.Transcript, error) {
	if len(audio) < e.minBytes {
		return types.Transcript{}, fmt.Errorf("%w: got %d bytes, need at least %d",
			ErrAudioTooShort, len(audio), e.minBytes)
	}

	quality := stt.QualityFast
	if len(audio) >= e.accurateThreshold {
		quality = stt.QualityAccurate
	}

	ctx, span := observe.StartSpan(ctx, "transcribe")
	defer span.End()

	start := time.Now()
	res, err := e.stt.Transcribe(ctx, stt.Request{
		Audio:      audio,
		FormatHint: formatHint,
		Quality:    quality,
		Prompt:     domainPrompt,
	})
	if e.metrics != nil {
		e.metrics.TranscribeDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		return types.Transcript{}, fmt.Errorf("transcribe: %w", err)
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return types.Transcript{}, fmt.Errorf("%w: audio may be silent, too short, or unsupported", ErrEmptyTranscription)
	}

	lang := res.Language
	if lang == "" || lang == "auto" {
		lang = "en"
	}

	observe.Logger(ctx).Debug("transcription complete",
		"bytes", len(audio),
		"quality", quality.String(),
		"language", lang,
		"chars", len(text),
	)

	return types.Transcript{Text: text, Language: lang}, nil
}
