// Package stt defines the Engine interface for speech-to-text backends.
//
// Consultation recordings arrive as complete encoded files (webm, mp3, wav),
// not live streams, so the interface is batch-oriented: one Transcribe call
// per recording. Implementations must be safe for concurrent use; the
// underlying model is loaded once and shared across requests.
package stt

import "context"

// Quality selects the decode configuration for a transcription request.
type Quality int

const (
	// QualityFast uses a narrow decode search. Suitable for short clips
	// where latency matters more than the last point of accuracy.
	QualityFast Quality = iota

	// QualityAccurate uses a wider decode search. Longer recordings amortise
	// the extra latency better.
	QualityAccurate
)

// String returns the human-readable name of the quality level.
func (q Quality) String() string {
	if q == QualityAccurate {
		return "accurate"
	}
	return "fast"
}

// Request carries one complete encoded recording to transcribe.
type Request struct {
	// Audio is the encoded audio file content. Must be non-empty.
	Audio []byte

	// FormatHint is the file extension of the container/codec without the
	// leading dot (e.g., "webm", "mp3", "wav"). Used to name the transient
	// decode file so the demuxer can identify the format. May be empty.
	FormatHint string

	// Language pins the transcription language. Empty or "auto" enables
	// language auto-detection, which is the normal mode for code-switched
	// consultations.
	Language string

	// Quality selects the decode configuration.
	Quality Quality

	// Prompt is an optional priming context that biases decoding toward the
	// target vocabulary (drug names, dosages, clinical phrasing).
	Prompt string
}

// Result is the outcome of a successful transcription.
type Result struct {
	// Text is the raw transcribed text. May be empty when the recording
	// contains no decodable speech; callers decide whether that is an error.
	Text string

	// Language is the detected (or pinned) BCP-47 language code.
	Language string
}

// Engine is the abstraction over any speech-to-text backend.
type Engine interface {
	// Transcribe decodes and transcribes one complete recording. Returns an
	// error for decode or backend failures; an empty-but-successful decode
	// is returned as a Result with empty Text.
	Transcribe(ctx context.Context, req Request) (*Result, error)

	// Close releases the underlying model. The engine must not be used
	// after Close.
	Close() error
}
