// This file contains the NativeEngine implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables. ffmpeg must be on PATH for
// container decoding.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/medvoice-ai/teachback/pkg/provider/stt"
)

// Compile-time assertion that NativeEngine satisfies stt.Engine.
var _ stt.Engine = (*NativeEngine)(nil)

const (
	// Beam search widths per quality level. The accurate pass searches wider;
	// longer recordings amortise the extra latency.
	fastBeamSize     = 3
	accurateBeamSize = 5
)

// NativeEngine implements stt.Engine using whisper.cpp Go bindings (CGO),
// eliminating HTTP overhead entirely. The model is loaded once at startup
// and shared across all requests; each request gets its own whisper context
// because contexts are not thread-safe.
type NativeEngine struct {
	model    whisperlib.Model
	language string

	// inferMu serialises inference. whisper.cpp contexts hold per-call
	// scratch state inside the shared model and concurrent Process calls on
	// one model are not supported.
	inferMu sync.Mutex
}

// NativeOption is a functional option for configuring a NativeEngine.
type NativeOption func(*NativeEngine)

// WithNativeLanguage pins the transcription language (e.g., "en", "ta").
// Defaults to "auto", which enables per-recording language detection.
func WithNativeLanguage(lang string) NativeOption {
	return func(e *NativeEngine) { e.language = lang }
}

// NewNative creates a NativeEngine that loads the whisper.cpp model from the
// given file path. The model is loaded once and shared across all requests.
// The caller must call Close when the engine is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeEngine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	e := &NativeEngine{
		model:    model,
		language: "auto",
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Close releases the whisper model. Must be called when the engine is no
// longer needed.
func (e *NativeEngine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// Transcribe implements stt.Engine. The encoded recording is decoded through
// a transient file (removed on every exit path) and run through whisper.cpp
// with the requested decode quality and priming prompt.
func (e *NativeEngine) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	if len(req.Audio) == 0 {
		return nil, errors.New("whisper: audio must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	samples, err := decodeToSamples(ctx, req.Audio, req.FormatHint)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return &stt.Result{Text: "", Language: e.resolveLanguage(req.Language)}, nil
	}

	e.inferMu.Lock()
	defer e.inferMu.Unlock()

	wctx, err := e.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	lang := e.resolveLanguage(req.Language)
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using model default",
			"language", lang, "error", err)
	}
	if req.Prompt != "" {
		wctx.SetInitialPrompt(req.Prompt)
	}
	if req.Quality == stt.QualityAccurate {
		wctx.SetBeamSize(accurateBeamSize)
	} else {
		wctx.SetBeamSize(fastBeamSize)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	detected := wctx.DetectedLanguage()
	if detected == "" || detected == "auto" {
		detected = lang
	}

	return &stt.Result{
		Text:     strings.Join(parts, " "),
		Language: detected,
	}, nil
}

// resolveLanguage picks the per-request language, falling back to the
// engine-level setting. "auto" enables detection.
func (e *NativeEngine) resolveLanguage(reqLang string) string {
	if reqLang != "" {
		return reqLang
	}
	if e.language != "" {
		return e.language
	}
	return "auto"
}
