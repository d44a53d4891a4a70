// Package whisper provides whisper.cpp-backed speech-to-text engines.
//
// Two implementations are available:
//
//   - ServerEngine talks to a running whisper-server binary over its REST API
//     (POST /inference). No CGO or local model file is needed; the server
//     owns the model.
//   - NativeEngine links whisper.cpp directly via the official Go bindings
//     and loads the model in-process.
//
// Both decode the incoming container (webm, mp3, wav, ...) with ffmpeg
// through a transient file that is removed on every exit path.
//
// Usage:
//
//	e, err := whisper.NewServer("http://localhost:8080")
//	res, err := e.Transcribe(ctx, stt.Request{Audio: data, FormatHint: "webm"})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/medvoice-ai/teachback/pkg/provider/stt"
)

// Compile-time assertion that ServerEngine satisfies stt.Engine.
var _ stt.Engine = (*ServerEngine)(nil)

// ServerOption is a functional option for configuring a ServerEngine.
type ServerOption func(*ServerEngine)

// WithServerModel sets the model identifier forwarded to the whisper.cpp
// server (e.g., "base", "small"). When empty the server uses whichever model
// it was started with.
func WithServerModel(model string) ServerOption {
	return func(e *ServerEngine) { e.model = model }
}

// WithServerLanguage pins the transcription language sent to the server.
// Defaults to "auto".
func WithServerLanguage(lang string) ServerOption {
	return func(e *ServerEngine) { e.language = lang }
}

// WithServerHTTPClient overrides the HTTP client used for inference requests.
func WithServerHTTPClient(c *http.Client) ServerOption {
	return func(e *ServerEngine) { e.httpClient = c }
}

// ServerEngine implements stt.Engine backed by a whisper.cpp HTTP server.
type ServerEngine struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// NewServer creates a ServerEngine that connects to the whisper.cpp HTTP
// server at serverURL (e.g., "http://localhost:8080"). serverURL must be
// non-empty.
func NewServer(serverURL string, opts ...ServerOption) (*ServerEngine, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	e := &ServerEngine{
		serverURL:  serverURL,
		language:   "auto",
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Close implements stt.Engine. The server owns the model, so there is
// nothing to release.
func (e *ServerEngine) Close() error { return nil }

// Transcribe implements stt.Engine. The recording is decoded to 16 kHz mono
// PCM locally, wrapped in a WAV container, and POSTed to the server's
// /inference endpoint as multipart/form-data.
func (e *ServerEngine) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	if len(req.Audio) == 0 {
		return nil, errors.New("whisper: audio must not be empty")
	}

	pcm, err := decodeToPCM(ctx, req.Audio, req.FormatHint)
	if err != nil {
		return nil, err
	}
	lang := req.Language
	if lang == "" {
		lang = e.language
	}
	if len(pcm) == 0 {
		return &stt.Result{Text: "", Language: lang}, nil
	}

	wav := encodeWAV(pcm, decodeSampleRate, 1)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, fmt.Errorf("whisper: write wav data: %w", err)
	}

	fields := map[string]string{
		"language":        lang,
		"response_format": "json",
	}
	if e.model != "" {
		fields["model"] = e.model
	}
	if req.Prompt != "" {
		fields["prompt"] = req.Prompt
	}
	if req.Quality == stt.QualityAccurate {
		fields["beam_size"] = fmt.Sprint(accurateBeamSize)
	} else {
		fields["beam_size"] = fmt.Sprint(fastBeamSize)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("whisper: write %s field: %w", k, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	endpoint := e.serverURL + "/inference"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	detected := result.Language
	if detected == "" || detected == "auto" {
		detected = lang
	}

	return &stt.Result{Text: result.Text, Language: detected}, nil
}
