// Package mock provides a test double for the stt.Engine interface.
package mock

import (
	"context"
	"sync"

	"github.com/medvoice-ai/teachback/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is the Request passed to Transcribe.
	Req stt.Request
}

// Engine is a mock implementation of stt.Engine.
// Zero values for response fields cause Transcribe to return nil, nil.
// Set Err to inject errors.
type Engine struct {
	mu sync.Mutex

	// Result is returned by Transcribe.
	Result *stt.Result

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// TranscribeCalls records every invocation of Transcribe in order.
	TranscribeCalls []TranscribeCall

	// CloseCalls is the number of times Close was called.
	CloseCalls int
}

// Transcribe records the call and returns Result, Err.
func (e *Engine) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.TranscribeCalls = append(e.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: req})
	return e.Result, e.Err
}

// Close records the call and returns nil.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CloseCalls++
	return nil
}

// Reset clears all recorded calls. Thread-safe.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.TranscribeCalls = nil
	e.CloseCalls = 0
}

// Ensure Engine implements stt.Engine at compile time.
var _ stt.Engine = (*Engine)(nil)
