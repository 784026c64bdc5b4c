// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to feed controlled transcription results and inspect which
// audio windows were delivered.
package mock

import (
	"context"
	"sync"

	"github.com/sotto-ai/sotto/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is the request passed to Transcribe. Samples are not copied.
	Req stt.Request
}

// Provider is a mock implementation of stt.Provider. Results are returned in
// order; once exhausted, Transcribe returns an empty Result.
type Provider struct {
	mu sync.Mutex

	// Results is the queue of results to return, one per call.
	Results []stt.Result

	// TranscribeErr, if non-nil, is returned as the error from every call.
	TranscribeErr error

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall

	next int
}

// Transcribe records the call and pops the next queued result.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (stt.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: req})
	if p.TranscribeErr != nil {
		return stt.Result{}, p.TranscribeErr
	}
	if p.next >= len(p.Results) {
		return stt.Result{}, nil
	}
	res := p.Results[p.next]
	p.next++
	return res, nil
}

// TranscribeCallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) TranscribeCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls and rewinds the result queue. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
	p.next = 0
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
