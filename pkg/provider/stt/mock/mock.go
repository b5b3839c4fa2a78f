// Package mock provides an in-memory [stt.Provider] for unit tests.
package mock

import (
	"context"
	"sync"

	"github.com/oakfield-labs/captionrelay/pkg/provider/stt"
)

// Provider is a mock implementation of [stt.Provider].
type Provider struct {
	mu sync.Mutex

	// Transcripts is returned in order, one per call to Transcribe. When
	// exhausted, the last entry repeats.
	Transcripts []string

	// Err, if set, is returned by every call to Transcribe instead of a
	// transcript.
	Err error

	// Calls records every request passed to Transcribe, in order.
	Calls []stt.Request

	next int
}

// Transcribe implements [stt.Provider].
func (p *Provider) Transcribe(_ context.Context, req stt.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, req)
	if p.Err != nil {
		return "", p.Err
	}
	if len(p.Transcripts) == 0 {
		return "", nil
	}
	i := p.next
	if i >= len(p.Transcripts) {
		i = len(p.Transcripts) - 1
	} else {
		p.next++
	}
	return p.Transcripts[i], nil
}

// Reset clears recorded calls and replay state. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
	p.next = 0
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
