// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify the requests a caller sends and to feed
// it a scripted sequence of responses without a live backend.
//
// Example:
//
//	p := &mock.Provider{
//	    Responses: []*llm.CompletionResponse{
//	        {ToolCalls: []llm.ToolCall{{ID: "1", Name: "lookup_person", Arguments: `{"name":"Jon"}`}}},
//	        {Content: "the corrected transcript"},
//	    },
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/scribe/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete. Messages is a copy taken
	// at call time, so later appends by the caller do not leak in.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
//
// Complete pops the next entry of Responses (and Errs at the same index) on
// every call. Once the queue is exhausted, CompleteResponse and CompleteErr are
// returned for every further call. Zero values return (nil, nil).
type Provider struct {
	mu sync.Mutex

	// Responses is the scripted sequence returned by successive Complete calls.
	Responses []*llm.CompletionResponse

	// Errs optionally pairs an error with the Responses entry at the same index.
	Errs []error

	// CompleteResponse is returned once Responses is exhausted.
	CompleteResponse *llm.CompletionResponse

	// CompleteErr is returned once Responses is exhausted.
	CompleteErr error

	// TokenCount is returned by CountTokens.
	TokenCount int

	// ModelCapabilities is returned by Capabilities.
	ModelCapabilities llm.ModelCapabilities

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall

	next int
}

// Complete records the call and returns the next scripted response.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	msgs := make([]llm.Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})

	if p.next < len(p.Responses) || p.next < len(p.Errs) {
		i := p.next
		p.next++
		var (
			resp *llm.CompletionResponse
			err  error
		)
		if i < len(p.Responses) {
			resp = p.Responses[i]
		}
		if i < len(p.Errs) {
			err = p.Errs[i]
		}
		return resp, err
	}
	return p.CompleteResponse, p.CompleteErr
}

// CountTokens returns TokenCount.
func (p *Provider) CountTokens(_ []llm.Message) (int, error) {
	return p.TokenCount, nil
}

// Capabilities returns ModelCapabilities.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return p.ModelCapabilities
}

// Calls returns a snapshot of the recorded Complete calls. Thread-safe.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompleteCall, len(p.CompleteCalls))
	copy(out, p.CompleteCalls)
	return out
}

// Reset clears recorded calls and rewinds the response queue. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
	p.next = 0
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
