// Package mock provides a scripted test double for [clarify.Handler].
//
// Responses are keyed by the request term (case-insensitive). Every request
// is recorded for later assertion.
//
//	h := &mock.Handler{
//	    Responses: map[string]clarify.Response{
//	        "jon smth": {Text: "Jon Smith", Answer: clarify.PersonSkip{}},
//	    },
//	}
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/MrWong99/scribe/internal/clarify"
)

// Handler is a configurable [clarify.Handler].
type Handler struct {
	mu sync.Mutex

	// Responses maps lowercased terms to scripted responses.
	Responses map[string]clarify.Response

	// Default is returned for terms not in Responses.
	Default clarify.Response

	// Err, when non-nil, is returned for every request.
	Err error

	requests []clarify.Request
}

// HandleClarification implements [clarify.Handler].
func (h *Handler) HandleClarification(_ context.Context, req clarify.Request) (clarify.Response, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.requests = append(h.requests, req)
	if h.Err != nil {
		return clarify.Response{}, h.Err
	}
	if r, ok := h.Responses[strings.ToLower(strings.TrimSpace(req.Term))]; ok {
		return r, nil
	}
	return h.Default, nil
}

// Requests returns a copy of every recorded request in order.
func (h *Handler) Requests() []clarify.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]clarify.Request, len(h.requests))
	copy(out, h.requests)
	return out
}

var _ clarify.Handler = (*Handler)(nil)
