package tools

import (
	"strings"
	"sync"
)

// ResolvedView is the read-only side of [Resolved] given to tools.
type ResolvedView interface {
	// Lookup returns the canonical answer recorded for name.
	Lookup(name string) (string, bool)
}

// Correction is one entry of the resolved cache.
type Correction struct {
	// Heard is the name as first recorded.
	Heard    string
	Resolved string
}

// Resolved maps heard names to the answers already given for them during a
// session. Keys compare case-insensitively. Entries are never replaced or
// removed. The zero value is not usable; call [NewResolved].
//
// All methods are safe for concurrent use. A nil *Resolved is an empty,
// read-only cache.
type Resolved struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]Correction
}

var _ ResolvedView = (*Resolved)(nil)

// NewResolved returns an empty cache.
func NewResolved() *Resolved {
	return &Resolved{entries: make(map[string]Correction)}
}

func resolvedKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup implements [ResolvedView].
func (r *Resolved) Lookup(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.entries[resolvedKey(name)]
	return c.Resolved, ok
}

// Record stores heard → answer. It reports false and changes nothing when
// either side is blank or heard already has an answer.
func (r *Resolved) Record(heard, answer string) bool {
	if r == nil {
		return false
	}
	key := resolvedKey(heard)
	answer = strings.TrimSpace(answer)
	if key == "" || answer == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		return false
	}
	r.entries[key] = Correction{Heard: strings.TrimSpace(heard), Resolved: answer}
	r.order = append(r.order, key)
	return true
}

// Corrections returns every entry in insertion order.
func (r *Resolved) Corrections() []Correction {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Correction, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.entries[k])
	}
	return out
}

// Len returns the number of entries.
func (r *Resolved) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
