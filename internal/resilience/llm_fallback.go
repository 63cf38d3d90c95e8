package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/scribe/internal/observe"
	"github.com/MrWong99/scribe/pkg/provider/llm"
)

// ErrAllFailed is returned when every provider of an [LLMFallback] failed or
// had an open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures the breaker created for each provider.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig

	// Metrics receives provider error counts. Nil uses
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

type fallbackEntry struct {
	name     string
	provider llm.Provider
	breaker  *CircuitBreaker
}

// LLMFallback implements [llm.Provider] over a primary and ordered
// fallbacks. A completion goes to the first provider whose breaker is not
// open; on failure the next one is tried.
//
// A failed completion returns no tool calls, so retrying it on another
// provider never repeats a tool side effect.
type LLMFallback struct {
	entries []fallbackEntry
	cfg     FallbackConfig
	metrics *observe.Metrics
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred
// provider.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	f := &LLMFallback{cfg: cfg, metrics: m}
	f.AddFallback(primaryName, primary)
	return f
}

// AddFallback appends a provider tried after all earlier ones. It must not
// be called concurrently with Complete.
func (f *LLMFallback) AddFallback(name string, p llm.Provider) {
	cb := f.cfg.CircuitBreaker
	cb.Name = name
	notify := cb.OnStateChange
	cb.OnStateChange = func(name string, from, to State) {
		f.metrics.RecordBreakerTransition(context.Background(), name, to.String())
		if notify != nil {
			notify(name, from, to)
		}
	}
	f.entries = append(f.entries, fallbackEntry{name: name, provider: p, breaker: NewCircuitBreaker(cb)})
}

// Names returns the provider names in the order they are tried.
func (f *LLMFallback) Names() []string {
	names := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		names = append(names, e.name)
	}
	return names
}

// Complete implements [llm.Provider]. Context cancellation stops the
// failover immediately.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	log := observe.Logger(ctx)
	var errs []error
	for i := range f.entries {
		e := &f.entries[i]
		var resp *llm.CompletionResponse
		err := e.breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			resp, err = e.provider.Complete(ctx, req)
			if err == nil && resp == nil {
				err = errors.New("empty response")
			}
			return err
		})
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("resilience: complete: %w", ctxErr)
		}
		errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
		if errors.Is(err, ErrCircuitOpen) {
			log.Debug("skipping provider, circuit open", "provider", e.name)
			continue
		}
		f.metrics.RecordProviderError(ctx, e.name)
		if i < len(f.entries)-1 {
			log.Warn("provider failed, trying next", "provider", e.name, "err", err)
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}

// CountTokens delegates to the primary provider.
func (f *LLMFallback) CountTokens(messages []llm.Message) (int, error) {
	return f.entries[0].provider.CountTokens(messages)
}

// Capabilities returns the primary provider's capabilities.
func (f *LLMFallback) Capabilities() llm.ModelCapabilities {
	return f.entries[0].provider.Capabilities()
}

// Ready returns nil while at least one provider's breaker accepts calls,
// and [ErrAllFailed] listing each breaker state otherwise.
func (f *LLMFallback) Ready(context.Context) error {
	var errs []error
	for _, e := range f.entries {
		s := e.breaker.State()
		if s != StateOpen {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: circuit %s", e.name, s))
	}
	return fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
