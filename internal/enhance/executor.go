// Package enhance runs the agentic loop that corrects a transcript.
//
// An [Executor] hands the transcript to a reasoning model together with the
// tools of package tools, executes the tool calls the model makes, asks the
// user through a [clarify.Handler] when a lookup cannot be answered from the
// context store, and records the user's answers in the store. The loop ends
// when the model replies without tool calls or after [MaxIterations] tool
// turns.
//
// Process never fails. Errors degrade the result instead: the original text
// is returned with confidence 0.5, and nothing partially enhanced is ever
// returned.
package enhance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/scribe/internal/enhance/tools"
	"github.com/MrWong99/scribe/internal/observe"
	"github.com/MrWong99/scribe/internal/routing"
	"github.com/MrWong99/scribe/pkg/provider/llm"
)

// MaxIterations caps the number of tool turns per transcript.
const MaxIterations = 15

// minEnhancedLen is the shortest final reply, in characters, accepted as a
// transcript without asking again.
const minEnhancedLen = 50

// ErrTruncated is reported when a reply without tool calls stopped at the
// output token limit. A cut-off transcript is never used.
var ErrTruncated = errors.New("reply truncated at the output token limit")

const (
	confidenceEnhanced = 0.9
	confidenceForced   = 0.8
	confidenceFallback = 0.5
)

// Option configures an [Executor].
type Option func(*Executor)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithTemperature sets the sampling temperature of every completion.
func WithTemperature(t float64) Option {
	return func(e *Executor) { e.temperature = t }
}

// WithResolved shares a resolved cache across Process calls, so a name
// answered in one transcript is not asked again in the next. By default
// every call starts with an empty cache.
func WithResolved(r *tools.Resolved) Option {
	return func(e *Executor) { e.resolved = r }
}

// WithClock overrides the time source used for ignore-list timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// Executor enhances transcripts. It is safe for concurrent use as long as
// concurrent Process calls do not share a clarification handler that
// requires exclusive access.
type Executor struct {
	provider    llm.Provider
	toolCtx     tools.Context
	metrics     *observe.Metrics
	temperature float64
	resolved    *tools.Resolved
	now         func() time.Time
}

// New creates an Executor. toolCtx supplies the store, router, handler and
// interactive flag; its transcript text is replaced on every Process call
// and it is copied, so later changes to it have no effect.
func New(provider llm.Provider, toolCtx *tools.Context, opts ...Option) *Executor {
	e := &Executor{provider: provider, now: time.Now}
	if toolCtx != nil {
		e.toolCtx = *toolCtx
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// AvailableTools returns the names of the tools offered to the model.
func (e *Executor) AvailableTools() []string {
	return tools.NewRegistry(&tools.Context{}).Names()
}

// run is the mutable state of one Process call.
type run struct {
	e        *Executor
	tc       *tools.Context
	reg      *tools.Registry
	resolved *tools.Resolved

	state      State
	history    []llm.Message
	toolsUsed  []string
	iterations int
	tokens     int
	changes    []ContextChange
}

// Process enhances text and never returns nil.
func (e *Executor) Process(ctx context.Context, text string) *Result {
	ctx, span := observe.StartSpan(ctx, "enhance.Process")
	defer span.End()

	resolved := e.resolved
	if resolved == nil {
		resolved = tools.NewResolved()
	}
	tc := e.toolCtx
	tc.TranscriptText = text
	tc.Resolved = resolved

	r := &run{
		e:        e,
		tc:       &tc,
		reg:      tools.NewRegistry(&tc),
		resolved: resolved,
		state:    State{OriginalText: text},
	}

	enhanced, confidence, outcome, err := r.loop(ctx)
	if err != nil {
		observe.Logger(ctx).Warn("enhancement failed, keeping original transcript",
			"source", tc.SourceFile, "iterations", r.iterations, "err", err)
		span.RecordError(err)
		enhanced, confidence, outcome = text, confidenceFallback, "fallback"
	}

	r.state.CorrectedText = enhanced
	r.state.Confidence = confidence
	r.state.ResolvedEntities = resolved.Corrections()

	e.metrics.RecordEnhanceRun(ctx, outcome, r.iterations)
	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("iterations", r.iterations),
		attribute.Int("tokens", r.tokens),
	)

	return &Result{
		EnhancedText:   enhanced,
		State:          r.state,
		ToolsUsed:      dedup(r.toolsUsed),
		Iterations:     r.iterations,
		TotalTokens:    r.tokens,
		ContextChanges: r.changes,
	}
}

// loop drives the conversation and returns the final text.
func (r *run) loop(ctx context.Context) (text string, confidence float64, outcome string, err error) {
	original := r.state.OriginalText
	r.history = append(r.history, llm.Message{Role: llm.RoleUser, Content: initialPrompt(original)})

	resp, err := r.complete(ctx, true)
	if err != nil {
		return "", 0, "", err
	}

	for len(resp.ToolCalls) > 0 && r.iterations < MaxIterations {
		r.iterations++
		r.runTools(ctx, resp.ToolCalls)
		if err := ctx.Err(); err != nil {
			return "", 0, "", fmt.Errorf("enhance: tool turn %d: %w", r.iterations, err)
		}
		r.history = append(r.history, llm.Message{
			Role:    llm.RoleUser,
			Content: continuationPrompt(original, r.resolved.Corrections()),
		})
		if resp, err = r.complete(ctx, true); err != nil {
			return "", 0, "", err
		}
	}

	if content := strings.TrimSpace(resp.Content); utf8.RuneCountInString(content) > minEnhancedLen {
		return content, confidenceEnhanced, "enhanced", nil
	}

	// The cap can leave calls unanswered; the history must pair every call
	// with a tool message before it is sent again.
	for _, call := range resp.ToolCalls {
		r.history = append(r.history, llm.Message{
			Role:       llm.RoleTool,
			ToolCallID: call.ID,
			Content:    encodeResult(tools.Result{Success: false, Error: "not executed: tool turn limit reached"}),
		})
	}
	r.history = append(r.history, llm.Message{
		Role:    llm.RoleUser,
		Content: forcePrompt(original, r.resolved.Corrections()),
	})
	forced, err := r.complete(ctx, false)
	if err != nil {
		return "", 0, "", err
	}
	if content := strings.TrimSpace(forced.Content); content != "" {
		return content, confidenceForced, "forced", nil
	}
	return original, confidenceForced, "forced", nil
}

// complete sends the history to the model and appends its reply. Tool
// calls without an id get a generated one.
func (r *run) complete(ctx context.Context, withTools bool) (*llm.CompletionResponse, error) {
	ctx, span := observe.StartSpan(ctx, "enhance.turn", trace.WithAttributes(
		attribute.Int("iteration", r.iterations),
		attribute.Bool("tools", withTools),
	))
	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     r.history,
		Temperature:  r.e.temperature,
	}
	if withTools {
		req.Tools = r.reg.Definitions()
	}

	start := time.Now()
	resp, err := r.e.provider.Complete(ctx, req)
	r.e.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err == nil && resp == nil {
		err = errors.New("empty completion response")
	}
	if err == nil && len(resp.ToolCalls) == 0 && resp.FinishReason == llm.FinishLength {
		err = ErrTruncated
	}
	if err != nil {
		err = fmt.Errorf("enhance: complete: %w", err)
		observe.EndSpan(span, err)
		return nil, err
	}
	defer span.End()

	out := *resp
	out.ToolCalls = slices.Clone(resp.ToolCalls)
	for i := range out.ToolCalls {
		if out.ToolCalls[i].ID == "" {
			out.ToolCalls[i].ID = "call_" + uuid.NewString()
		}
	}

	tokens := resp.Usage.TotalTokens
	if tokens == 0 {
		tokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens
	}
	r.tokens += tokens

	r.history = append(r.history, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   out.Content,
		ToolCalls: out.ToolCalls,
	})
	return &out, nil
}

// runTools executes calls in order and appends one tool message per call
// once all of them are done.
func (r *run) runTools(ctx context.Context, calls []llm.ToolCall) {
	msgs := make([]llm.Message, 0, len(calls))
	for _, call := range calls {
		res := r.execTool(ctx, call)
		r.toolsUsed = append(r.toolsUsed, call.Name)

		if res.Success {
			for _, ref := range res.Entities {
				r.state.ReferencedEntities.add(ref)
			}
			if res.Route != nil {
				r.adoptRoute(*res.Route, false)
			}
		}
		if res.NeedsUserInput && res.Clarification != nil && r.tc.Handler != nil {
			r.resolve(ctx, &res)
		}

		msgs = append(msgs, llm.Message{
			Role:       llm.RoleTool,
			ToolCallID: call.ID,
			Content:    encodeResult(res),
		})
	}
	r.history = append(r.history, msgs...)
}

// execTool runs one call. Tool errors become an unsuccessful result.
func (r *run) execTool(ctx context.Context, call llm.ToolCall) tools.Result {
	ctx, span := observe.StartSpan(ctx, "tool."+call.Name)
	start := time.Now()
	res, err := r.reg.Execute(ctx, call.Name, call.Arguments)

	status := "ok"
	switch {
	case err != nil:
		status = "error"
		observe.Logger(ctx).Warn("tool failed", "tool", call.Name, "err", err)
		res = tools.Result{Success: false, Error: err.Error()}
	case !res.Success:
		status = "unsuccessful"
	case res.NeedsUserInput:
		status = "needs_input"
	}
	r.e.metrics.RecordToolCall(ctx, call.Name, status, time.Since(start).Seconds())
	observe.EndSpan(span, err)
	return res
}

// adoptRoute records d. Explicit decisions come from the user and always
// win; others only replace a decision that is not more confident.
func (r *run) adoptRoute(d routing.Decision, explicit bool) {
	cur := r.state.RouteDecision
	if explicit || cur == nil || d.Confidence >= cur.Confidence {
		r.state.RouteDecision = &d
	}
}

func encodeResult(res tools.Result) string {
	b, err := json.Marshal(res)
	if err != nil {
		b, _ = json.Marshal(tools.Result{Success: false, Error: "unencodable tool result: " + err.Error()})
	}
	return string(b)
}

// dedup keeps the first occurrence of each name.
func dedup(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}
