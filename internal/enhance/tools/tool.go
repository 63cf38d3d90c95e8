// Package tools implements the functions the reasoning model may call while
// enhancing a transcript.
//
// Five tools are built by [NewRegistry]:
//   - "lookup_person"   resolves a heard name against known people.
//   - "lookup_project"  resolves a heard project or term name.
//   - "verify_spelling" asks the user to confirm a doubtful spelling.
//   - "route_note"      asks the routing engine where the note belongs.
//   - "store_context"   acknowledges a store request without writing.
//
// Tools never write to the context store or the resolved cache. When neither
// answers a lookup, a tool returns a [Result] with NeedsUserInput set and a
// [Clarification] describing what to ask; acting on it is the caller's job.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/MrWong99/scribe/internal/clarify"
	"github.com/MrWong99/scribe/internal/entity"
	"github.com/MrWong99/scribe/internal/routing"
	"github.com/MrWong99/scribe/pkg/provider/llm"
)

// Tool is a single callable function exposed to the model.
type Tool struct {
	// Definition is the descriptor presented to the model.
	Definition llm.ToolDefinition

	// Execute runs the tool. args is the JSON object the model produced.
	// A non-nil error means the tool itself failed; an unsuccessful Result
	// with a nil error is a normal outcome the model should see.
	Execute func(ctx context.Context, args string) (Result, error)
}

// Result is the envelope returned to the model as a tool message.
type Result struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`

	// NeedsUserInput marks the result as provisional. UserPrompt is then
	// non-empty.
	NeedsUserInput bool   `json:"needsUserInput,omitempty"`
	UserPrompt     string `json:"userPrompt,omitempty"`

	// Clarification carries the structured question behind UserPrompt.
	Clarification *Clarification `json:"-"`

	// Entities lists the context entities this result resolved to.
	Entities []EntityRef `json:"-"`

	// Route is set by route_note.
	Route *routing.Decision `json:"-"`
}

// Clarification is the question a lookup could not answer on its own.
type Clarification struct {
	Kind       clarify.Kind
	Term       string
	Excerpt    string
	Suggestion string

	// KnownProjects are the link candidates offered to the user, in the
	// order used by the indices of [clarify.ProjectAnswer] variants.
	KnownProjects []entity.Entity
}

// Request converts c into the request sent to a [clarify.Handler].
func (c *Clarification) Request(prompt string) clarify.Request {
	req := clarify.Request{
		Kind:       c.Kind,
		Term:       c.Term,
		Context:    prompt,
		Suggestion: c.Suggestion,
	}
	for _, p := range c.KnownProjects {
		req.Options = append(req.Options, p.Name)
	}
	return req
}

// EntityRef identifies a context entity referenced by a tool result.
type EntityRef struct {
	ID   string
	Type entity.Type
}

// ok builds a successful result.
func ok(data map[string]any) Result {
	return Result{Success: true, Data: data}
}

// failed builds an unsuccessful result the model is shown verbatim.
func failed(msg string) Result {
	return Result{Success: false, Error: msg}
}

// Handler is the typed body of a tool built with [New].
type Handler[T any] func(ctx context.Context, args T) (Result, error)

// New builds a [Tool] whose parameter schema is reflected from T. Fields
// tagged omitempty are optional; jsonschema_description tags become
// parameter descriptions.
func New[T any](name, description string, h Handler[T]) Tool {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var zero T
	schema := r.Reflect(zero)

	params := map[string]any{
		"type":       "object",
		"properties": schema.Properties,
	}
	if len(schema.Required) > 0 {
		params["required"] = schema.Required
	}

	return Tool{
		Definition: llm.ToolDefinition{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
		Execute: func(ctx context.Context, args string) (Result, error) {
			var a T
			if strings.TrimSpace(args) != "" {
				if err := json.Unmarshal([]byte(args), &a); err != nil {
					return Result{}, fmt.Errorf("tools: %s: failed to parse arguments: %w", name, err)
				}
			}
			return h(ctx, a)
		},
	}
}
