// Package clarify defines the human-in-the-loop contract used when automatic
// resolution of a name, project or spelling is ambiguous.
//
// The enhancer sends a [Request] to a [Handler] and receives a [Response]:
// an optional free-text answer plus an optional structured [Answer] saying
// what to do with the context store. Answers form a closed set per request
// kind; [ProjectAnswer] variants apply to [KindNewProject] requests and
// [PersonAnswer] variants to [KindNewPerson] requests.
//
// How a request is presented to a human is up to the Handler. [FileHandler]
// replays answers recorded in a YAML file for unattended runs.
package clarify

import "context"

// Kind identifies what a clarification is about.
type Kind string

const (
	KindNewPerson  Kind = "new_person"
	KindNewProject Kind = "new_project"
	KindSpelling   Kind = "spelling"
)

// Request is a single question for the user.
type Request struct {
	Kind Kind `json:"type"`

	// Term is the word or name as it appears in the transcript.
	Term string `json:"term"`

	// Context is the prompt text, usually including a transcript excerpt
	// around Term.
	Context string `json:"context"`

	Suggestion string `json:"suggestion,omitempty"`

	// Options lists selectable known projects. Index i corresponds to the
	// index used by [ProjectLinkExisting], [ProjectDefineTerm] and
	// [PersonCreate].
	Options []string `json:"options,omitempty"`
}

// Response is the user's answer. Both fields are optional; a zero Response
// means "no answer".
type Response struct {
	// Text is the corrected spelling or canonical name, if any.
	Text string

	// Answer carries the wizard outcome, if any.
	Answer Answer
}

// Handler resolves clarification requests. Implementations may block for
// as long as a human needs; callers bound the wait through ctx.
type Handler interface {
	HandleClarification(ctx context.Context, req Request) (Response, error)
}

// HandlerFunc adapts a function to [Handler].
type HandlerFunc func(ctx context.Context, req Request) (Response, error)

// HandleClarification implements [Handler].
func (f HandlerFunc) HandleClarification(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
