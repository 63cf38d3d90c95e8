package enhance

import (
	"slices"

	"github.com/MrWong99/scribe/internal/enhance/tools"
	"github.com/MrWong99/scribe/internal/entity"
	"github.com/MrWong99/scribe/internal/routing"
)

// Action says what a durable context write did.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// ContextChange records one durable write to the context store.
type ContextChange struct {
	EntityType entity.Type `json:"entityType"`
	EntityID   string      `json:"entityId"`
	EntityName string      `json:"entityName"`
	Action     Action      `json:"action"`
	Details    string      `json:"details,omitempty"`
}

// ReferencedEntities holds the ids of context entities the transcript
// mentions, grouped by type. Each list is append-only and duplicate-free.
type ReferencedEntities struct {
	People    []string `json:"people,omitempty"`
	Projects  []string `json:"projects,omitempty"`
	Terms     []string `json:"terms,omitempty"`
	Companies []string `json:"companies,omitempty"`
}

func (r *ReferencedEntities) add(ref tools.EntityRef) {
	var list *[]string
	switch ref.Type {
	case entity.TypePerson:
		list = &r.People
	case entity.TypeProject:
		list = &r.Projects
	case entity.TypeTerm:
		list = &r.Terms
	case entity.TypeCompany:
		list = &r.Companies
	default:
		return
	}
	if ref.ID != "" && !slices.Contains(*list, ref.ID) {
		*list = append(*list, ref.ID)
	}
}

// All returns every referenced id.
func (r ReferencedEntities) All() []string {
	out := make([]string, 0, len(r.People)+len(r.Projects)+len(r.Terms)+len(r.Companies))
	out = append(out, r.People...)
	out = append(out, r.Projects...)
	out = append(out, r.Terms...)
	return append(out, r.Companies...)
}

// State is what one [Executor.Process] call learned about a transcript.
type State struct {
	OriginalText  string `json:"originalText"`
	CorrectedText string `json:"correctedText"`

	// ResolvedEntities maps heard names to the answers given for them, in
	// the order they were answered.
	ResolvedEntities []tools.Correction `json:"resolvedEntities,omitempty"`

	ReferencedEntities ReferencedEntities `json:"referencedEntities"`

	// RouteDecision is the most authoritative routing signal seen, if any.
	RouteDecision *routing.Decision `json:"routeDecision,omitempty"`

	// Confidence is 0.9 for a direct enhancement, 0.8 when the final text
	// had to be forced and 0.5 when the original text was kept after a
	// failure.
	Confidence float64 `json:"confidence"`
}

// Result is the outcome of [Executor.Process].
type Result struct {
	EnhancedText string `json:"enhancedText"`
	State        State  `json:"state"`

	// ToolsUsed lists each tool called at least once, in first-use order.
	ToolsUsed []string `json:"toolsUsed"`

	Iterations int `json:"iterations"`

	TotalTokens    int             `json:"totalTokens,omitempty"`
	ContextChanges []ContextChange `json:"contextChanges,omitempty"`
}
