// Package entity holds the context that transcript enhancement resolves
// names against: people, projects, companies, domain terms and the list of
// words the user asked to ignore.
//
// [Index] is the searchable in-memory view consumed by the enhancement tools.
// It loads from a pluggable [Backend] ([MemBackend], [DirBackend],
// [PostgresBackend]) and writes back through [Index.CommitEntity], which
// saves and reloads in one step so a new entity is visible to the very next
// lookup.
//
// All exported types are safe for concurrent use unless noted otherwise.
package entity

import (
	"slices"
	"time"
)

// Type classifies an entity.
type Type string

const (
	TypePerson  Type = "person"
	TypeProject Type = "project"
	TypeCompany Type = "company"
	TypeTerm    Type = "term"
	TypeIgnored Type = "ignored"
)

// Types lists every valid [Type] in a stable order.
var Types = []Type{TypePerson, TypeProject, TypeCompany, TypeTerm, TypeIgnored}

// IsValid reports whether t is a recognised entity type.
func (t Type) IsValid() bool {
	return slices.Contains(Types, t)
}

// Entity is a single named record in the context store. Which optional
// fields are meaningful depends on Type.
type Entity struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Type Type   `yaml:"type" json:"type"`

	// SoundsLike lists misheard variants of Name produced by transcription.
	SoundsLike []string `yaml:"sounds_like,omitempty" json:"sounds_like,omitempty"`

	// Person fields.
	Role    string `yaml:"role,omitempty" json:"role,omitempty"`
	Company string `yaml:"company,omitempty" json:"company,omitempty"`

	// Projects lists associated project ids (people and terms).
	Projects []string `yaml:"projects,omitempty" json:"projects,omitempty"`

	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Active is nil for "unspecified", which counts as active.
	Active *bool `yaml:"active,omitempty" json:"active,omitempty"`

	// Project fields.
	Classification *Classification `yaml:"classification,omitempty" json:"classification,omitempty"`
	Routing        *Routing        `yaml:"routing,omitempty" json:"routing,omitempty"`

	// Term fields.
	Expansion string `yaml:"expansion,omitempty" json:"expansion,omitempty"`

	Notes string `yaml:"notes,omitempty" json:"notes,omitempty"`

	// IgnoredAt is set on entities of type ignored.
	IgnoredAt *time.Time `yaml:"ignored_at,omitempty" json:"ignored_at,omitempty"`
}

// Classification drives phrase based project detection.
type Classification struct {
	ExplicitPhrases []string `yaml:"explicit_phrases,omitempty" json:"explicit_phrases,omitempty"`
	ContextType     string   `yaml:"context_type,omitempty" json:"context_type,omitempty"`
}

// Routing says where notes for a project are filed. A project without a
// Routing (or with an empty Destination) uses the global default.
type Routing struct {
	Destination string `yaml:"destination,omitempty" json:"destination,omitempty"`
	Structure   string `yaml:"structure,omitempty" json:"structure,omitempty"`
}

// IsActive reports whether the entity is active. Unset means active.
func (e Entity) IsActive() bool {
	return e.Active == nil || *e.Active
}

// Destination returns the entity's routing destination or "".
func (e Entity) Destination() string {
	if e.Routing == nil {
		return ""
	}
	return e.Routing.Destination
}

// ExplicitPhrases returns the project's classification phrases, or nil.
func (e Entity) ExplicitPhrases() []string {
	if e.Classification == nil {
		return nil
	}
	return e.Classification.ExplicitPhrases
}

// Clone returns a deep copy so callers can mutate slices and pointers
// without touching the indexed original.
func (e Entity) Clone() Entity {
	out := e
	out.SoundsLike = slices.Clone(e.SoundsLike)
	out.Projects = slices.Clone(e.Projects)
	if e.Active != nil {
		a := *e.Active
		out.Active = &a
	}
	if e.Classification != nil {
		c := *e.Classification
		c.ExplicitPhrases = slices.Clone(e.Classification.ExplicitPhrases)
		out.Classification = &c
	}
	if e.Routing != nil {
		r := *e.Routing
		out.Routing = &r
	}
	if e.IgnoredAt != nil {
		t := *e.IgnoredAt
		out.IgnoredAt = &t
	}
	return out
}
