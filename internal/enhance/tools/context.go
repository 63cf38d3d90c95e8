package tools

import (
	"time"

	"github.com/MrWong99/scribe/internal/clarify"
	"github.com/MrWong99/scribe/internal/entity"
	"github.com/MrWong99/scribe/internal/routing"
)

// Context binds the tools of one [Registry] to a single transcript.
type Context struct {
	TranscriptText string
	AudioDate      time.Time
	SourceFile     string

	Store  entity.Store
	Router routing.Router

	// Interactive allows verify_spelling to ask the user.
	Interactive bool

	// Handler answers clarifications. Tools never call it; it rides along
	// for the executor.
	Handler clarify.Handler

	// Resolved is consulted by the lookup tools before the store. Nil
	// means nothing has been resolved yet.
	Resolved ResolvedView
}

func (c *Context) lookupResolved(name string) (string, bool) {
	if c.Resolved == nil {
		return "", false
	}
	return c.Resolved.Lookup(name)
}

// activeProjects returns the active projects known to the store.
func (c *Context) activeProjects() []entity.Entity {
	if c.Store == nil {
		return nil
	}
	var out []entity.Entity
	for _, p := range c.Store.AllProjects() {
		if p.IsActive() {
			out = append(out, p)
		}
	}
	return out
}
