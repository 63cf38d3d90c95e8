package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/scribe/internal/clarify"
	"github.com/MrWong99/scribe/internal/entity"
)

// lookupProjectArgs is the JSON-decoded input for "lookup_project".
type lookupProjectArgs struct {
	Name          string `json:"name" jsonschema_description:"The project or term name as it appears in the transcript."`
	TriggerPhrase string `json:"triggerPhrase,omitempty" jsonschema_description:"The surrounding phrase that suggests a project is meant."`
}

func newLookupProject(tc *Context) Tool {
	return New("lookup_project",
		"Look up a project or technical term mentioned in the transcript. Returns the known project and its correct name, or asks the user about unknown names.",
		func(ctx context.Context, a lookupProjectArgs) (Result, error) {
			name := strings.TrimSpace(a.Name)
			if name == "" {
				return failed("name is required"), nil
			}

			if v, hit := tc.lookupResolved(name); hit {
				return ok(map[string]any{
					"found":      true,
					"cached":     true,
					"name":       name,
					"suggestion": v,
				}), nil
			}

			if tc.Store != nil {
				if tc.Store.IsIgnored(name) {
					return ok(map[string]any{
						"found":   false,
						"ignored": true,
						"name":    name,
					}), nil
				}
				if res, hit := tc.findProject(name, a.TriggerPhrase); hit {
					return res, nil
				}
			}

			projects := tc.activeProjects()
			excerpt, _ := Excerpt(tc.TranscriptText, name)
			res := ok(map[string]any{
				"found": false,
				"name":  name,
			})
			res.NeedsUserInput = true
			res.UserPrompt = projectPrompt(name, excerpt, projects)
			res.Clarification = &Clarification{
				Kind:          clarify.KindNewProject,
				Term:          name,
				Excerpt:       excerpt,
				KnownProjects: projects,
			}
			return res, nil
		})
}

// findProject tries, in order: an exact project name, a matching term's
// projects, a sounds-like hit, then the trigger phrase against every
// project's explicit phrases.
func (c *Context) findProject(name, trigger string) (Result, bool) {
	projects := c.Store.AllProjects()
	byID := make(map[string]entity.Entity, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}

	for _, p := range projects {
		if strings.EqualFold(p.Name, name) {
			return projectFound(name, p, nil, "name"), true
		}
	}

	for _, e := range c.Store.Search(name) {
		if e.Type != entity.TypeTerm {
			continue
		}
		if p, hit := firstProject(e, byID); hit {
			t := e
			return projectFound(name, p, &t, "term"), true
		}
	}

	if e, hit := c.Store.FindBySoundsLike(name); hit {
		switch e.Type {
		case entity.TypeProject:
			return projectFound(name, e, nil, "sounds_like"), true
		case entity.TypeTerm:
			if p, hit := firstProject(e, byID); hit {
				t := e
				return projectFound(name, p, &t, "sounds_like"), true
			}
		}
	}

	if trigger = strings.ToLower(strings.TrimSpace(trigger)); trigger != "" {
		for _, p := range projects {
			for _, phrase := range p.ExplicitPhrases() {
				phrase = strings.ToLower(strings.TrimSpace(phrase))
				if phrase != "" && strings.Contains(trigger, phrase) {
					return projectFound(name, p, nil, "trigger_phrase"), true
				}
			}
		}
	}
	return Result{}, false
}

func firstProject(term entity.Entity, byID map[string]entity.Entity) (entity.Entity, bool) {
	for _, id := range term.Projects {
		if p, ok := byID[id]; ok {
			return p, true
		}
	}
	return entity.Entity{}, false
}

func projectFound(heard string, p entity.Entity, term *entity.Entity, via string) Result {
	project := map[string]any{"id": p.ID, "name": p.Name}
	if d := p.Destination(); d != "" {
		project["destination"] = d
	}
	if p.Description != "" {
		project["description"] = p.Description
	}
	data := map[string]any{
		"found":      true,
		"name":       heard,
		"project":    project,
		"suggestion": p.Name,
		"matchedBy":  via,
	}
	refs := []EntityRef{{ID: p.ID, Type: entity.TypeProject}}
	if term != nil {
		t := map[string]any{"id": term.ID, "name": term.Name}
		if term.Expansion != "" {
			t["expansion"] = term.Expansion
		}
		data["term"] = t
		data["suggestion"] = term.Name
		refs = append(refs, EntityRef{ID: term.ID, Type: entity.TypeTerm})
	}
	res := ok(data)
	res.Entities = refs
	return res
}

func projectPrompt(name, excerpt string, projects []entity.Entity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Unknown project or term %q.", name)
	if excerpt != "" {
		fmt.Fprintf(&b, "\nContext: %q", excerpt)
	}
	if len(projects) > 0 {
		b.WriteString("\nKnown projects:")
		for i, p := range projects {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, p.Name)
		}
	}
	b.WriteString("\nIs this a new project, a known project or term, or something to ignore?")
	return b.String()
}
