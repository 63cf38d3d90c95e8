package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/scribe/internal/clarify"
	"github.com/MrWong99/scribe/internal/entity"
)

// lookupPersonArgs is the JSON-decoded input for "lookup_person".
type lookupPersonArgs struct {
	Name     string `json:"name" jsonschema_description:"The person's name exactly as it appears in the transcript."`
	Phonetic string `json:"phonetic,omitempty" jsonschema_description:"How the name sounds, if the spelling looks like a transcription error."`
}

func newLookupPerson(tc *Context) Tool {
	return New("lookup_person",
		"Look up a person mentioned in the transcript. Returns the known person and the correct spelling of their name, or asks the user about unknown names.",
		func(ctx context.Context, a lookupPersonArgs) (Result, error) {
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
				for _, e := range tc.Store.Search(name) {
					if e.Type == entity.TypePerson {
						return personFound(name, e, "name"), nil
					}
				}
				if phon := strings.TrimSpace(a.Phonetic); phon != "" {
					if e, hit := tc.Store.FindBySoundsLike(phon); hit && e.Type == entity.TypePerson {
						return personFound(name, e, "phonetic"), nil
					}
				}
			}

			projects := tc.activeProjects()
			excerpt, _ := Excerpt(tc.TranscriptText, name)
			res := ok(map[string]any{
				"found": false,
				"name":  name,
			})
			res.NeedsUserInput = true
			res.UserPrompt = personPrompt(name, excerpt, projects)
			res.Clarification = &Clarification{
				Kind:          clarify.KindNewPerson,
				Term:          name,
				Excerpt:       excerpt,
				KnownProjects: projects,
			}
			return res, nil
		})
}

func personFound(heard string, p entity.Entity, via string) Result {
	person := map[string]any{"id": p.ID, "name": p.Name}
	if p.Role != "" {
		person["role"] = p.Role
	}
	if p.Company != "" {
		person["company"] = p.Company
	}
	if len(p.Projects) > 0 {
		person["projects"] = p.Projects
	}
	res := ok(map[string]any{
		"found":      true,
		"name":       heard,
		"person":     person,
		"suggestion": p.Name,
		"matchedBy":  via,
	})
	res.Entities = []EntityRef{{ID: p.ID, Type: entity.TypePerson}}
	return res
}

func personPrompt(name, excerpt string, projects []entity.Entity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Unknown person %q.", name)
	if excerpt != "" {
		fmt.Fprintf(&b, "\nContext: %q", excerpt)
	}
	if len(projects) > 0 {
		b.WriteString("\nKnown projects:")
		for i, p := range projects {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, p.Name)
		}
	}
	b.WriteString("\nWho is this, and how is the name spelled?")
	return b.String()
}
