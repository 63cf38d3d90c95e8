package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/scribe/internal/clarify"
)

// verifySpellingArgs is the JSON-decoded input for "verify_spelling".
type verifySpellingArgs struct {
	Term              string `json:"term" jsonschema_description:"The word whose spelling is uncertain."`
	Context           string `json:"context,omitempty" jsonschema_description:"The sentence the word appears in."`
	SuggestedSpelling string `json:"suggestedSpelling,omitempty" jsonschema_description:"Your best guess at the correct spelling."`
}

func newVerifySpelling(tc *Context) Tool {
	return New("verify_spelling",
		"Check the spelling of an unusual word, acronym or name that is neither a person nor a project.",
		func(ctx context.Context, a verifySpellingArgs) (Result, error) {
			term := strings.TrimSpace(a.Term)
			if term == "" {
				return failed("term is required"), nil
			}
			guess := strings.TrimSpace(a.SuggestedSpelling)
			if guess == "" {
				guess = term
			}

			if !tc.Interactive {
				return ok(map[string]any{
					"term":      term,
					"bestGuess": guess,
					"verified":  false,
				}), nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "How is %q spelled?", term)
			if c := strings.TrimSpace(a.Context); c != "" {
				fmt.Fprintf(&b, "\nContext: %q", c)
			}
			if s := strings.TrimSpace(a.SuggestedSpelling); s != "" {
				fmt.Fprintf(&b, "\nSuggested: %s", s)
			}

			res := ok(map[string]any{
				"term":      term,
				"bestGuess": guess,
				"verified":  false,
			})
			res.NeedsUserInput = true
			res.UserPrompt = b.String()
			res.Clarification = &Clarification{
				Kind:       clarify.KindSpelling,
				Term:       term,
				Excerpt:    strings.TrimSpace(a.Context),
				Suggestion: strings.TrimSpace(a.SuggestedSpelling),
			}
			return res, nil
		})
}
