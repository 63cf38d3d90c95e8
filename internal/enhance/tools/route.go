package tools

import (
	"context"
	"fmt"

	"github.com/MrWong99/scribe/internal/routing"
)

// routeNoteArgs is the JSON-decoded input for "route_note".
type routeNoteArgs struct {
	ProjectHint    string `json:"projectHint,omitempty" jsonschema_description:"The project this conversation is most likely about."`
	ContentSummary string `json:"contentSummary,omitempty" jsonschema_description:"One sentence describing the conversation."`
}

func newRouteNote(tc *Context) Tool {
	return New("route_note",
		"Decide where the finished note should be filed. Returns the routing decision and the output path.",
		func(ctx context.Context, a routeNoteArgs) (Result, error) {
			if tc.Router == nil {
				return failed("no routing engine configured"), nil
			}
			rc := routing.Context{
				TranscriptText: tc.TranscriptText,
				AudioDate:      tc.AudioDate,
				SourceFile:     tc.SourceFile,
				ProjectHint:    a.ProjectHint,
			}
			d, err := tc.Router.Route(ctx, rc)
			if err != nil {
				return Result{}, fmt.Errorf("tools: route_note: %w", err)
			}
			res := ok(map[string]any{
				"decision":   d,
				"outputPath": tc.Router.BuildOutputPath(d, rc),
			})
			res.Route = &d
			return res, nil
		})
}
