// Package routing decides where an enhanced transcript is filed.
//
// A [Router] turns a routing [Context] into a [Decision] (project,
// destination, confidence and a human-readable reason) and maps that
// decision onto an output path. [PhraseRouter] is the built-in
// implementation; it matches project classification phrases against the
// transcript.
package routing

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrWong99/scribe/internal/entity"
)

// Directory layouts understood by [PhraseRouter.BuildOutputPath].
const (
	// StructureMonthly files notes under <destination>/<YYYY>/<MM>/.
	StructureMonthly = "monthly"
	// StructureFlat files notes directly under <destination>/.
	StructureFlat = "flat"
)

// Context is the input to a routing decision.
type Context struct {
	TranscriptText string
	AudioDate      time.Time
	SourceFile     string

	// ProjectHint is an optional project name or id suggested by the model.
	ProjectHint string
}

// Decision is where a note goes and why.
type Decision struct {
	ProjectID   string  `json:"projectId,omitempty"`
	Destination string  `json:"destination"`
	Structure   string  `json:"structure,omitempty"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

// Router is the routing engine consumed by the route_note tool and the CLI.
type Router interface {
	// Route picks a destination for the transcript described by rc.
	Route(ctx context.Context, rc Context) (Decision, error)

	// BuildOutputPath is a pure function of its inputs.
	BuildOutputPath(d Decision, rc Context) string
}

// BuildOutputPath lays out <destination>/<YYYY>/<MM>/<YYYY-MM-DD>-<stem>.md,
// or <destination>/<YYYY-MM-DD>-<stem>.md for [StructureFlat]. The date
// prefix is dropped when the audio date is unknown or the stem already
// starts with it.
func BuildOutputPath(d Decision, rc Context) string {
	stem := entity.Slugify(strings.TrimSuffix(filepath.Base(rc.SourceFile), filepath.Ext(rc.SourceFile)))
	if stem == "" || stem == "." {
		stem = "transcript"
	}

	dest := d.Destination
	if dest == "" {
		dest = "."
	}
	if rc.AudioDate.IsZero() {
		return filepath.Join(dest, stem+".md")
	}

	day := rc.AudioDate.Format("2006-01-02")
	name := stem + ".md"
	if !strings.HasPrefix(stem, day) {
		name = day + "-" + name
	}
	if d.Structure == StructureFlat {
		return filepath.Join(dest, name)
	}
	return filepath.Join(dest, rc.AudioDate.Format("2006"), rc.AudioDate.Format("01"), name)
}
