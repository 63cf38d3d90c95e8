package routing

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/scribe/internal/entity"
)

// ProjectSource lists the projects a [PhraseRouter] chooses between.
// [entity.Store] satisfies it.
type ProjectSource interface {
	AllProjects() []entity.Entity
}

// Option configures a [PhraseRouter].
type Option func(*PhraseRouter)

// WithMinConfidence sets the confidence below which a phrase match is
// discarded in favour of the default destination. Default: 0.5.
func WithMinConfidence(c float64) Option {
	return func(r *PhraseRouter) { r.minConfidence = c }
}

// PhraseRouter routes by counting occurrences of each active project's
// name and explicit phrases in the transcript. A model-supplied project
// hint that names a project outright wins over counting.
type PhraseRouter struct {
	projects           ProjectSource
	defaultDestination string
	minConfidence      float64
}

var _ Router = (*PhraseRouter)(nil)

// NewPhraseRouter returns a router over projects that falls back to
// defaultDestination.
func NewPhraseRouter(projects ProjectSource, defaultDestination string, opts ...Option) *PhraseRouter {
	r := &PhraseRouter{
		projects:           projects,
		defaultDestination: defaultDestination,
		minConfidence:      0.5,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Route implements [Router].
func (r *PhraseRouter) Route(ctx context.Context, rc Context) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, fmt.Errorf("routing: route: %w", err)
	}

	var active []entity.Entity
	for _, p := range r.projects.AllProjects() {
		if p.IsActive() {
			active = append(active, p)
		}
	}

	if hint := strings.ToLower(strings.TrimSpace(rc.ProjectHint)); hint != "" {
		for _, p := range active {
			if hint == p.ID || hint == strings.ToLower(p.Name) || containsFold(p.ExplicitPhrases(), hint) {
				return r.decide(p, 0.95, fmt.Sprintf("project hint %q names project %q", rc.ProjectHint, p.Name)), nil
			}
		}
	}

	text := strings.ToLower(rc.TranscriptText)
	var (
		best     entity.Entity
		bestHits int
	)
	for _, p := range active {
		if hits := countHits(text, p); hits > bestHits {
			best, bestHits = p, hits
		}
	}
	if bestHits == 0 {
		return r.fallback("no project phrases found in transcript"), nil
	}

	confidence := min(0.5+0.1*float64(bestHits), 0.9)
	if confidence < r.minConfidence {
		return r.fallback(fmt.Sprintf("best match %q scored %.2f, below %.2f", best.Name, confidence, r.minConfidence)), nil
	}
	return r.decide(best, confidence, fmt.Sprintf("%d phrase match(es) for project %q", bestHits, best.Name)), nil
}

// BuildOutputPath implements [Router].
func (r *PhraseRouter) BuildOutputPath(d Decision, rc Context) string {
	return BuildOutputPath(d, rc)
}

func (r *PhraseRouter) decide(p entity.Entity, confidence float64, reason string) Decision {
	d := Decision{
		ProjectID:   p.ID,
		Destination: p.Destination(),
		Confidence:  confidence,
		Reasoning:   reason,
	}
	if p.Routing != nil {
		d.Structure = p.Routing.Structure
	}
	if d.Destination == "" {
		d.Destination = r.defaultDestination
		d.Reasoning += "; project has no destination, using default"
	}
	return d
}

func (r *PhraseRouter) fallback(reason string) Decision {
	return Decision{
		Destination: r.defaultDestination,
		Confidence:  0,
		Reasoning:   reason + "; using default destination",
	}
}

func countHits(lowerText string, p entity.Entity) int {
	phrases := entity.AppendUnique(nil, p.Name)
	phrases = entity.AppendUnique(phrases, p.ExplicitPhrases()...)
	n := 0
	for _, ph := range phrases {
		n += strings.Count(lowerText, strings.ToLower(ph))
	}
	return n
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
