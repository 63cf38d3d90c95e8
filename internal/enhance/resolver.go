package enhance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/scribe/internal/clarify"
	"github.com/MrWong99/scribe/internal/enhance/tools"
	"github.com/MrWong99/scribe/internal/entity"
	"github.com/MrWong99/scribe/internal/observe"
	"github.com/MrWong99/scribe/internal/routing"
)

// resolve asks the user about res and applies the answer. The answer text,
// if any, is added to res so the model sees it.
func (r *run) resolve(ctx context.Context, res *tools.Result) {
	c := res.Clarification
	log := observe.Logger(ctx).With("kind", string(c.Kind), "term", c.Term)

	resp, err := r.tc.Handler.HandleClarification(ctx, c.Request(res.UserPrompt))
	if err != nil {
		log.Warn("clarification failed", "err", err)
		r.e.metrics.RecordClarification(ctx, string(c.Kind), "error")
		return
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" && resp.Answer == nil {
		r.e.metrics.RecordClarification(ctx, string(c.Kind), "unanswered")
		return
	}
	r.e.metrics.RecordClarification(ctx, string(c.Kind), "answered")

	if text != "" {
		r.resolved.Record(c.Term, text)
		if res.Data == nil {
			res.Data = map[string]any{}
		}
		res.Data["userResponse"] = text
	}

	switch a := resp.Answer.(type) {
	case clarify.ProjectAnswer:
		if c.Kind == clarify.KindNewProject {
			r.applyProjectAnswer(ctx, c, a)
		}
	case clarify.PersonAnswer:
		if c.Kind == clarify.KindNewPerson {
			r.applyPersonAnswer(ctx, c, text, a)
		}
	case nil:
	default:
		log.Debug("ignoring answer of unexpected type", "answer", fmt.Sprintf("%T", a))
	}
}

func (r *run) applyProjectAnswer(ctx context.Context, c *tools.Clarification, a clarify.ProjectAnswer) {
	switch a := a.(type) {
	case clarify.ProjectCreate:
		if p, ok := r.createProject(ctx, c.Term, a.Project); ok {
			r.resolved.Record(c.Term, p.Name)
		}

	case clarify.ProjectLinkTerm:
		r.linkTerm(ctx, c.Term, a)

	case clarify.ProjectLinkExisting:
		if p, ok := knownProject(c, a.ProjectIndex); ok {
			r.linkProject(ctx, c.Term, p, a.Description)
		}

	case clarify.ProjectDefineTerm:
		r.defineTerm(ctx, c, a)

	case clarify.ProjectIgnore:
		term := strings.TrimSpace(a.Term)
		if term == "" {
			term = c.Term
		}
		r.ignore(ctx, term)

	case clarify.ProjectSkip:
	}
}

func (r *run) applyPersonAnswer(ctx context.Context, c *tools.Clarification, text string, a clarify.PersonAnswer) {
	create, ok := a.(clarify.PersonCreate)
	if !ok {
		return
	}

	name := firstNonEmpty(create.Name, text, c.Term)
	var projectID string
	switch {
	case create.NewProject != nil:
		if p, ok := r.createProject(ctx, "", *create.NewProject); ok {
			projectID = p.ID
		}
	default:
		if p, ok := knownProject(c, create.ProjectIndex); ok {
			projectID = p.ID
		}
	}

	id := entity.Slugify(name)
	person, action := r.existing(id, entity.TypePerson, name)
	if action == ActionCreated {
		person = entity.Entity{ID: id, Name: name, Type: entity.TypePerson}
	}
	person.SoundsLike = entity.AppendUnique(person.SoundsLike, c.Term)
	person.Projects = entity.AppendUnique(person.Projects, projectID)
	if person.Role == "" {
		person.Role = strings.TrimSpace(create.Role)
	}
	if person.Company == "" {
		person.Company = strings.TrimSpace(create.Company)
	}

	if r.commit(ctx, person, action, fmt.Sprintf("heard as %q", c.Term)) {
		r.state.ReferencedEntities.add(tools.EntityRef{ID: id, Type: entity.TypePerson})
	}
	r.resolved.Record(c.Term, name)
}

// createProject creates (or extends) the project described by np. trigger
// is the heard word that led to it, or "". The project and its route are
// returned even when the store write fails; ok is false only when np names
// no project.
func (r *run) createProject(ctx context.Context, trigger string, np clarify.NewProject) (entity.Entity, bool) {
	name := firstNonEmpty(np.Name, trigger)
	id := entity.Slugify(name)
	if id == "" {
		return entity.Entity{}, false
	}

	p, action := r.existing(id, entity.TypeProject, name)
	if action == ActionCreated {
		p = entity.Entity{ID: id, Name: name, Type: entity.TypeProject}
	}
	if p.Classification == nil {
		p.Classification = &entity.Classification{}
	}
	p.Classification.ExplicitPhrases = entity.AppendUnique(p.Classification.ExplicitPhrases,
		strings.ToLower(strings.TrimSpace(trigger)), strings.ToLower(name))
	if d := strings.TrimSpace(np.Description); d != "" && p.Description == "" {
		p.Description = d
	}
	dest := strings.TrimSpace(np.Destination)
	if dest != "" {
		if p.Routing == nil {
			p.Routing = &entity.Routing{}
		}
		p.Routing.Destination = dest
	}

	if r.commit(ctx, p, action, "") {
		r.state.ReferencedEntities.add(tools.EntityRef{ID: id, Type: entity.TypeProject})
	}
	if dest != "" {
		r.adoptRoute(routing.Decision{
			ProjectID:   id,
			Destination: dest,
			Confidence:  1.0,
			Reasoning:   fmt.Sprintf("user created project %q", name),
		}, true)
	}
	return p, true
}

// linkTerm adds the heard word as a sounds-like variant of an existing term.
func (r *run) linkTerm(ctx context.Context, heard string, a clarify.ProjectLinkTerm) {
	want := strings.TrimSpace(a.TermName)
	if want == "" || r.tc.Store == nil {
		return
	}
	var (
		term  entity.Entity
		found bool
	)
	for _, t := range r.tc.Store.AllTerms() {
		if strings.EqualFold(t.Name, want) {
			term, found = t, true
			break
		}
	}
	if !found {
		return
	}

	alias := firstNonEmpty(a.Alias, heard)
	term.SoundsLike = entity.AppendUnique(term.SoundsLike, alias)
	if r.commit(ctx, term, ActionUpdated, fmt.Sprintf("added sounds_like %q", alias)) {
		r.state.ReferencedEntities.add(tools.EntityRef{ID: term.ID, Type: entity.TypeTerm})
	}
	r.resolved.Record(heard, term.Name)
	r.resolved.Record(alias, term.Name)

	for _, id := range term.Projects {
		if p, ok := r.projectByID(id); ok {
			r.adoptProjectRoute(p, fmt.Sprintf("user linked %q to term %q", heard, term.Name))
			break
		}
	}
}

// linkProject adds the heard word to an existing project's phrases.
func (r *run) linkProject(ctx context.Context, heard string, known entity.Entity, description string) {
	p, ok := r.projectByID(known.ID)
	if !ok {
		p = known.Clone()
	}
	if p.Classification == nil {
		p.Classification = &entity.Classification{}
	}
	p.Classification.ExplicitPhrases = entity.AppendUnique(p.Classification.ExplicitPhrases, strings.ToLower(strings.TrimSpace(heard)))
	if d := strings.TrimSpace(description); d != "" {
		if p.Notes == "" {
			p.Notes = d
		} else {
			p.Notes += "\n" + d
		}
	}

	if r.commit(ctx, p, ActionUpdated, fmt.Sprintf("added phrase %q", heard)) {
		r.state.ReferencedEntities.add(tools.EntityRef{ID: p.ID, Type: entity.TypeProject})
	}
	r.resolved.Record(heard, p.Name)
	r.adoptProjectRoute(p, fmt.Sprintf("user linked %q to project %q", heard, p.Name))
}

// defineTerm creates a term entity for the heard word.
func (r *run) defineTerm(ctx context.Context, c *tools.Clarification, a clarify.ProjectDefineTerm) {
	name := firstNonEmpty(a.Name, c.Term)
	id := entity.Slugify(name)
	if id == "" {
		return
	}

	var projects []string
	for _, i := range a.ProjectIndices {
		if i >= 0 && i < len(c.KnownProjects) {
			projects = entity.AppendUnique(projects, c.KnownProjects[i].ID)
		}
	}
	if a.NewProject != nil {
		if p, ok := r.createProject(ctx, c.Term, *a.NewProject); ok {
			projects = entity.AppendUnique(projects, p.ID)
		}
	}

	term, action := r.existing(id, entity.TypeTerm, name)
	if action == ActionCreated {
		term = entity.Entity{ID: id, Name: name, Type: entity.TypeTerm}
	}
	if !strings.EqualFold(name, c.Term) {
		term.SoundsLike = entity.AppendUnique(term.SoundsLike, c.Term)
	}
	if e := strings.TrimSpace(a.Expansion); e != "" {
		term.Expansion = e
	}
	if n := strings.TrimSpace(a.Notes); n != "" {
		term.Notes = n
	}
	term.Projects = entity.AppendUnique(term.Projects, projects...)

	if r.commit(ctx, term, action, "") {
		r.state.ReferencedEntities.add(tools.EntityRef{ID: id, Type: entity.TypeTerm})
	}
	r.resolved.Record(c.Term, name)

	if r.state.RouteDecision != nil {
		return
	}
	for _, pid := range term.Projects {
		if p, ok := r.projectByID(pid); ok && p.Destination() != "" {
			r.adoptProjectRoute(p, fmt.Sprintf("term %q belongs to project %q", name, p.Name))
			return
		}
	}
}

// ignore puts term on the ignore list.
func (r *run) ignore(ctx context.Context, term string) {
	id := "ignore-" + entity.Slugify(term)
	if id == "ignore-" {
		return
	}
	at := r.e.now().UTC()
	r.commit(ctx, entity.Entity{ID: id, Name: term, Type: entity.TypeIgnored, IgnoredAt: &at}, ActionCreated, "")
}

// adoptProjectRoute makes p's destination the route decision, if it has one.
func (r *run) adoptProjectRoute(p entity.Entity, reason string) {
	dest := p.Destination()
	if dest == "" {
		return
	}
	d := routing.Decision{ProjectID: p.ID, Destination: dest, Confidence: 1.0, Reasoning: reason}
	if p.Routing != nil {
		d.Structure = p.Routing.Structure
	}
	r.adoptRoute(d, true)
}

// commit writes e and records the change. Failures are logged and
// reported as false; the caller carries on. A failed reload after a
// successful save still counts as written.
func (r *run) commit(ctx context.Context, e entity.Entity, action Action, details string) bool {
	if r.tc.Store == nil {
		return false
	}
	if err := r.tc.Store.CommitEntity(ctx, e); err != nil {
		log := observe.Logger(ctx).With("entity_id", e.ID, "entity_type", string(e.Type), "err", err)
		if !errors.Is(err, entity.ErrReload) {
			log.Warn("context store write failed")
			return false
		}
		log.Warn("context store reload failed after write")
	}
	r.changes = append(r.changes, ContextChange{
		EntityType: e.Type,
		EntityID:   e.ID,
		EntityName: e.Name,
		Action:     action,
		Details:    details,
	})
	r.e.metrics.RecordContextChange(ctx, string(e.Type), string(action))
	return true
}

// existing returns the stored entity with id and type t, found by name, and
// ActionUpdated; or ActionCreated when there is none.
func (r *run) existing(id string, t entity.Type, name string) (entity.Entity, Action) {
	if r.tc.Store == nil {
		return entity.Entity{}, ActionCreated
	}
	var candidates []entity.Entity
	switch t {
	case entity.TypeProject:
		candidates = r.tc.Store.AllProjects()
	case entity.TypeTerm:
		candidates = r.tc.Store.AllTerms()
	default:
		candidates = r.tc.Store.Search(name)
	}
	for _, e := range candidates {
		if e.ID == id && e.Type == t {
			return e, ActionUpdated
		}
	}
	return entity.Entity{}, ActionCreated
}

// knownProject returns the request option chosen by idx.
func knownProject(c *tools.Clarification, idx *int) (entity.Entity, bool) {
	if idx == nil || *idx < 0 || *idx >= len(c.KnownProjects) {
		return entity.Entity{}, false
	}
	return c.KnownProjects[*idx], true
}

func (r *run) projectByID(id string) (entity.Entity, bool) {
	if r.tc.Store == nil {
		return entity.Entity{}, false
	}
	for _, p := range r.tc.Store.AllProjects() {
		if p.ID == id {
			return p, true
		}
	}
	return entity.Entity{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
