package enhance_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/MrWong99/scribe/internal/clarify"
	"github.com/MrWong99/scribe/internal/enhance"
	"github.com/MrWong99/scribe/internal/enhance/tools"
	"github.com/MrWong99/scribe/internal/entity"
	"github.com/MrWong99/scribe/internal/routing"
	"github.com/MrWong99/scribe/pkg/provider/llm"
)

const wizardTranscript = "Phoenix sync. Jon Smth wants Zephyr wired into the Kubes cluster before the demo on Friday."

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

// runWizard makes the model call tool with args once and answers the
// resulting clarification with resp.
func runWizard(t *testing.T, backend entity.Backend, tool, args, term string, resp clarify.Response) (*enhance.Result, *env) {
	t.Helper()
	e := newEnv(t, backend)
	e.handler.Responses = map[string]clarify.Response{term: resp}
	e.provider.Responses = []*llm.CompletionResponse{
		toolTurn(call(tool, args)),
		final(wizardTranscript),
	}
	res := e.executor(t, enhance.WithClock(func() time.Time { return fixedNow })).
		Process(context.Background(), wizardTranscript)
	if got := len(e.handler.Requests()); got != 1 {
		t.Fatalf("handler asked %d times, want 1", got)
	}
	return res, e
}

func get(t *testing.T, e *env, id string) entity.Entity {
	t.Helper()
	got, err := e.backend.Get(id)
	if err != nil {
		t.Fatalf("Get(%q): %v", id, err)
	}
	return got
}

func TestWizard_ProjectAnswers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		term        string
		answer      clarify.Answer
		wantChanges []enhance.ContextChange
		wantRoute   *routing.Decision
		check       func(t *testing.T, e *env, res *enhance.Result)
	}{
		{
			name:   "create with destination",
			term:   "Zephyr",
			answer: clarify.ProjectCreate{Project: clarify.NewProject{Name: "Zephyr", Destination: "Projects/Zephyr", Description: "event bus"}},
			wantChanges: []enhance.ContextChange{
				{EntityType: entity.TypeProject, EntityID: "zephyr", EntityName: "Zephyr", Action: enhance.ActionCreated},
			},
			wantRoute: &routing.Decision{ProjectID: "zephyr", Destination: "Projects/Zephyr", Confidence: 1.0},
			check: func(t *testing.T, e *env, res *enhance.Result) {
				p := get(t, e, "zephyr")
				if p.Destination() != "Projects/Zephyr" || p.Description != "event bus" {
					t.Errorf("project = %+v", p)
				}
				if diff := cmp.Diff([]string{"zephyr"}, p.ExplicitPhrases()); diff != "" {
					t.Errorf("phrases mismatch (-want +got):\n%s", diff)
				}
				if diff := cmp.Diff([]string{"zephyr"}, res.State.ReferencedEntities.Projects); diff != "" {
					t.Errorf("referenced mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name:   "create without destination",
			term:   "Zephyr",
			answer: clarify.ProjectCreate{Project: clarify.NewProject{Name: "Zephyr Bus"}},
			wantChanges: []enhance.ContextChange{
				{EntityType: entity.TypeProject, EntityID: "zephyr-bus", EntityName: "Zephyr Bus", Action: enhance.ActionCreated},
			},
			check: func(t *testing.T, e *env, res *enhance.Result) {
				p := get(t, e, "zephyr-bus")
				if p.Routing != nil {
					t.Errorf("routing written without destination: %+v", p.Routing)
				}
				if diff := cmp.Diff([]string{"zephyr", "zephyr bus"}, p.ExplicitPhrases()); diff != "" {
					t.Errorf("phrases mismatch (-want +got):\n%s", diff)
				}
				want := []tools.Correction{{Heard: "Zephyr", Resolved: "Zephyr Bus"}}
				if diff := cmp.Diff(want, res.State.ResolvedEntities); diff != "" {
					t.Errorf("resolved mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name:   "link to existing term",
			term:   "Kubes",
			answer: clarify.ProjectLinkTerm{TermName: "k8s"},
			wantChanges: []enhance.ContextChange{
				{EntityType: entity.TypeTerm, EntityID: "k8s", EntityName: "K8s", Action: enhance.ActionUpdated, Details: `added sounds_like "Kubes"`},
			},
			wantRoute: &routing.Decision{ProjectID: "phoenix", Destination: "Projects/Phoenix", Confidence: 1.0},
			check: func(t *testing.T, e *env, res *enhance.Result) {
				if diff := cmp.Diff([]string{"kates", "Kubes"}, get(t, e, "k8s").SoundsLike); diff != "" {
					t.Errorf("sounds_like mismatch (-want +got):\n%s", diff)
				}
				if found, _ := e.store.FindBySoundsLike("kubes"); found.ID != "k8s" {
					t.Errorf("index not reloaded after commit")
				}
			},
		},
		{
			name:        "link to unknown term is a no-op",
			term:        "Kubes",
			answer:      clarify.ProjectLinkTerm{TermName: "helm"},
			wantChanges: nil,
		},
		{
			name:   "link to existing project",
			term:   "Zephyr",
			answer: clarify.ProjectLinkExisting{ProjectIndex: clarify.Choice(1), Description: "Zephyr is the phoenix event bus"},
			wantChanges: []enhance.ContextChange{
				{EntityType: entity.TypeProject, EntityID: "phoenix", EntityName: "Phoenix", Action: enhance.ActionUpdated, Details: `added phrase "Zephyr"`},
			},
			wantRoute: &routing.Decision{ProjectID: "phoenix", Destination: "Projects/Phoenix", Confidence: 1.0},
			check: func(t *testing.T, e *env, res *enhance.Result) {
				p := get(t, e, "phoenix")
				if diff := cmp.Diff([]string{"phoenix", "zephyr"}, p.ExplicitPhrases()); diff != "" {
					t.Errorf("phrases mismatch (-want +got):\n%s", diff)
				}
				if p.Notes != "Zephyr is the phoenix event bus" {
					t.Errorf("notes = %q", p.Notes)
				}
			},
		},
		{
			name:        "malformed project index is a no-op",
			term:        "Zephyr",
			answer:      clarify.ProjectLinkExisting{ProjectIndex: clarify.Choice(7)},
			wantChanges: nil,
		},
		{
			name:   "define term",
			term:   "Zephyr",
			answer: clarify.ProjectDefineTerm{Expansion: "Zephyr event bus", ProjectIndices: []int{0, 9, 0}},
			wantChanges: []enhance.ContextChange{
				{EntityType: entity.TypeTerm, EntityID: "zephyr", EntityName: "Zephyr", Action: enhance.ActionCreated},
			},
			check: func(t *testing.T, e *env, res *enhance.Result) {
				term := get(t, e, "zephyr")
				if term.Type != entity.TypeTerm || term.Expansion != "Zephyr event bus" {
					t.Errorf("term = %+v", term)
				}
				if diff := cmp.Diff([]string{"atlas"}, term.Projects); diff != "" {
					t.Errorf("projects mismatch (-want +got):\n%s", diff)
				}
				if diff := cmp.Diff([]string{"zephyr"}, res.State.ReferencedEntities.Terms); diff != "" {
					t.Errorf("referenced mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "define term with new project",
			term: "Zephyr",
			answer: clarify.ProjectDefineTerm{
				Name:       "ZBus",
				NewProject: &clarify.NewProject{Name: "Gale", Destination: "Projects/Gale"},
			},
			wantChanges: []enhance.ContextChange{
				{EntityType: entity.TypeProject, EntityID: "gale", EntityName: "Gale", Action: enhance.ActionCreated},
				{EntityType: entity.TypeTerm, EntityID: "zbus", EntityName: "ZBus", Action: enhance.ActionCreated},
			},
			wantRoute: &routing.Decision{ProjectID: "gale", Destination: "Projects/Gale", Confidence: 1.0},
			check: func(t *testing.T, e *env, res *enhance.Result) {
				term := get(t, e, "zbus")
				if diff := cmp.Diff([]string{"Zephyr"}, term.SoundsLike); diff != "" {
					t.Errorf("sounds_like mismatch (-want +got):\n%s", diff)
				}
				if diff := cmp.Diff([]string{"gale"}, term.Projects); diff != "" {
					t.Errorf("projects mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name:   "ignore",
			term:   "Zephyr",
			answer: clarify.ProjectIgnore{},
			wantChanges: []enhance.ContextChange{
				{EntityType: entity.TypeIgnored, EntityID: "ignore-zephyr", EntityName: "Zephyr", Action: enhance.ActionCreated},
			},
			check: func(t *testing.T, e *env, res *enhance.Result) {
				got := get(t, e, "ignore-zephyr")
				if got.IgnoredAt == nil || !got.IgnoredAt.Equal(fixedNow) {
					t.Errorf("ignored_at = %v, want %v", got.IgnoredAt, fixedNow)
				}
				if !e.store.IsIgnored("zephyr") {
					t.Error("term not ignored after commit")
				}
			},
		},
		{
			name:        "skip",
			term:        "Zephyr",
			answer:      clarify.ProjectSkip{},
			wantChanges: nil,
		},
		{
			name:        "person answer to a project question",
			term:        "Zephyr",
			answer:      clarify.PersonCreate{Name: "Zephyr"},
			wantChanges: nil,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res, e := runWizard(t, nil, "lookup_project", `{"name":"`+tc.term+`"}`, strings.ToLower(tc.term), clarify.Response{Answer: tc.answer})

			if req := e.handler.Requests()[0]; req.Kind != clarify.KindNewProject {
				t.Errorf("kind = %q", req.Kind)
			} else if diff := cmp.Diff([]string{"Atlas", "Phoenix"}, req.Options); diff != "" {
				t.Errorf("options mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.wantChanges, res.ContextChanges); diff != "" {
				t.Errorf("changes mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.wantRoute, res.State.RouteDecision, cmpopts.IgnoreFields(routing.Decision{}, "Reasoning")); diff != "" {
				t.Errorf("route mismatch (-want +got):\n%s", diff)
			}
			if res.State.Confidence != 0.9 {
				t.Errorf("confidence = %v", res.State.Confidence)
			}
			if tc.check != nil {
				tc.check(t, e, res)
			}
		})
	}
}

func TestWizard_PersonAnswers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		resp         clarify.Response
		wantChanges  []enhance.ContextChange
		wantResolved string
		check        func(t *testing.T, e *env, res *enhance.Result)
	}{
		{
			name: "create with known project",
			resp: clarify.Response{Answer: clarify.PersonCreate{Name: "Jonathan Smythe", Role: "CTO", ProjectIndex: clarify.Choice(1)}},
			wantChanges: []enhance.ContextChange{
				{EntityType: entity.TypePerson, EntityID: "jonathan-smythe", EntityName: "Jonathan Smythe", Action: enhance.ActionCreated, Details: `heard as "Jon Smth"`},
			},
			wantResolved: "Jonathan Smythe",
			check: func(t *testing.T, e *env, res *enhance.Result) {
				p := get(t, e, "jonathan-smythe")
				want := entity.Entity{
					ID: "jonathan-smythe", Name: "Jonathan Smythe", Type: entity.TypePerson,
					SoundsLike: []string{"Jon Smth"}, Role: "CTO", Projects: []string{"phoenix"},
				}
				if diff := cmp.Diff(want, p); diff != "" {
					t.Errorf("person mismatch (-want +got):\n%s", diff)
				}
				if diff := cmp.Diff([]string{"jonathan-smythe"}, res.State.ReferencedEntities.People); diff != "" {
					t.Errorf("referenced mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "create merges into existing person",
			resp: clarify.Response{Text: "Jon Smith", Answer: clarify.PersonCreate{Company: "Acme"}},
			wantChanges: []enhance.ContextChange{
				{EntityType: entity.TypePerson, EntityID: "jon-smith", EntityName: "Jon Smith", Action: enhance.ActionUpdated, Details: `heard as "Jon Smth"`},
			},
			wantResolved: "Jon Smith",
			check: func(t *testing.T, e *env, res *enhance.Result) {
				p := get(t, e, "jon-smith")
				if diff := cmp.Diff([]string{"Jon Smth"}, p.SoundsLike); diff != "" {
					t.Errorf("sounds_like mismatch (-want +got):\n%s", diff)
				}
				if p.Company != "Acme" || len(p.Projects) != 0 {
					t.Errorf("person = %+v", p)
				}
			},
		},
		{
			name: "create with new project",
			resp: clarify.Response{Answer: clarify.PersonCreate{Name: "Jon Smythe", NewProject: &clarify.NewProject{Name: "Gale"}}},
			wantChanges: []enhance.ContextChange{
				{EntityType: entity.TypeProject, EntityID: "gale", EntityName: "Gale", Action: enhance.ActionCreated},
				{EntityType: entity.TypePerson, EntityID: "jon-smythe", EntityName: "Jon Smythe", Action: enhance.ActionCreated, Details: `heard as "Jon Smth"`},
			},
			wantResolved: "Jon Smythe",
			check: func(t *testing.T, e *env, res *enhance.Result) {
				if diff := cmp.Diff([]string{"gale"}, get(t, e, "jon-smythe").Projects); diff != "" {
					t.Errorf("projects mismatch (-want +got):\n%s", diff)
				}
				if diff := cmp.Diff([]string{"gale"}, get(t, e, "gale").ExplicitPhrases()); diff != "" {
					t.Errorf("phrases mismatch (-want +got):\n%s", diff)
				}
				if res.State.RouteDecision != nil {
					t.Errorf("project without destination produced a route: %+v", res.State.RouteDecision)
				}
			},
		},
		{
			name: "create without project choice",
			resp: clarify.Response{Answer: clarify.PersonCreate{Name: "Jonathan Smythe"}},
			wantChanges: []enhance.ContextChange{
				{EntityType: entity.TypePerson, EntityID: "jonathan-smythe", EntityName: "Jonathan Smythe", Action: enhance.ActionCreated, Details: `heard as "Jon Smth"`},
			},
			wantResolved: "Jonathan Smythe",
			check: func(t *testing.T, e *env, res *enhance.Result) {
				if p := get(t, e, "jonathan-smythe"); len(p.Projects) != 0 {
					t.Errorf("person linked to %v without a project choice", p.Projects)
				}
			},
		},
		{
			name:         "spelling only",
			resp:         clarify.Response{Text: "Jon Smith", Answer: clarify.PersonSkip{}},
			wantResolved: "Jon Smith",
		},
		{
			name: "unanswered",
			resp: clarify.Response{},
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res, e := runWizard(t, nil, "lookup_person", `{"name":"Jon Smth"}`, "jon smth", tc.resp)

			if diff := cmp.Diff(tc.wantChanges, res.ContextChanges); diff != "" {
				t.Errorf("changes mismatch (-want +got):\n%s", diff)
			}
			var want []tools.Correction
			if tc.wantResolved != "" {
				want = []tools.Correction{{Heard: "Jon Smth", Resolved: tc.wantResolved}}
			}
			if diff := cmp.Diff(want, res.State.ResolvedEntities, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("resolved mismatch (-want +got):\n%s", diff)
			}
			if tc.check != nil {
				tc.check(t, e, res)
			}
		})
	}
}

func TestWizard_StoreFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	res, _ := runWizard(t, &failingBackend{}, "lookup_person", `{"name":"Jon Smth"}`, "jon smth",
		clarify.Response{Answer: clarify.PersonCreate{Name: "Jonathan Smythe"}})

	if len(res.ContextChanges) != 0 {
		t.Errorf("failed writes reported as changes: %+v", res.ContextChanges)
	}
	if len(res.State.ReferencedEntities.People) != 0 {
		t.Errorf("unsaved person referenced: %+v", res.State.ReferencedEntities)
	}
	want := []tools.Correction{{Heard: "Jon Smth", Resolved: "Jonathan Smythe"}}
	if diff := cmp.Diff(want, res.State.ResolvedEntities); diff != "" {
		t.Errorf("resolved mismatch (-want +got):\n%s", diff)
	}
	if res.EnhancedText != wizardTranscript || res.State.Confidence != 0.9 {
		t.Errorf("result = %q @ %v", res.EnhancedText, res.State.Confidence)
	}
}

func TestWizard_StoreFailureKeepsRoute(t *testing.T) {
	t.Parallel()

	res, _ := runWizard(t, &failingBackend{}, "lookup_project", `{"name":"Zephyr"}`, "Zephyr",
		clarify.Response{Answer: clarify.ProjectCreate{Project: clarify.NewProject{Name: "Zephyr", Destination: "Projects/Zephyr"}}})

	if len(res.ContextChanges) != 0 || len(res.State.ReferencedEntities.Projects) != 0 {
		t.Errorf("failed write reported: changes=%+v refs=%+v", res.ContextChanges, res.State.ReferencedEntities)
	}
	wantRoute := &routing.Decision{ProjectID: "zephyr", Destination: "Projects/Zephyr", Confidence: 1.0}
	if diff := cmp.Diff(wantRoute, res.State.RouteDecision, cmpopts.IgnoreFields(routing.Decision{}, "Reasoning")); diff != "" {
		t.Errorf("route mismatch (-want +got):\n%s", diff)
	}
	want := []tools.Correction{{Heard: "Zephyr", Resolved: "Zephyr"}}
	if diff := cmp.Diff(want, res.State.ResolvedEntities); diff != "" {
		t.Errorf("resolved mismatch (-want +got):\n%s", diff)
	}
}

func TestWizard_ReloadFailureStillRecordsChange(t *testing.T) {
	t.Parallel()

	backend := &flakyLoadBackend{MemBackend: entity.NewMemBackend(seed()...)}
	res, _ := runWizard(t, backend, "lookup_person", `{"name":"Jon Smth"}`, "jon smth",
		clarify.Response{Answer: clarify.PersonCreate{Name: "Jonathan Smythe"}})

	want := []enhance.ContextChange{
		{EntityType: entity.TypePerson, EntityID: "jonathan-smythe", EntityName: "Jonathan Smythe", Action: enhance.ActionCreated, Details: `heard as "Jon Smth"`},
	}
	if diff := cmp.Diff(want, res.ContextChanges); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
	if _, err := backend.Get("jonathan-smythe"); err != nil {
		t.Errorf("person not saved: %v", err)
	}
}

// flakyLoadBackend serves the initial load and fails every later one.
type flakyLoadBackend struct {
	*entity.MemBackend
	loads atomic.Int32
}

func (b *flakyLoadBackend) Load(ctx context.Context) ([]entity.Entity, error) {
	if b.loads.Add(1) > 1 {
		return nil, errors.New("connection reset")
	}
	return b.MemBackend.Load(ctx)
}

func TestWizard_IgnoredTermNotAskedAgain(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	e.handler.Responses = map[string]clarify.Response{"zephyr": {Answer: clarify.ProjectIgnore{}}}
	e.provider.Responses = []*llm.CompletionResponse{
		toolTurn(call("lookup_project", `{"name":"Zephyr"}`)),
		toolTurn(call("lookup_project", `{"name":"zephyr"}`)),
		final(wizardTranscript),
	}
	e.executor(t).Process(context.Background(), wizardTranscript)

	if got := len(e.handler.Requests()); got != 1 {
		t.Errorf("handler asked %d times, want 1", got)
	}
	msgs := toolMessages(t, e.provider, 2)
	if want := `"ignored":true`; !strings.Contains(msgs[1].Content, want) {
		t.Errorf("second lookup = %s, want %s", msgs[1].Content, want)
	}
}
