package entity_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/scribe/internal/entity"
	"github.com/MrWong99/scribe/internal/transcript/phonetic"
)

func seed() []entity.Entity {
	return []entity.Entity{
		{ID: "jon-smith", Name: "Jon Smith", Type: entity.TypePerson, SoundsLike: []string{"John Smyth"}, Projects: []string{"phoenix"}},
		{ID: "jonathan-smithers", Name: "Jonathan Smithers", Type: entity.TypePerson},
		{
			ID: "phoenix", Name: "Phoenix", Type: entity.TypeProject,
			Classification: &entity.Classification{ExplicitPhrases: []string{"phoenix", "rewrite"}},
			Routing:        &entity.Routing{Destination: "Projects/Phoenix"},
		},
		{ID: "k8s", Name: "K8s", Type: entity.TypeTerm, Expansion: "Kubernetes", SoundsLike: []string{"kates"}, Projects: []string{"phoenix"}},
		{ID: "umm", Name: "umm", Type: entity.TypeIgnored},
	}
}

func newIndex(t *testing.T, opts ...entity.IndexOption) (*entity.Index, *entity.MemBackend) {
	t.Helper()
	b := entity.NewMemBackend(seed()...)
	ix, err := entity.NewIndex(context.Background(), b, opts...)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	return ix, b
}

func ids(es []entity.Entity) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.ID)
	}
	return out
}

func TestIndex_Search(t *testing.T) {
	t.Parallel()

	ix, _ := newIndex(t)
	tests := []struct {
		query string
		want  []string
	}{
		{"jon smith", []string{"jon-smith"}},
		{"JON", []string{"jon-smith", "jonathan-smithers"}},
		{"Jonathan Smithers", []string{"jonathan-smithers"}},
		{"phoenix", []string{"phoenix"}},
		{"umm", []string{}},
		{"   ", []string{}},
		{"nobody", []string{}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.query, func(t *testing.T) {
			t.Parallel()
			got := ids(ix.Search(tc.query))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Search(%q) mismatch (-want +got):\n%s", tc.query, diff)
			}
		})
	}
}

func TestIndex_SearchExactBeforePartial(t *testing.T) {
	t.Parallel()

	b := entity.NewMemBackend(
		entity.Entity{ID: "anna-bell", Name: "Anna Bell", Type: entity.TypePerson},
		entity.Entity{ID: "zz-anna", Name: "Anna", Type: entity.TypePerson},
	)
	ix, err := entity.NewIndex(context.Background(), b)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	got := ids(ix.Search("anna"))
	if diff := cmp.Diff([]string{"zz-anna", "anna-bell"}, got); diff != "" {
		t.Errorf("Search mismatch (-want +got):\n%s", diff)
	}
}

func TestIndex_FindBySoundsLike(t *testing.T) {
	t.Parallel()

	t.Run("exact sounds_like entry", func(t *testing.T) {
		t.Parallel()
		ix, _ := newIndex(t)
		e, ok := ix.FindBySoundsLike("john SMYTH")
		if !ok || e.ID != "jon-smith" {
			t.Fatalf("FindBySoundsLike = %v, %v; want jon-smith", e.ID, ok)
		}
	})

	t.Run("term variant", func(t *testing.T) {
		t.Parallel()
		ix, _ := newIndex(t)
		e, ok := ix.FindBySoundsLike("Kates")
		if !ok || e.ID != "k8s" {
			t.Fatalf("FindBySoundsLike = %v, %v; want k8s", e.ID, ok)
		}
	})

	t.Run("no matcher means no fuzzy fallback", func(t *testing.T) {
		t.Parallel()
		ix, _ := newIndex(t)
		if e, ok := ix.FindBySoundsLike("Jon Smth"); ok {
			t.Fatalf("unexpected match %q", e.ID)
		}
	})

	t.Run("phonetic fallback", func(t *testing.T) {
		t.Parallel()
		ix, _ := newIndex(t, entity.WithNameMatcher(phonetic.New()))
		e, ok := ix.FindBySoundsLike("Jon Smth")
		if !ok || e.ID != "jon-smith" {
			t.Fatalf("FindBySoundsLike = %v, %v; want jon-smith", e.ID, ok)
		}
	})

	t.Run("ignored entries never match", func(t *testing.T) {
		t.Parallel()
		ix, _ := newIndex(t, entity.WithNameMatcher(phonetic.New()))
		if e, ok := ix.FindBySoundsLike("umm"); ok && e.Type == entity.TypeIgnored {
			t.Fatalf("ignored entity returned: %+v", e)
		}
	})
}

func TestIndex_TypedListsAndIgnore(t *testing.T) {
	t.Parallel()

	ix, _ := newIndex(t)
	if diff := cmp.Diff([]string{"phoenix"}, ids(ix.AllProjects())); diff != "" {
		t.Errorf("AllProjects mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"k8s"}, ids(ix.AllTerms())); diff != "" {
		t.Errorf("AllTerms mismatch (-want +got):\n%s", diff)
	}
	if !ix.IsIgnored(" UMM ") {
		t.Error("IsIgnored(UMM) = false, want true")
	}
	if ix.IsIgnored("Phoenix") {
		t.Error("IsIgnored(Phoenix) = true, want false")
	}
}

func TestIndex_ReturnsCopies(t *testing.T) {
	t.Parallel()

	ix, _ := newIndex(t)
	p := ix.AllProjects()[0]
	p.Classification.ExplicitPhrases[0] = "mutated"
	p.Routing.Destination = "elsewhere"

	again := ix.AllProjects()[0]
	if again.ExplicitPhrases()[0] != "phoenix" || again.Destination() != "Projects/Phoenix" {
		t.Fatalf("index mutated through returned entity: %+v", again)
	}
}

func TestIndex_CommitEntity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("new entity visible immediately", func(t *testing.T) {
		t.Parallel()
		ix, b := newIndex(t)
		err := ix.CommitEntity(ctx, entity.Entity{ID: "atlas", Name: "Atlas", Type: entity.TypeProject})
		if err != nil {
			t.Fatalf("CommitEntity: %v", err)
		}
		if got := ids(ix.Search("atlas")); len(got) != 1 || got[0] != "atlas" {
			t.Fatalf("Search after commit = %v", got)
		}
		if b.Saves() != 1 {
			t.Errorf("Saves() = %d, want 1", b.Saves())
		}
	})

	t.Run("replace by id", func(t *testing.T) {
		t.Parallel()
		ix, _ := newIndex(t)
		k8s := ix.AllTerms()[0]
		k8s.SoundsLike = entity.AppendUnique(k8s.SoundsLike, "kay eights")
		if err := ix.CommitEntity(ctx, k8s); err != nil {
			t.Fatalf("CommitEntity: %v", err)
		}
		if e, ok := ix.FindBySoundsLike("kay eights"); !ok || e.ID != "k8s" {
			t.Fatalf("FindBySoundsLike after update = %v, %v", e.ID, ok)
		}
		if n := len(ix.AllTerms()); n != 1 {
			t.Errorf("AllTerms len = %d, want 1", n)
		}
	})

	t.Run("invalid entity rejected", func(t *testing.T) {
		t.Parallel()
		ix, b := newIndex(t)
		err := ix.CommitEntity(ctx, entity.Entity{ID: "Not A Slug", Name: "x", Type: entity.TypeTerm})
		if !errors.Is(err, entity.ErrInvalid) {
			t.Fatalf("CommitEntity err = %v, want ErrInvalid", err)
		}
		if b.Saves() != 0 {
			t.Error("invalid entity reached the backend")
		}
	})

	t.Run("reload failure after save", func(t *testing.T) {
		t.Parallel()
		b := &reloadFailBackend{MemBackend: entity.NewMemBackend()}
		ix, err := entity.NewIndex(ctx, b)
		if err != nil {
			t.Fatalf("NewIndex: %v", err)
		}
		b.fail.Store(true)
		err = ix.CommitEntity(ctx, entity.Entity{ID: "atlas", Name: "Atlas", Type: entity.TypeProject})
		if !errors.Is(err, entity.ErrReload) {
			t.Fatalf("CommitEntity err = %v, want ErrReload", err)
		}
		if _, err := b.Get("atlas"); err != nil {
			t.Errorf("entity not saved: %v", err)
		}
	})

	t.Run("backend failure surfaces", func(t *testing.T) {
		t.Parallel()
		ix, err := entity.NewIndex(ctx, &failingBackend{saveErr: errors.New("disk full")})
		if err != nil {
			t.Fatalf("NewIndex: %v", err)
		}
		err = ix.CommitEntity(ctx, entity.Entity{ID: "atlas", Name: "Atlas", Type: entity.TypeProject})
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestIndex_ReloadSkipsInvalid(t *testing.T) {
	t.Parallel()

	b := entity.NewMemBackend(
		entity.Entity{ID: "ok", Name: "Ok", Type: entity.TypeTerm},
		entity.Entity{ID: "bad", Name: "", Type: entity.TypeTerm},
		entity.Entity{ID: "weird", Name: "Weird", Type: "planet"},
	)
	ix, err := entity.NewIndex(context.Background(), b)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	if ix.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", ix.Len())
	}
}

func TestNewIndex_LoadError(t *testing.T) {
	t.Parallel()

	_, err := entity.NewIndex(context.Background(), &failingBackend{loadErr: errors.New("boom")})
	if err == nil {
		t.Fatal("expected load error")
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"New Project", "new-project"},
		{"new-project", "new-project"},
		{"  Jon   Smith\t", "jon-smith"},
		{"K8s", "k8s"},
		{"", ""},
	}
	for _, tc := range tests {
		got := entity.Slugify(tc.in)
		if got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
		if again := entity.Slugify(got); again != got {
			t.Errorf("Slugify not idempotent: %q -> %q", got, again)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := entity.Validate(entity.Entity{ID: "phoenix", Name: "Phoenix", Type: entity.TypeProject}); err != nil {
		t.Errorf("valid entity rejected: %v", err)
	}
	err := entity.Validate(entity.Entity{ID: "", Name: " ", Type: "planet"})
	if !errors.Is(err, entity.ErrInvalid) {
		t.Fatalf("Validate err = %v, want ErrInvalid", err)
	}
	for _, id := range []string{"../../outside", "a/b", `a\b`, "..", "x..y"} {
		err := entity.Validate(entity.Entity{ID: entity.Slugify(id), Name: "Outside", Type: entity.TypeProject})
		if !errors.Is(err, entity.ErrInvalid) {
			t.Errorf("Validate(%q) err = %v, want ErrInvalid", id, err)
		}
	}
}

func TestAppendUnique(t *testing.T) {
	t.Parallel()

	got := entity.AppendUnique([]string{"phoenix"}, "Phoenix", " fenix ", "", "fenix", "rewrite")
	if diff := cmp.Diff([]string{"phoenix", "fenix", "rewrite"}, got); diff != "" {
		t.Errorf("AppendUnique mismatch (-want +got):\n%s", diff)
	}
}

func TestEntity_Helpers(t *testing.T) {
	t.Parallel()

	var e entity.Entity
	if !e.IsActive() {
		t.Error("unset Active should count as active")
	}
	off := false
	e.Active = &off
	if e.IsActive() {
		t.Error("explicit false should be inactive")
	}
	if e.Destination() != "" || e.ExplicitPhrases() != nil {
		t.Error("expected empty project helpers on zero entity")
	}
}

type failingBackend struct {
	loadErr error
	saveErr error
}

func (f *failingBackend) Load(context.Context) ([]entity.Entity, error) { return nil, f.loadErr }
func (f *failingBackend) Save(context.Context, entity.Entity) error     { return f.saveErr }

// reloadFailBackend fails Load once fail is set.
type reloadFailBackend struct {
	*entity.MemBackend
	fail atomic.Bool
}

func (b *reloadFailBackend) Load(ctx context.Context) ([]entity.Entity, error) {
	if b.fail.Load() {
		return nil, errors.New("connection reset")
	}
	return b.MemBackend.Load(ctx)
}
