package entity_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/MrWong99/scribe/internal/entity"
)

const phoenixYAML = `
id: phoenix
name: Phoenix
classification:
  explicit_phrases: [phoenix, rewrite]
routing:
  destination: Projects/Phoenix
`

func TestDirBackend_LoadInfersType(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	b, err := entity.NewDirBackend(fs, "/ctx")
	if err != nil {
		t.Fatalf("NewDirBackend: %v", err)
	}
	if err := afero.WriteFile(fs, "/ctx/projects/phoenix.yaml", []byte(phoenixYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/ctx/projects/README.md", []byte("not an entity"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := b.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Load returned %d entities, want 1", len(got))
	}
	if got[0].Type != entity.TypeProject {
		t.Errorf("Type = %q, want project", got[0].Type)
	}
	if got[0].Destination() != "Projects/Phoenix" {
		t.Errorf("Destination = %q", got[0].Destination())
	}
}

func TestDirBackend_SaveRoundTrip(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	b, err := entity.NewDirBackend(fs, "/ctx")
	if err != nil {
		t.Fatalf("NewDirBackend: %v", err)
	}

	want := entity.Entity{
		ID: "jon-smith", Name: "Jon Smith", Type: entity.TypePerson,
		SoundsLike: []string{"Jon Smth"}, Projects: []string{"phoenix"},
	}
	if err := b.Save(context.Background(), want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join("/ctx", "people", "jon-smith.yaml")
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "sounds_like:") {
		t.Errorf("expected sounds_like key in file:\n%s", data)
	}
	if strings.Contains(string(data), "routing:") {
		t.Errorf("empty routing must be omitted:\n%s", data)
	}
	if ok, _ := afero.Exists(fs, path+".tmp"); ok {
		t.Error("temporary file left behind")
	}

	got, err := b.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]entity.Entity{want}, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDirBackend_RejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	b, err := entity.NewDirBackend(fs, "/ctx")
	if err != nil {
		t.Fatalf("NewDirBackend: %v", err)
	}
	bad := "id: x\nname: X\nnickname: typo\n"
	if err := afero.WriteFile(fs, "/ctx/terms/x.yml", []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Load(context.Background()); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestDirBackend_SaveUnknownType(t *testing.T) {
	t.Parallel()

	b, err := entity.NewDirBackend(afero.NewMemMapFs(), "/ctx")
	if err != nil {
		t.Fatalf("NewDirBackend: %v", err)
	}
	if err := b.Save(context.Background(), entity.Entity{ID: "x", Name: "X", Type: "planet"}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestDirBackend_SaveStaysUnderRoot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs := afero.NewMemMapFs()
	b, err := entity.NewDirBackend(fs, "/ctx")
	if err != nil {
		t.Fatalf("NewDirBackend: %v", err)
	}
	ix, err := entity.NewIndex(ctx, b)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}

	e := entity.Entity{ID: entity.Slugify("../../outside"), Name: "Outside", Type: entity.TypeProject}
	if err := ix.CommitEntity(ctx, e); !errors.Is(err, entity.ErrInvalid) {
		t.Errorf("CommitEntity err = %v, want ErrInvalid", err)
	}
	if err := b.Save(ctx, e); !errors.Is(err, entity.ErrInvalid) {
		t.Errorf("Save err = %v, want ErrInvalid", err)
	}
	if ok, _ := afero.Exists(fs, "/outside.yaml"); ok {
		t.Error("entity written outside the context directory")
	}
}

func TestDirBackend_WithIndex(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b, err := entity.NewDirBackend(afero.NewMemMapFs(), "/ctx")
	if err != nil {
		t.Fatalf("NewDirBackend: %v", err)
	}
	ix, err := entity.NewIndex(ctx, b)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	if err := ix.CommitEntity(ctx, entity.Entity{ID: "umm", Name: "umm", Type: entity.TypeIgnored}); err != nil {
		t.Fatalf("CommitEntity: %v", err)
	}
	if !ix.IsIgnored("umm") {
		t.Fatal("committed ignore entry not visible")
	}
}

func TestDecodeYAML(t *testing.T) {
	t.Parallel()

	e, err := entity.DecodeYAML(strings.NewReader("id: k8s\nname: K8s\ntype: term\nexpansion: Kubernetes\n"))
	if err != nil {
		t.Fatalf("DecodeYAML: %v", err)
	}
	if e.Expansion != "Kubernetes" || e.Type != entity.TypeTerm {
		t.Errorf("unexpected entity %+v", e)
	}
}
