package entity

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// typeDirs maps each entity type to its sub-directory in a [DirBackend].
var typeDirs = map[Type]string{
	TypePerson:  "people",
	TypeProject: "projects",
	TypeCompany: "companies",
	TypeTerm:    "terms",
	TypeIgnored: "ignored",
}

var _ Backend = (*DirBackend)(nil)

// DirBackend stores one YAML file per entity:
//
//	<root>/people/jon-smith.yaml
//	<root>/projects/phoenix.yaml
//	<root>/terms/k8s.yaml
//
// Example project file:
//
//	id: phoenix
//	name: Phoenix
//	type: project
//	classification:
//	  explicit_phrases: [phoenix, fenix]
//	routing:
//	  destination: Projects/Phoenix
type DirBackend struct {
	fs   afero.Fs
	root string
}

// NewDirBackend returns a DirBackend rooted at root on fs, creating the type
// directories if needed.
func NewDirBackend(fs afero.Fs, root string) (*DirBackend, error) {
	for _, dir := range typeDirs {
		if err := fs.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("entity: create %q: %w", filepath.Join(root, dir), err)
		}
	}
	return &DirBackend{fs: fs, root: root}, nil
}

// Load implements [Backend.Load]. A file that omits type inherits it from
// its directory.
func (b *DirBackend) Load(ctx context.Context) ([]Entity, error) {
	var out []Entity
	for typ, dir := range typeDirs {
		infos, err := afero.ReadDir(b.fs, filepath.Join(b.root, dir))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("entity: list %s: %w", dir, err)
		}
		for _, info := range infos {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if info.IsDir() || !isYAML(info.Name()) {
				continue
			}
			path := filepath.Join(b.root, dir, info.Name())
			e, err := b.loadFile(path)
			if err != nil {
				return nil, err
			}
			if e.Type == "" {
				e.Type = typ
			}
			out = append(out, e)
		}
	}
	return out, nil
}

func (b *DirBackend) loadFile(path string) (Entity, error) {
	f, err := b.fs.Open(path)
	if err != nil {
		return Entity{}, fmt.Errorf("entity: open %q: %w", path, err)
	}
	defer f.Close()

	e, err := DecodeYAML(f)
	if err != nil {
		return Entity{}, fmt.Errorf("entity: parse %q: %w", path, err)
	}
	return e, nil
}

// Save implements [Backend.Save]. The file is written next to its final
// location and renamed into place.
func (b *DirBackend) Save(_ context.Context, e Entity) error {
	dir, ok := typeDirs[e.Type]
	if !ok {
		return fmt.Errorf("entity: save %q: %w: type %q", e.ID, ErrInvalid, e.Type)
	}
	if err := checkPathSafe(e.ID); err != nil {
		return fmt.Errorf("entity: save: %w: %w", ErrInvalid, err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("entity: encode %q: %w", e.ID, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("entity: encode %q: %w", e.ID, err)
	}

	final := filepath.Join(b.root, dir, e.ID+".yaml")
	tmp := final + ".tmp"
	if err := afero.WriteFile(b.fs, tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("entity: write %q: %w", tmp, err)
	}
	if err := b.fs.Rename(tmp, final); err != nil {
		return fmt.Errorf("entity: rename %q: %w", final, err)
	}
	return nil
}

// DecodeYAML parses a single entity document. Unknown keys are rejected.
func DecodeYAML(r io.Reader) (Entity, error) {
	var e Entity
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&e); err != nil {
		return Entity{}, fmt.Errorf("entity: decode yaml: %w", err)
	}
	return e, nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
