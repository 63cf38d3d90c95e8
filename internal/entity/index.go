package entity

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/scribe/internal/transcript/phonetic"
)

// NameMatcher ranks known names against a misheard one. *phonetic.Matcher
// satisfies it.
type NameMatcher interface {
	Match(heard string, names []string) (phonetic.Result, bool)
}

// IndexOption configures an [Index].
type IndexOption func(*Index)

// WithNameMatcher enables the phonetic fallback of
// [Index.FindBySoundsLike] for names without a matching sounds_like entry.
func WithNameMatcher(m NameMatcher) IndexOption {
	return func(ix *Index) { ix.matcher = m }
}

// Index is the in-memory [Store] over a [Backend]. Lookups read the snapshot
// taken by the last [Index.Reload].
type Index struct {
	backend Backend
	matcher NameMatcher

	mu       sync.RWMutex
	entities []Entity // sorted by ID
}

var _ Store = (*Index)(nil)

// NewIndex creates an Index and performs the initial load.
func NewIndex(ctx context.Context, backend Backend, opts ...IndexOption) (*Index, error) {
	ix := &Index{backend: backend}
	for _, o := range opts {
		o(ix)
	}
	if err := ix.Reload(ctx); err != nil {
		return nil, err
	}
	return ix, nil
}

// Reload implements [Store.Reload]. Entities that fail validation are
// skipped with a warning; when two share an ID the later one wins.
func (ix *Index) Reload(ctx context.Context) error {
	loaded, err := ix.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("entity: reload: %w", err)
	}

	byID := make(map[string]Entity, len(loaded))
	for _, e := range loaded {
		if err := Validate(e); err != nil {
			slog.Warn("entity: skipping invalid entity", "id", e.ID, "name", e.Name, "err", err)
			continue
		}
		byID[e.ID] = e
	}
	snapshot := make([]Entity, 0, len(byID))
	for _, e := range byID {
		snapshot = append(snapshot, e)
	}
	slices.SortFunc(snapshot, func(a, b Entity) int { return cmp.Compare(a.ID, b.ID) })

	ix.mu.Lock()
	ix.entities = snapshot
	ix.mu.Unlock()
	return nil
}

// CommitEntity implements [Store.CommitEntity]. A failed reload after a
// successful save is reported wrapping [ErrReload].
func (ix *Index) CommitEntity(ctx context.Context, e Entity) error {
	if err := Validate(e); err != nil {
		return fmt.Errorf("entity: commit %q: %w", e.ID, err)
	}
	if err := ix.backend.Save(ctx, e); err != nil {
		return fmt.Errorf("entity: commit %q: save: %w", e.ID, err)
	}
	if err := ix.Reload(ctx); err != nil {
		return fmt.Errorf("entity: commit %q: %w: %w", e.ID, ErrReload, err)
	}
	return nil
}

// Search implements [Store.Search]. Ignore-list entries are never returned.
func (ix *Index) Search(query string) []Entity {
	q := normalize(query)
	if q == "" {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var exact, partial []Entity
	for _, e := range ix.entities {
		if e.Type == TypeIgnored {
			continue
		}
		name := normalize(e.Name)
		switch {
		case name == q:
			exact = append(exact, e.Clone())
		case strings.Contains(name, q):
			partial = append(partial, e.Clone())
		}
	}
	return append(exact, partial...)
}

// FindBySoundsLike implements [Store.FindBySoundsLike].
func (ix *Index) FindBySoundsLike(text string) (Entity, bool) {
	t := normalize(text)
	if t == "" {
		return Entity{}, false
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	for _, e := range ix.entities {
		if e.Type == TypeIgnored {
			continue
		}
		for _, s := range e.SoundsLike {
			if normalize(s) == t {
				return e.Clone(), true
			}
		}
	}

	if ix.matcher == nil {
		return Entity{}, false
	}
	names := make([]string, 0, len(ix.entities))
	owners := make([]Entity, 0, len(ix.entities))
	for _, e := range ix.entities {
		if e.Type == TypeIgnored {
			continue
		}
		names = append(names, e.Name)
		owners = append(owners, e)
	}
	res, ok := ix.matcher.Match(text, names)
	if !ok {
		return Entity{}, false
	}
	for i, n := range names {
		if n == res.Name {
			return owners[i].Clone(), true
		}
	}
	return Entity{}, false
}

// AllProjects implements [Store.AllProjects].
func (ix *Index) AllProjects() []Entity { return ix.ofType(TypeProject) }

// AllTerms implements [Store.AllTerms].
func (ix *Index) AllTerms() []Entity { return ix.ofType(TypeTerm) }

// IsIgnored implements [Store.IsIgnored].
func (ix *Index) IsIgnored(text string) bool {
	t := normalize(text)
	if t == "" {
		return false
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for _, e := range ix.entities {
		if e.Type == TypeIgnored && normalize(e.Name) == t {
			return true
		}
	}
	return false
}

// Len returns the number of indexed entities.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entities)
}

func (ix *Index) ofType(t Type) []Entity {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []Entity
	for _, e := range ix.entities {
		if e.Type == t {
			out = append(out, e.Clone())
		}
	}
	return out
}
