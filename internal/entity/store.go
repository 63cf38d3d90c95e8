package entity

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalid wraps validation failures from [Validate].
	ErrInvalid = errors.New("invalid entity")

	// ErrReload is wrapped by [Index.CommitEntity] when the entity was saved
	// but the snapshot could not be refreshed.
	ErrReload = errors.New("reload after save failed")
)

// Store is the context store consumed by the enhancement tools and the
// clarification resolver.
//
// Lookups are synchronous reads of the last loaded snapshot and match text
// case-insensitively. Writes go through CommitEntity, which persists and
// then reloads so the entity is visible to the next lookup.
type Store interface {
	// Search returns entities of any type whose name equals query, followed
	// by those whose name contains it.
	Search(query string) []Entity

	// FindBySoundsLike returns the entity whose sounds_like list (or, failing
	// that, whose name by phonetic similarity) best matches text.
	FindBySoundsLike(text string) (Entity, bool)

	// AllProjects returns every project entity.
	AllProjects() []Entity

	// AllTerms returns every term entity.
	AllTerms() []Entity

	// IsIgnored reports whether text is on the ignore list.
	IsIgnored(text string) bool

	// CommitEntity saves e (insert or replace by ID) and reloads the store.
	CommitEntity(ctx context.Context, e Entity) error

	// Reload re-reads all entities from the backing storage.
	Reload(ctx context.Context) error
}

// Backend is the persistence layer behind an [Index].
type Backend interface {
	// Load returns every stored entity.
	Load(ctx context.Context) ([]Entity, error)

	// Save inserts or replaces e by ID.
	Save(ctx context.Context, e Entity) error
}

// Slugify derives an entity id from a display name: trimmed, lowercased,
// with every run of whitespace collapsed into a single hyphen. It is
// idempotent.
func Slugify(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// normalize is the comparison key for case-insensitive lookups.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
