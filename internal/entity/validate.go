package entity

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate checks required fields.
//
// Rules:
//   - ID and Name must be non-empty.
//   - Type must be a recognised [Type].
//   - ID must already be in slug form (see [Slugify]).
//   - ID must not contain path separators or "..". It doubles as a file
//     name in [DirBackend].
func Validate(e Entity) error {
	var errs []error
	if e.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	} else if Slugify(e.ID) != e.ID {
		errs = append(errs, fmt.Errorf("id %q is not a slug", e.ID))
	} else if err := checkPathSafe(e.ID); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(e.Name) == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if !e.Type.IsValid() {
		errs = append(errs, fmt.Errorf("type %q is not a recognised entity type", e.Type))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func checkPathSafe(id string) error {
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("id %q must not contain path separators or \"..\"", id)
	}
	return nil
}

// AppendUnique appends each value not already present in s, compared
// case-insensitively after trimming. Empty values are dropped.
func AppendUnique(s []string, values ...string) []string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if slices.ContainsFunc(s, func(x string) bool { return strings.EqualFold(x, v) }) {
			continue
		}
		s = append(s, v)
	}
	return s
}
