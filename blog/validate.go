package blog

import (
	"errors"
	"fmt"
)

// Validate checks collection-level invariants: every post has an id and a
// title, ids are unique, and slugs are non-empty and unique.
func Validate(posts []Post) error {
	ids := make(map[string]struct{}, len(posts))
	slugs := make(map[string]struct{}, len(posts))
	var errs []error
	for i, p := range posts {
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("post %d: missing id", i))
		} else if _, dup := ids[p.ID]; dup {
			errs = append(errs, fmt.Errorf("post %d: duplicate id %q", i, p.ID))
		}
		ids[p.ID] = struct{}{}

		if p.Slug == "" {
			errs = append(errs, fmt.Errorf("post %d: missing slug", i))
		} else if _, dup := slugs[p.Slug]; dup {
			errs = append(errs, fmt.Errorf("post %d: duplicate slug %q", i, p.Slug))
		}
		slugs[p.Slug] = struct{}{}

		if p.Title == "" {
			errs = append(errs, fmt.Errorf("post %d: missing title", i))
		}
	}
	return errors.Join(errs...)
}
