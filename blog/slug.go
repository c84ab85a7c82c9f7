package blog

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxSlugLen is the longest slug the store produces.
const MaxSlugLen = 60

// fallbackSlug is used when a title has no ASCII letters or digits.
const fallbackSlug = "post"

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases title, collapses every run of characters outside
// [a-z0-9] into one hyphen, trims hyphens from both ends and truncates the
// result to MaxSlugLen.
func Slugify(title string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(title), "-")
	return truncateSlug(strings.Trim(s, "-"), MaxSlugLen)
}

// truncateSlug cuts s to n bytes and drops a hyphen left dangling by the cut.
// Slugs are pure ASCII, so byte slicing is safe.
func truncateSlug(s string, n int) string {
	if len(s) > n {
		s = s[:n]
	}
	return strings.TrimRight(s, "-")
}

// uniqueSlug derives a slug for title that no post other than excludeID
// already uses, appending -1, -2, ... on collision.
func uniqueSlug(title string, posts []Post, excludeID string) string {
	base := Slugify(title)
	if base == "" {
		base = fallbackSlug
	}
	taken := func(slug string) bool {
		for _, p := range posts {
			if p.ID != excludeID && p.Slug == slug {
				return true
			}
		}
		return false
	}
	candidate := base
	for n := 1; taken(candidate); n++ {
		suffix := "-" + strconv.Itoa(n)
		candidate = truncateSlug(base, MaxSlugLen-len(suffix)) + suffix
	}
	return candidate
}
