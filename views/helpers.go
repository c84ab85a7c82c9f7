package views

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/eringen/folio/blog"
)

var navLinks = []struct{ Href, Label string }{
	{"/", "Home"},
	{"/blog", "Blog"},
	{"/projects", "Projects"},
	{"/contact", "Contact"},
}

// buildURL joins path segments onto a base URL.
func buildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if u.Path == "" || u.Path == "." {
		u.Path = "/"
	}
	return u.String()
}

// AbsURL is buildURL for callers outside the package.
func AbsURL(base string, pathSegments ...string) string {
	return buildURL(base, pathSegments...)
}

// FormatDate renders a post timestamp for readers.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("January 2, 2006")
}

func pageTitle(site SiteConfig, meta PageMeta) string {
	if meta.Title == "" || meta.Title == site.Name {
		return site.Name
	}
	return meta.Title + " | " + site.Name
}

func pageDescription(site SiteConfig, meta PageMeta) string {
	if meta.Description != "" {
		return meta.Description
	}
	return site.Description
}

func ogType(meta PageMeta) string {
	if meta.OGType == "" {
		return "website"
	}
	return meta.OGType
}

func isoDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func homeScripts(nowPlaying bool) []string {
	if nowPlaying {
		return []string{"/public/nowplaying.js"}
	}
	return nil
}

func articleMeta(site SiteConfig, post blog.Post) PageMeta {
	return PageMeta{
		Title:       post.Title,
		Description: post.ExcerptText(),
		URL:         buildURL(site.URL, "blog", post.Slug),
		OGType:      "article",
		JSONLD:      BlogPostingJsonLD(site, post),
	}
}

func isImage(a blog.Attachment) bool {
	return strings.HasPrefix(a.Type, "image/")
}

// imgSnippet is the markup an editor pastes into a post to show an image.
func imgSnippet(a blog.Attachment) string {
	return `<img src="` + a.URL + `" alt="` + a.Name + `">`
}

func postStatus(p blog.Post) string {
	if p.Published {
		return "Published"
	}
	return "Draft"
}

func toggleLabel(p blog.Post) string {
	if p.Published {
		return "Unpublish"
	}
	return "Publish"
}

func editorHeading(p blog.Post) string {
	if p.ID == "" {
		return "New post"
	}
	return "Edit post"
}

func editorAction(p blog.Post) string {
	if p.ID == "" {
		return "/admin/posts"
	}
	return adminPostURL(p.ID)
}

// adminPostURL builds /admin/posts/{id}/... with every segment path-escaped.
func adminPostURL(id string, rest ...string) string {
	parts := []string{"/admin/posts", url.PathEscape(id)}
	for _, r := range rest {
		parts = append(parts, url.PathEscape(r))
	}
	return strings.Join(parts, "/")
}

// WebsiteJsonLD produces a Schema.org WebSite JSON-LD block using cfg values.
func WebsiteJsonLD(cfg SiteConfig) map[string]any {
	data := map[string]any{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     cfg.Name,
		"url":      buildURL(cfg.URL),
	}
	if cfg.Description != "" {
		data["description"] = cfg.Description
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	return data
}

// BlogPostingJsonLD produces a Schema.org BlogPosting JSON-LD block for a post.
func BlogPostingJsonLD(cfg SiteConfig, post blog.Post) map[string]any {
	postURL := buildURL(cfg.URL, "blog", post.Slug)
	data := map[string]any{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      post.Title,
		"datePublished": post.CreatedAt.UTC().Format(time.RFC3339),
		"dateModified":  post.UpdatedAt.UTC().Format(time.RFC3339),
		"url":           postURL,
		"publisher": map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		},
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if post.Category != "" {
		data["articleSection"] = post.Category
	}
	if post.Excerpt != nil {
		data["description"] = *post.Excerpt
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	return data
}

// HumanSize formats a byte count for attachment listings.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
