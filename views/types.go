package views

// SiteConfig holds site-wide settings populated from environment variables.
// Every handler passes this to components so nothing is hardcoded.
type SiteConfig struct {
	Name        string // SITE_NAME
	URL         string // SITE_URL
	Description string // SITE_DESCRIPTION
	Author      string // SITE_AUTHOR
	GitHub      string // SITE_GITHUB, contact link
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head>.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	JSONLD      any    // rendered as application/ld+json when set
	NoIndex     bool
}
