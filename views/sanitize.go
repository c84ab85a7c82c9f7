package views

import (
	"context"
	"io"
	"regexp"

	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"
)

var embedSrc = regexp.MustCompile(`^https://(www\.youtube(-nocookie)?\.com/embed/|player\.vimeo\.com/video/|open\.spotify\.com/embed/)`)

// postPolicy is the allowlist for post bodies written in the admin editor.
// Embedded players are limited to a few known hosts.
var postPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("iframe")
	p.AllowAttrs("src").Matching(embedSrc).OnElements("iframe")
	p.AllowAttrs("width", "height").Matching(bluemonday.Number).OnElements("iframe")
	p.AllowAttrs("allowfullscreen", "loading", "title").OnElements("iframe")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)).OnElements("pre", "code", "span", "div", "figure")
	return p
}()

// SanitizeHTML strips anything from post content that is not on the allowlist.
func SanitizeHTML(s string) string {
	return postPolicy.Sanitize(s)
}

// Content renders admin-authored HTML after running it through the post
// allowlist.
func Content(html string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, SanitizeHTML(html))
		return err
	})
}
