package views

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/folio/blog"
	"github.com/eringen/folio/projects"
)

var testSite = SiteConfig{
	Name:        "Jeet",
	URL:         "https://example.com",
	Description: "Portfolio & blog",
	Author:      "Jeet",
	GitHub:      "https://github.com/example",
}

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func samplePost() blog.Post {
	excerpt := "Short & sweet"
	return blog.Post{
		ID:        "p1",
		Slug:      "hello-world",
		Title:     "Hello <World>",
		Excerpt:   &excerpt,
		Content:   `<p>Hi</p><script>alert(1)</script><iframe src="https://www.youtube.com/embed/abc"></iframe><iframe src="https://evil.example/x"></iframe>`,
		Category:  "General",
		ReadTime:  "5 min read",
		Published: true,
		Attachments: []blog.Attachment{
			{ID: "a1", Name: "notes.pdf", URL: "/uploads/notes.pdf", Size: 2048, Type: "application/pdf"},
			{ID: "a2", Name: "pic.jpg", URL: "/uploads/pic.jpg", Size: 10, Type: "image/jpeg"},
		},
		CreatedAt: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC),
	}
}

func TestPostEscapesAndSanitizes(t *testing.T) {
	out := render(t, Post(testSite, samplePost()))

	assert.Contains(t, out, "<h1>Hello &lt;World&gt;</h1>")
	assert.Contains(t, out, "<p>Hi</p>")
	assert.NotContains(t, out, "<script>alert(1)</script>")
	assert.Contains(t, out, `src="https://www.youtube.com/embed/abc"`)
	assert.NotContains(t, out, "evil.example")
	assert.Contains(t, out, "March 4, 2025")
	assert.Contains(t, out, `href="/uploads/notes.pdf" download`)
	assert.Contains(t, out, "2.0 KB")
	assert.Contains(t, out, `<img src="/uploads/pic.jpg"`)
	assert.Contains(t, out, `<meta property="og:type" content="article">`)
	assert.Contains(t, out, `<link rel="canonical" href="https://example.com/blog/hello-world">`)
	assert.Contains(t, out, `application/ld+json`)
}

func TestHomeNowPlayingWidget(t *testing.T) {
	with := render(t, Home(testSite, []blog.Post{samplePost()}, true))
	assert.Contains(t, with, `id="now-playing"`)
	assert.Contains(t, with, `/public/nowplaying.js`)
	assert.Contains(t, with, `href="/blog/hello-world"`)

	without := render(t, Home(testSite, nil, false))
	assert.NotContains(t, without, `now-playing`)
	assert.NotContains(t, without, "Latest posts")
}

func TestBlogListEmpty(t *testing.T) {
	out := render(t, BlogList(testSite, nil))
	assert.Contains(t, out, "No posts yet.")
}

func TestProjectsAndGallery(t *testing.T) {
	cat, err := projects.Default()
	require.NoError(t, err)

	out := render(t, Projects(testSite, cat))
	assert.Contains(t, out, "Professional Experience")
	assert.Contains(t, out, `href="/projects/fun-mcp/gallery"`)
	assert.NotContains(t, out, `href="#"`, "placeholder links are hidden")

	pr, err := cat.Gallery("fun-mcp")
	require.NoError(t, err)
	out = render(t, Gallery(testSite, pr))
	assert.Contains(t, out, "Fun MCP Gallery")
	assert.Contains(t, out, "<figcaption>")
}

func TestContact(t *testing.T) {
	assert.Contains(t, render(t, Contact(testSite)), `href="https://github.com/example"`)
	assert.NotContains(t, render(t, Contact(SiteConfig{Name: "x"})), "GitHub")
}

func TestAdminViews(t *testing.T) {
	draft := samplePost()
	draft.Published = false

	out := render(t, AdminDashboard(testSite, []blog.Post{draft}, "Post saved", "tok"))
	assert.Contains(t, out, "Post saved")
	assert.Contains(t, out, "Draft")
	assert.Contains(t, out, ">Publish<")
	assert.Contains(t, out, `name="_csrf" value="tok"`)
	assert.Contains(t, out, `action="/admin/posts/p1/delete"`)
	assert.Contains(t, out, `content="noindex"`)

	out = render(t, AdminEditor(testSite, blog.Post{}, "", "tok"))
	assert.Contains(t, out, `action="/admin/posts"`)
	assert.Contains(t, out, " checked>", "new posts default to published")
	assert.NotContains(t, out, "Attachments")

	out = render(t, AdminEditor(testSite, draft, "Title and content are required", "tok"))
	assert.Contains(t, out, `action="/admin/posts/p1"`)
	assert.NotContains(t, out, " checked>")
	assert.Contains(t, out, "Title and content are required")
	assert.Contains(t, out, `action="/admin/posts/p1/attachments/a1/delete"`)
	assert.Contains(t, out, "&lt;script&gt;", "content is escaped inside the textarea")

	out = render(t, AdminLogin(testSite, true, false, "tok"))
	assert.Contains(t, out, "Invalid password")
	assert.Contains(t, out, "not configured")
}

func TestUnsafeURLsAreNeutralised(t *testing.T) {
	site := testSite
	site.GitHub = "javascript:alert(1)"
	assert.Contains(t, render(t, Contact(site)), `href="about:invalid#TemplFailedSanitizationURL"`)

	post := samplePost()
	post.Attachments = []blog.Attachment{
		{ID: "a1", Name: "x.pdf", URL: "JAVASCRIPT:alert(1)", Type: "application/pdf"},
		{ID: "a2", Name: "y.png", URL: "data:image/png;base64,AAAA", Type: "image/png"},
		{ID: "a3", Name: "z.pdf", URL: "/uploads/z.pdf?a=1&b=2", Type: "application/pdf"},
	}
	out := render(t, Post(testSite, post))
	assert.NotContains(t, out, "alert(1)")
	assert.NotContains(t, out, "data:image")
	assert.Contains(t, out, `href="/uploads/z.pdf?a=1&amp;b=2"`)
}

func TestAdminPostURLEscapesSegments(t *testing.T) {
	assert.Equal(t, "/admin/posts/p1", adminPostURL("p1"))
	assert.Equal(t, "/admin/posts/a%2Fb/attachments/c%3Fd/delete", adminPostURL("a/b", "attachments", "c?d", "delete"))
}

func TestContentSanitizes(t *testing.T) {
	out := render(t, Content(`<p onclick="x()">ok</p><script>bad()</script>`))
	assert.Equal(t, "<p>ok</p>", out)
}

func TestJsonLD(t *testing.T) {
	site := WebsiteJsonLD(testSite)
	assert.Equal(t, "WebSite", site["@type"])
	assert.Equal(t, "https://example.com/", site["url"])

	post := BlogPostingJsonLD(testSite, samplePost())
	assert.Equal(t, "https://example.com/blog/hello-world", post["url"])
	assert.Equal(t, "Short & sweet", post["description"])
	assert.Equal(t, "2025-03-04T10:00:00Z", post["datePublished"])
	assert.Equal(t, "General", post["articleSection"])
}

func TestJsonLDCannotCloseScript(t *testing.T) {
	post := samplePost()
	post.Title = "</script><script>alert(1)</script>"
	out := render(t, Post(testSite, post))
	assert.Contains(t, out, `<script id="jsonld" type="application/ld+json">`)
	assert.NotContains(t, out, "</script><script>alert(1)")
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", HumanSize(512))
	assert.Equal(t, "1.5 KB", HumanSize(1536))
	assert.Equal(t, "10.0 MB", HumanSize(10<<20))
}
