package folio

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/folio/blog"
	"github.com/eringen/folio/gate"
	"github.com/eringen/folio/kv"
	"github.com/eringen/folio/nowplaying"
)

const (
	testPassword = "hunter2"
	testToken    = "tok-123"
)

type fakeNowPlaying struct {
	status     nowplaying.Status
	configured bool
}

func (f fakeNowPlaying) NowPlaying(context.Context) nowplaying.Status { return f.status }
func (f fakeNowPlaying) Configured() bool                             { return f.configured }

type testApp struct {
	*App
	store *blog.Store
}

func newTestApp(t *testing.T, mutate ...func(*SiteConfig)) testApp {
	t.Helper()
	cfg := SiteConfig{
		Name:             "Test Folio",
		URL:              "https://example.com",
		AdminPassword:    testPassword,
		AdminCookieToken: testToken,
		SessionSecret:    "test-session-secret",
		PostCacheTTL:     time.Minute,
		UploadsDir:       t.TempDir(),
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	store := blog.NewStore(kv.NewMemory())
	np := fakeNowPlaying{
		configured: true,
		status: nowplaying.Status{
			IsPlaying: true,
			Track:     &nowplaying.Track{Name: "Song", Artist: "Band", Album: "Record"},
		},
	}
	app, err := New(context.Background(), cfg, WithStore(store), WithNowPlaying(np))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return testApp{App: app, store: store}
}

type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
	admin       bool
	cookies     []*http.Cookie
	remoteAddr  string
}

func (ta testApp) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(r.method, r.path, r.body)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.admin {
		req.AddCookie(&http.Cookie{Name: gate.CookieName, Value: testToken})
	}
	for _, ck := range r.cookies {
		req.AddCookie(ck)
	}
	if r.remoteAddr != "" {
		req.RemoteAddr = r.remoteAddr
	}
	rec := httptest.NewRecorder()
	ta.Echo.ServeHTTP(rec, req)
	return rec
}

func (ta testApp) get(t *testing.T, path string) *httptest.ResponseRecorder {
	return ta.do(t, request{method: http.MethodGet, path: path})
}

func (ta testApp) postJSON(t *testing.T, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	return ta.do(t, request{method: http.MethodPost, path: path, body: bytes.NewReader(b), contentType: "application/json", admin: admin})
}

func (ta testApp) createPost(t *testing.T, body map[string]any) blog.Post {
	t.Helper()
	rec := ta.postJSON(t, "/api/admin/posts", body, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var post blog.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	return post
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func TestLoginJSON(t *testing.T) {
	app := newTestApp(t)

	rec := app.postJSON(t, "/api/admin/login", map[string]string{"password": testPassword}, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	ck := findCookie(rec, gate.CookieName)
	require.NotNil(t, ck)
	assert.Equal(t, testToken, ck.Value)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, "/", ck.Path)
	assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)
}

func TestLoginRejections(t *testing.T) {
	app := newTestApp(t)

	rec := app.postJSON(t, "/api/admin/login", map[string]string{"password": "wrong"}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, msgInvalidPassword, decodeError(t, rec))
	assert.Nil(t, findCookie(rec, gate.CookieName))

	rec = app.do(t, request{method: http.MethodPost, path: "/api/admin/login", body: strings.NewReader("{nope"), contentType: "application/json"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgInvalidRequest, decodeError(t, rec))

	rec = app.postJSON(t, "/api/admin/login", map[string]string{}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing password field")
}

func TestLoginNotConfigured(t *testing.T) {
	app := newTestApp(t, func(c *SiteConfig) { c.AdminCookieToken = "" })

	rec := app.postJSON(t, "/api/admin/login", map[string]string{"password": testPassword}, false)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, msgNotConfigured, decodeError(t, rec))
	assert.Nil(t, findCookie(rec, gate.CookieName))
}

func TestLoginRateLimit(t *testing.T) {
	app := newTestApp(t)
	attempt := func(password, addr string) *httptest.ResponseRecorder {
		b, _ := json.Marshal(map[string]string{"password": password})
		return app.do(t, request{
			method: http.MethodPost, path: "/api/admin/login",
			body: bytes.NewReader(b), contentType: "application/json",
			remoteAddr: addr,
		})
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusUnauthorized, attempt("wrong", "203.0.113.7:1000").Code)
	}
	rec := attempt(testPassword, "203.0.113.7:1000")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, msgTooManyAttempts, decodeError(t, rec))

	assert.Equal(t, http.StatusOK, attempt(testPassword, "203.0.113.8:1000").Code, "other clients are unaffected")
}

func TestLoginForm(t *testing.T) {
	app := newTestApp(t)
	form := url.Values{"password": {testPassword}}
	rec := app.do(t, request{
		method: http.MethodPost, path: "/api/admin/login",
		body: strings.NewReader(form.Encode()), contentType: "application/x-www-form-urlencoded",
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))
	require.NotNil(t, findCookie(rec, gate.CookieName))
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, request{method: http.MethodPost, path: "/api/admin/logout"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "logout sits behind the gate")

	rec = app.do(t, request{method: http.MethodPost, path: "/api/admin/logout", admin: true})
	require.Equal(t, http.StatusOK, rec.Code)
	ck := findCookie(rec, gate.CookieName)
	require.NotNil(t, ck)
	assert.Empty(t, ck.Value)
	assert.Equal(t, -1, ck.MaxAge)
}

func TestGate(t *testing.T) {
	app := newTestApp(t)

	rec := app.get(t, "/admin")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, gate.LoginPath, rec.Header().Get("Location"))

	rec = app.get(t, "/admin/login")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="password"`)

	rec = app.do(t, request{method: http.MethodGet, path: "/admin", admin: true})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, request{method: http.MethodGet, path: "/admin/login", admin: true})
	assert.Equal(t, http.StatusSeeOther, rec.Code, "signed-in visitors skip the login page")

	rec = app.do(t, request{method: http.MethodGet, path: "/admin/login", cookies: []*http.Cookie{{Name: gate.CookieName, Value: "tok-12"}}})
	assert.Equal(t, http.StatusOK, rec.Code, "a wrong cookie still sees the login form")

	rec = app.get(t, "/api/admin/posts")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGateUnconfigured(t *testing.T) {
	app := newTestApp(t, func(c *SiteConfig) {
		c.AdminPassword = ""
		c.AdminCookieToken = ""
	})

	rec := app.do(t, request{method: http.MethodGet, path: "/api/admin/posts", cookies: []*http.Cookie{{Name: gate.CookieName, Value: ""}}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = app.get(t, "/admin")
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = app.get(t, "/admin/login")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "not configured")

	rec = app.do(t, request{method: http.MethodGet, path: "/admin/login", cookies: []*http.Cookie{{Name: gate.CookieName, Value: ""}}})
	assert.Equal(t, http.StatusOK, rec.Code, "an empty cookie is not a session when no token is set")
}

func TestAPICreatePost(t *testing.T) {
	app := newTestApp(t)

	post := app.createPost(t, map[string]any{"title": "Hello, World!", "content": "<p>Hi</p>", "excerpt": "   "})
	assert.NotEmpty(t, post.ID)
	assert.Equal(t, "hello-world", post.Slug)
	assert.Equal(t, defaultCategory, post.Category)
	assert.Equal(t, defaultReadTime, post.ReadTime)
	assert.True(t, post.Published)
	assert.Nil(t, post.Excerpt)
	assert.Empty(t, post.Attachments)
	assert.Equal(t, post.CreatedAt, post.UpdatedAt)

	second := app.createPost(t, map[string]any{"title": "Hello World", "content": "again"})
	assert.Equal(t, "hello-world-1", second.Slug)

	rec := app.postJSON(t, "/api/admin/posts", map[string]any{"title": "  ", "content": "x"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgRequired, decodeError(t, rec))

	rec = app.postJSON(t, "/api/admin/posts", map[string]any{"title": "x"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, request{method: http.MethodPost, path: "/api/admin/posts", body: strings.NewReader("[1,2"), contentType: "application/json", admin: true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgInvalidRequest, decodeError(t, rec))
}

func TestAPIListAndGet(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, request{method: http.MethodGet, path: "/api/admin/posts", admin: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	draft := app.createPost(t, map[string]any{"title": "Draft", "content": "wip", "published": false})
	app.createPost(t, map[string]any{"title": "Live", "content": "done"})

	rec = app.do(t, request{method: http.MethodGet, path: "/api/admin/posts", admin: true})
	var posts []blog.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posts))
	assert.Len(t, posts, 2, "drafts are listed for the admin")

	rec = app.do(t, request{method: http.MethodGet, path: "/api/admin/posts/" + draft.ID, admin: true})
	require.Equal(t, http.StatusOK, rec.Code)
	var got blog.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, draft.ID, got.ID)
	assert.False(t, got.Published)

	rec = app.do(t, request{method: http.MethodGet, path: "/api/admin/posts/missing", admin: true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgPostNotFound, decodeError(t, rec))
}

func TestAPIUpdatePost(t *testing.T) {
	app := newTestApp(t)
	post := app.createPost(t, map[string]any{"title": "First Title", "content": "body", "excerpt": "short"})

	put := func(id, body string) *httptest.ResponseRecorder {
		return app.do(t, request{method: http.MethodPut, path: "/api/admin/posts/" + id, body: strings.NewReader(body), contentType: "application/json", admin: true})
	}

	rec := put(post.ID, `{"title":"Second Title","excerpt":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated blog.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "second-title", updated.Slug)
	assert.Nil(t, updated.Excerpt)
	assert.Equal(t, "body", updated.Content)
	assert.Equal(t, post.CreatedAt, updated.CreatedAt)
	assert.False(t, updated.UpdatedAt.Before(post.UpdatedAt))

	rec = put(post.ID, `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = put("missing", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = put(post.ID, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIDeletePost(t *testing.T) {
	app := newTestApp(t)
	post := app.createPost(t, map[string]any{"title": "Doomed", "content": "bye"})

	del := func(id string) *httptest.ResponseRecorder {
		return app.do(t, request{method: http.MethodDelete, path: "/api/admin/posts/" + id, admin: true})
	}
	rec := del(post.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = del(post.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, app.store.ListAll(context.Background()))
}

func TestPublicPages(t *testing.T) {
	app := newTestApp(t)
	live := app.createPost(t, map[string]any{"title": "Live Post", "content": "<p>Visible</p><script>alert(1)</script>", "category": "Go"})
	draft := app.createPost(t, map[string]any{"title": "Hidden Draft", "content": "secret", "published": false})

	rec := app.get(t, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Live Post")
	assert.NotContains(t, rec.Body.String(), "Hidden Draft")

	rec = app.get(t, "/blog")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), live.Link())

	rec = app.get(t, live.Link())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<p>Visible</p>")
	assert.NotContains(t, rec.Body.String(), "alert(1)")

	rec = app.get(t, draft.Link())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.get(t, "/blog/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	for _, path := range []string{"/projects", "/contact", "/projects/fun-mcp/gallery"} {
		assert.Equal(t, http.StatusOK, app.get(t, path).Code, path)
	}
	assert.Equal(t, http.StatusNotFound, app.get(t, "/projects/open-source/gallery").Code)
}

func TestTrailingSlashRedirect(t *testing.T) {
	app := newTestApp(t)
	rec := app.get(t, "/blog/")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/blog", rec.Header().Get("Location"))
}

func TestFeedAndSitemap(t *testing.T) {
	app := newTestApp(t)
	post := app.createPost(t, map[string]any{"title": "Feed Me", "content": "x", "excerpt": "tasty"})
	app.createPost(t, map[string]any{"title": "Not Yet", "content": "x", "published": false})

	rec := app.get(t, "/feed.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<rss")
	assert.Contains(t, body, "https://example.com"+post.Link())
	assert.Contains(t, body, "tasty")
	assert.NotContains(t, body, "Not Yet")

	rec = app.get(t, "/sitemap.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.Contains(t, body, "<urlset")
	assert.Contains(t, body, "https://example.com"+post.Link())
	assert.Contains(t, body, "https://example.com/projects/fun-mcp/gallery")
	assert.NotContains(t, body, "not-yet")

	rec = app.get(t, "/robots.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sitemap: https://example.com/sitemap.xml")
}

func TestNowPlayingEndpoint(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/api/now-playing", "/api/spotify/now-playing"} {
		rec := app.get(t, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
		assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))

		var status nowplaying.Status
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.True(t, status.IsPlaying)
		require.NotNil(t, status.Track)
		assert.Equal(t, "Song", status.Track.Name)
	}
}

func TestUnknownAPIRouteIsJSON(t *testing.T) {
	app := newTestApp(t)
	rec := app.get(t, "/api/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.NotEmpty(t, decodeError(t, rec))
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	rec := app.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCacheInvalidatedOnMutation(t *testing.T) {
	app := newTestApp(t)

	assert.NotContains(t, app.get(t, "/blog").Body.String(), "Fresh Post")

	post := app.createPost(t, map[string]any{"title": "Fresh Post", "content": "x"})
	assert.Contains(t, app.get(t, "/blog").Body.String(), "Fresh Post", "create invalidates")

	rec := app.do(t, request{method: http.MethodPut, path: "/api/admin/posts/" + post.ID, body: strings.NewReader(`{"published":false}`), contentType: "application/json", admin: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, app.get(t, "/blog").Body.String(), "Fresh Post", "update invalidates")

	// Writes that bypass the app are only seen once the cache expires.
	_, err := app.store.Create(context.Background(), blog.NewPost{Title: "Side Door", Content: "x"})
	require.NoError(t, err)
	assert.NotContains(t, app.get(t, "/blog").Body.String(), "Side Door")
	app.Cache.Invalidate()
	assert.Contains(t, app.get(t, "/blog").Body.String(), "Side Door")
}

func multipartFile(t *testing.T, filename string, data []byte) (io.Reader, string) {
	t.Helper()
	return multipartForm(t, nil, filename, data)
}

func multipartForm(t *testing.T, fields url.Values, filename string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k := range fields {
		require.NoError(t, w.WriteField(k, fields.Get(k)))
	}
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func widePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAttachments(t *testing.T) {
	app := newTestApp(t)
	post := app.createPost(t, map[string]any{"title": "With Files", "content": "x"})
	upload := func(name string, data []byte) *httptest.ResponseRecorder {
		body, ct := multipartFile(t, name, data)
		return app.do(t, request{method: http.MethodPost, path: "/api/admin/posts/" + post.ID + "/attachments", body: body, contentType: ct, admin: true})
	}
	diskPath := func(att blog.Attachment) string {
		return filepath.Join(app.Config.UploadsDir, strings.TrimPrefix(att.URL, uploadsPrefix))
	}

	rec := upload("Holiday Photo.png", widePNG(t, 1600, 400))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var updated blog.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Len(t, updated.Attachments, 1)
	photo := updated.Attachments[0]
	assert.Equal(t, "image/jpeg", photo.Type)
	assert.True(t, strings.HasPrefix(photo.URL, uploadsPrefix+photo.ID+"-holiday-photo"))
	assert.True(t, strings.HasSuffix(photo.URL, ".jpg"))

	f, err := os.Open(diskPath(photo))
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, maxImageWidth, cfg.Width)
	assert.Equal(t, 200, cfg.Height)

	rec = upload("notes.txt", []byte("plain text notes"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Len(t, updated.Attachments, 2)
	notes := updated.Attachments[1]
	assert.Equal(t, "notes.txt", notes.Name)
	assert.True(t, strings.HasSuffix(notes.URL, ".txt"))
	assert.Equal(t, int64(len("plain text notes")), notes.Size)

	rec = app.get(t, notes.URL)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "plain text notes", rec.Body.String())

	rec = app.do(t, request{method: http.MethodPost, path: "/api/admin/posts/" + post.ID + "/attachments", admin: true})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no file")

	rec = app.do(t, request{method: http.MethodDelete, path: "/api/admin/posts/" + post.ID + "/attachments/" + notes.ID, admin: true})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Len(t, updated.Attachments, 1)
	assert.NoFileExists(t, diskPath(notes))

	rec = app.do(t, request{method: http.MethodDelete, path: "/api/admin/posts/" + post.ID + "/attachments/" + notes.ID, admin: true})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, request{method: http.MethodDelete, path: "/api/admin/posts/" + post.ID, admin: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoFileExists(t, diskPath(photo), "deleting a post removes its files")
}

func TestAttachmentRejectsCorruptImage(t *testing.T) {
	app := newTestApp(t)
	post := app.createPost(t, map[string]any{"title": "Broken", "content": "x"})

	data := append(widePNG(t, 10, 10)[:40], 0, 0, 0)
	body, ct := multipartFile(t, "broken.png", data)
	rec := app.do(t, request{method: http.MethodPost, path: "/api/admin/posts/" + post.ID + "/attachments", body: body, contentType: ct, admin: true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid image", decodeError(t, rec))
}

// csrfCookie fetches a page so the CSRF middleware issues its token cookie.
func csrfCookie(t *testing.T, app testApp) *http.Cookie {
	t.Helper()
	rec := app.do(t, request{method: http.MethodGet, path: "/admin/posts/new", admin: true})
	require.Equal(t, http.StatusOK, rec.Code)
	ck := findCookie(rec, "_csrf")
	require.NotNil(t, ck)
	return ck
}

// submitForm posts an admin form with the CSRF token attached.
func submitForm(t *testing.T, app testApp, csrf *http.Cookie, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	form.Set("_csrf", csrf.Value)
	return app.do(t, request{
		method: http.MethodPost, path: path,
		body: strings.NewReader(form.Encode()), contentType: "application/x-www-form-urlencoded",
		admin: true, cookies: []*http.Cookie{csrf},
	})
}

func TestAdminFormCreate(t *testing.T) {
	app := newTestApp(t)
	csrf := csrfCookie(t, app)

	submit := func(form url.Values, withToken bool) *httptest.ResponseRecorder {
		if withToken {
			return submitForm(t, app, csrf, "/admin/posts", form)
		}
		return app.do(t, request{
			method: http.MethodPost, path: "/admin/posts",
			body: strings.NewReader(form.Encode()), contentType: "application/x-www-form-urlencoded",
			admin: true, cookies: []*http.Cookie{csrf},
		})
	}

	rec := submit(url.Values{"title": {"From Form"}, "content": {"hello"}}, false)
	assert.Equal(t, http.StatusForbidden, rec.Code, "missing CSRF token")

	rec = submit(url.Values{"title": {""}, "content": {"hello"}}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), msgRequired)

	rec = submit(url.Values{"title": {"From Form"}, "content": {"hello"}}, true)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/admin", rec.Header().Get("Location"))

	posts := app.store.ListAll(context.Background())
	require.Len(t, posts, 1)
	assert.Equal(t, "from-form", posts[0].Slug)
	assert.False(t, posts[0].Published, "an unchecked box means draft")
	assert.Equal(t, defaultCategory, posts[0].Category)
}

func TestAdminFormUpdate(t *testing.T) {
	app := newTestApp(t)
	csrf := csrfCookie(t, app)
	post := app.createPost(t, map[string]any{"title": "First Title", "content": "<p>v1</p>", "excerpt": "Teaser", "published": true})

	rec := submitForm(t, app, csrf, "/admin/posts/"+post.ID, url.Values{
		"title":    {"Second Title"},
		"content":  {"<p>v2</p>"},
		"excerpt":  {"  "},
		"category": {"Go"},
		"readTime": {"2 min read"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/admin", rec.Header().Get("Location"))

	got, err := app.store.GetByID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, "second-title", got.Slug, "renaming a post moves its slug")
	assert.Equal(t, "<p>v2</p>", got.Content)
	assert.Nil(t, got.Excerpt, "a blank excerpt clears it")
	assert.False(t, got.Published, "an unchecked box makes a draft")
	assert.Equal(t, "Go", got.Category)

	rec = submitForm(t, app, csrf, "/admin/posts/"+post.ID, url.Values{"title": {"Second Title"}, "content": {""}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), msgRequired)

	rec = submitForm(t, app, csrf, "/admin/posts/missing", url.Values{"title": {"x"}, "content": {"y"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminFormTogglePublish(t *testing.T) {
	app := newTestApp(t)
	csrf := csrfCookie(t, app)
	post := app.createPost(t, map[string]any{"title": "Quiet Draft", "content": "<p>shh</p>", "published": false})

	rec := app.get(t, "/blog/quiet-draft")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = submitForm(t, app, csrf, "/admin/posts/"+post.ID+"/publish", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))

	rec = app.get(t, "/blog/quiet-draft")
	assert.Equal(t, http.StatusOK, rec.Code, "publishing invalidates the cached post list")
	assert.Contains(t, rec.Body.String(), "<p>shh</p>")

	rec = submitForm(t, app, csrf, "/admin/posts/"+post.ID+"/publish", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	rec = app.get(t, "/blog/quiet-draft")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminFormDelete(t *testing.T) {
	app := newTestApp(t)
	csrf := csrfCookie(t, app)
	post := app.createPost(t, map[string]any{"title": "Doomed", "content": "x"})

	rec := submitForm(t, app, csrf, "/admin/posts/"+post.ID+"/delete", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))
	assert.Empty(t, app.store.ListAll(context.Background()))

	rec = submitForm(t, app, csrf, "/admin/posts/"+post.ID+"/delete", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code, "deleting twice still lands on the dashboard")
}

func TestAdminFormAttachments(t *testing.T) {
	app := newTestApp(t)
	csrf := csrfCookie(t, app)
	post := app.createPost(t, map[string]any{"title": "Files", "content": "x"})
	editPath := "/admin/posts/" + post.ID + "/edit"

	body, ct := multipartForm(t, url.Values{"_csrf": {csrf.Value}}, "notes.txt", []byte("notes"))
	rec := app.do(t, request{
		method: http.MethodPost, path: "/admin/posts/" + post.ID + "/attachments",
		body: body, contentType: ct, admin: true, cookies: []*http.Cookie{csrf},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, editPath, rec.Header().Get("Location"))

	got, err := app.store.GetByID(context.Background(), post.ID)
	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)

	rec = submitForm(t, app, csrf, "/admin/posts/"+post.ID+"/attachments/"+got.Attachments[0].ID+"/delete", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, editPath, rec.Header().Get("Location"))

	got, err = app.store.GetByID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Attachments)
}
