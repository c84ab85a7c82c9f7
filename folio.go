// Package folio is a personal portfolio and blog server built with Echo and
// templ. Posts live in a single key-value entry; the admin area is guarded by
// a shared cookie token.
package folio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/folio/blog"
	"github.com/eringen/folio/kv"
	"github.com/eringen/folio/nowplaying"
	"github.com/eringen/folio/projects"
	"github.com/eringen/folio/views"
)

// ViewFuncs holds the components the handlers render. Any nil field falls
// back to the views package.
type ViewFuncs struct {
	Home           func(site views.SiteConfig, recent []blog.Post, nowPlaying bool) templ.Component
	BlogList       func(site views.SiteConfig, posts []blog.Post) templ.Component
	Post           func(site views.SiteConfig, post blog.Post) templ.Component
	Projects       func(site views.SiteConfig, cat *projects.Catalogue) templ.Component
	Gallery        func(site views.SiteConfig, project projects.Project) templ.Component
	Contact        func(site views.SiteConfig) templ.Component
	AdminLogin     func(site views.SiteConfig, showError, configured bool, csrfToken string) templ.Component
	AdminDashboard func(site views.SiteConfig, posts []blog.Post, flash, csrfToken string) templ.Component
	AdminEditor    func(site views.SiteConfig, post blog.Post, errMsg, csrfToken string) templ.Component
	NotFound       func(site views.SiteConfig) templ.Component
	ServerError    func(site views.SiteConfig) templ.Component
}

// DefaultViews returns the built-in components.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Home:           views.Home,
		BlogList:       views.BlogList,
		Post:           views.Post,
		Projects:       views.Projects,
		Gallery:        views.Gallery,
		Contact:        views.Contact,
		AdminLogin:     views.AdminLogin,
		AdminDashboard: views.AdminDashboard,
		AdminEditor:    views.AdminEditor,
		NotFound:       views.NotFound,
		ServerError:    views.ServerError,
	}
}

func (v *ViewFuncs) fill(d ViewFuncs) {
	if v.Home == nil {
		v.Home = d.Home
	}
	if v.BlogList == nil {
		v.BlogList = d.BlogList
	}
	if v.Post == nil {
		v.Post = d.Post
	}
	if v.Projects == nil {
		v.Projects = d.Projects
	}
	if v.Gallery == nil {
		v.Gallery = d.Gallery
	}
	if v.Contact == nil {
		v.Contact = d.Contact
	}
	if v.AdminLogin == nil {
		v.AdminLogin = d.AdminLogin
	}
	if v.AdminDashboard == nil {
		v.AdminDashboard = d.AdminDashboard
	}
	if v.AdminEditor == nil {
		v.AdminEditor = d.AdminEditor
	}
	if v.NotFound == nil {
		v.NotFound = d.NotFound
	}
	if v.ServerError == nil {
		v.ServerError = d.ServerError
	}
}

// NowPlayer reports what the owner is listening to.
type NowPlayer interface {
	NowPlaying(ctx context.Context) nowplaying.Status
	Configured() bool
}

// App is the central folio application. It wires together the post store,
// cache, handlers, middleware and components.
type App struct {
	Config     SiteConfig
	Echo       *echo.Echo
	Posts      blog.Posts
	Cache      *PostCache
	Views      ViewFuncs
	Projects   *projects.Catalogue
	NowPlaying NowPlayer
	Log        *zap.Logger

	loginLimiter *LoginLimiter
	uploads      *Uploads
	customRoutes []func(*App)
	backend      kv.Store
}

// New builds an App. Unless WithStore is given, the KV backend named by
// cfg.KVURL is opened here and closed by Shutdown.
func New(ctx context.Context, cfg SiteConfig, opts ...Option) (*App, error) {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Views.fill(DefaultViews())

	if a.Log == nil {
		a.Log = zap.NewNop()
	}
	if a.Config.SessionSecret == "" {
		a.Config.SessionSecret = randomSecret()
		a.Log.Warn("SESSION_SECRET not set; flash messages will not survive a restart")
	}
	if !a.Config.Gate().Configured() {
		a.Log.Warn("admin not configured; set ADMIN_PASSWORD and ADMIN_COOKIE_TOKEN to enable /admin")
	}

	if a.Posts == nil {
		backend, err := kv.Open(ctx, a.Config.KVURL, kv.Options{Prefix: a.Config.KVPrefix})
		if err != nil {
			return nil, fmt.Errorf("folio: open kv: %w", err)
		}
		a.backend = backend
		a.Posts = blog.NewStore(backend,
			blog.WithKey(a.Config.KVKey),
			blog.WithLogger(a.Log.Named("blog")),
		)
	}

	if a.Projects == nil {
		cat, err := projects.Load(a.Config.ProjectsFile)
		if err != nil {
			a.closeBackend()
			return nil, fmt.Errorf("folio: load projects: %w", err)
		}
		a.Projects = cat
	}

	if a.NowPlaying == nil {
		a.NowPlaying = nowplaying.New(a.Config.Spotify, nowplaying.WithLogger(a.Log.Named("nowplaying")))
	}

	a.Cache = NewPostCache(a.Posts, a.Config.PostCacheTTL)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)
	a.uploads = NewUploads(a.Config.UploadsDir)

	a.Echo.HideBanner = true
	a.Echo.HidePort = true
	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return a, nil
}

func (a *App) site() views.SiteConfig {
	return a.Config.views()
}

func (a *App) setupRoutes() {
	e := a.Echo

	assets, _ := fs.Sub(EmbeddedAssets, "embedded")
	e.GET("/public/*", echo.WrapHandler(http.StripPrefix("/public/", http.FileServer(http.FS(assets)))))
	e.Static("/uploads", a.Config.UploadsDir)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/healthz", handleHealth)

	// Public pages
	e.GET("/", a.handleHome)
	e.GET("/blog", a.handleBlog)
	e.GET("/blog/:slug", a.handlePost)
	e.GET("/projects", a.handleProjects)
	e.GET("/projects/:slug/gallery", a.handleGallery)
	e.GET("/contact", a.handleContact)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/api/now-playing", a.handleNowPlaying)
	e.GET("/api/spotify/now-playing", a.handleNowPlaying)

	// Admin UI
	e.GET("/admin/login", a.handleAdminLoginPage)
	e.GET("/admin", a.handleAdmin)
	e.GET("/admin/posts/new", a.handleAdminNew)
	e.GET("/admin/posts/:id/edit", a.handleAdminEdit)
	e.POST("/admin/posts", a.handleAdminCreate)
	e.POST("/admin/posts/:id", a.handleAdminUpdate)
	e.POST("/admin/posts/:id/delete", a.handleAdminDelete)
	e.POST("/admin/posts/:id/publish", a.handleAdminTogglePublish)
	e.POST("/admin/posts/:id/attachments", a.handleAdminAttachmentUpload)
	e.POST("/admin/posts/:id/attachments/:attachmentID/delete", a.handleAdminAttachmentDelete)

	// Admin API
	api := e.Group("/api/admin")
	api.POST("/login", a.handleAPILogin)
	api.POST("/logout", a.handleAPILogout)
	api.GET("/posts", a.handleAPIListPosts)
	api.POST("/posts", a.handleAPICreatePost)
	api.GET("/posts/:id", a.handleAPIGetPost)
	api.PUT("/posts/:id", a.handleAPIUpdatePost)
	api.DELETE("/posts/:id", a.handleAPIDeletePost)
	api.POST("/posts/:id/attachments", a.handleAPIUploadAttachment)
	api.DELETE("/posts/:id/attachments/:attachmentID", a.handleAPIDeleteAttachment)
}

// Start serves HTTP on Config.Addr until Shutdown is called.
func (a *App) Start() error {
	a.Log.Info("listening", zap.String("addr", a.Config.Addr), zap.String("kv", kv.Redact(a.Config.KVURL)))
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully and releases the KV backend.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	return errors.Join(err, a.Close())
}

// Close releases resources opened by New. Safe to call more than once.
func (a *App) Close() error {
	return a.closeBackend()
}

func (a *App) closeBackend() error {
	if a.backend == nil {
		return nil
	}
	err := a.backend.Close()
	a.backend = nil
	return err
}
