package folio

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/eringen/folio/blog"
	"github.com/eringen/folio/gate"
	"github.com/eringen/folio/logger"
	"github.com/eringen/folio/nowplaying"
	"github.com/eringen/folio/projects"
	"github.com/eringen/folio/views"
)

// SiteConfig holds all configuration for a folio site.
type SiteConfig struct {
	Name        string `env:"SITE_NAME" envDefault:"Portfolio"`
	URL         string `env:"SITE_URL" envDefault:"http://localhost:3000"`
	Description string `env:"SITE_DESCRIPTION"`
	Author      string `env:"SITE_AUTHOR"`
	GitHub      string `env:"SITE_GITHUB"`

	Addr string `env:"ADDR" envDefault:":3000"`

	KVURL    string `env:"KV_URL" envDefault:"sqlite://data/folio.db"`
	KVKey    string `env:"KV_KEY" envDefault:"blog_posts"`
	KVPrefix string `env:"KV_PREFIX"`

	AdminPassword    string `env:"ADMIN_PASSWORD"`
	AdminCookieToken string `env:"ADMIN_COOKIE_TOKEN"`
	SessionSecret    string `env:"SESSION_SECRET"`
	CookieSecure     bool   `env:"COOKIE_SECURE" envDefault:"true"`

	PostCacheTTL time.Duration `env:"POST_CACHE_TTL" envDefault:"30s"`
	UploadsDir   string        `env:"UPLOADS_DIR" envDefault:"data/uploads"`
	ProjectsFile string        `env:"PROJECTS_FILE"`

	Spotify nowplaying.Config

	LogMode string `env:"LOG_MODE" envDefault:"release"`
	LogDir  string `env:"LOG_DIR"`
	LogFile string `env:"LOG_FILE"`
}

// LoadConfig reads .env (when present) and then the process environment.
func LoadConfig() (SiteConfig, error) {
	_ = godotenv.Load()

	var cfg SiteConfig
	if err := env.Parse(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Portfolio"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.KVURL == "" {
		c.KVURL = "sqlite://data/folio.db"
	}
	if c.KVKey == "" {
		c.KVKey = blog.DefaultKey
	}
	if c.UploadsDir == "" {
		c.UploadsDir = "data/uploads"
	}
}

// Gate returns the admin secrets in the form the access gate expects.
func (c SiteConfig) Gate() gate.Config {
	return gate.Config{Password: c.AdminPassword, Token: c.AdminCookieToken}
}

// LoggerOptions maps the LOG_* settings onto the logger package.
func (c SiteConfig) LoggerOptions() logger.Options {
	return logger.Options{Dir: c.LogDir, Filename: c.LogFile, Compress: true}
}

func (c SiteConfig) views() views.SiteConfig {
	return views.SiteConfig{
		Name:        c.Name,
		URL:         c.URL,
		Description: c.Description,
		Author:      c.Author,
		GitHub:      c.GitHub,
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("folio: read random: %v", err))
	}
	return hex.EncodeToString(b)
}

// Option configures additional App behavior.
type Option func(*App)

// WithStore replaces the post repository. The App does not close it.
func WithStore(p blog.Posts) Option {
	return func(a *App) { a.Posts = p }
}

// WithNowPlaying replaces the now-playing source.
func WithNowPlaying(np NowPlayer) Option {
	return func(a *App) { a.NowPlaying = np }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) { a.Log = l }
}

// WithViews overrides page components. Nil fields keep the defaults.
func WithViews(v ViewFuncs) Option {
	return func(a *App) { a.Views = v }
}

// WithProjects sets the projects catalogue instead of loading PROJECTS_FILE.
func WithProjects(c *projects.Catalogue) Option {
	return func(a *App) { a.Projects = c }
}

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback runs after the built-in routes are registered.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}
