// Package nowplaying reports the track currently playing on the site owner's
// Spotify account.
package nowplaying

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	DefaultTokenURL = "https://accounts.spotify.com/api/token"
	DefaultAPIBase  = "https://api.spotify.com"

	currentlyPlayingPath = "/v1/me/player/currently-playing"
	notConfigured        = "Spotify not configured"

	fetchTimeout = 10 * time.Second
)

// Config holds the app credentials and the long-lived refresh token obtained
// once out of band.
type Config struct {
	ClientID     string        `env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string        `env:"SPOTIFY_CLIENT_SECRET"`
	RefreshToken string        `env:"SPOTIFY_REFRESH_TOKEN"`
	TokenURL     string        `env:"SPOTIFY_TOKEN_URL" envDefault:"https://accounts.spotify.com/api/token"`
	APIBase      string        `env:"SPOTIFY_API_BASE" envDefault:"https://api.spotify.com"`
	TTL          time.Duration `env:"NOW_PLAYING_TTL" envDefault:"5s"`
}

// Configured reports whether all three credentials are present.
func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// Track describes a song.
type Track struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Image  string `json:"image"`
	URL    string `json:"url"`
}

// Status is the payload served to the widget. Track is nil when nothing is
// playing, which leaves only isPlaying (and error) in the JSON.
type Status struct {
	*Track
	IsPlaying bool   `json:"isPlaying"`
	Error     string `json:"error,omitempty"`
}

// Client polls the currently-playing endpoint and caches the answer for TTL.
type Client struct {
	cfg  Config
	http *http.Client
	src  oauth2.TokenSource
	log  *zap.Logger
	now  func() time.Time

	mu        sync.Mutex
	cached    Status
	fetchedAt time.Time
	hasCache  bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for both the token and API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger for upstream failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

func withClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New returns a Client. An unconfigured Client is valid and reports
// "Spotify not configured" without touching the network.
func New(cfg Config, opts ...Option) *Client {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")

	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  zap.NewNop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.Configured() {
		oc := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.http)
		c.src = oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	}
	return c
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool { return c.src != nil }

// NowPlaying returns the current status. Failures are logged and reported as
// not playing. Concurrent callers within TTL share one upstream call.
func (c *Client) NowPlaying(ctx context.Context) Status {
	if !c.Configured() {
		return Status{Error: notConfigured}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasCache && c.cfg.TTL > 0 && c.now().Sub(c.fetchedAt) < c.cfg.TTL {
		return c.cached
	}

	// The result is cached for every caller, so it outlives the request that
	// triggered it.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
	defer cancel()
	st, err := c.fetch(fctx)
	if err != nil {
		c.log.Warn("now playing lookup failed", zap.Error(err))
		st = Status{}
	}
	c.cached, c.fetchedAt, c.hasCache = st, c.now(), true
	return st
}

type currentlyPlaying struct {
	IsPlaying bool `json:"is_playing"`
	Item      *struct {
		Name    string `json:"name"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
		Album struct {
			Name   string `json:"name"`
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"album"`
		ExternalURLs struct {
			Spotify string `json:"spotify"`
		} `json:"external_urls"`
	} `json:"item"`
}

func (c *Client) fetch(ctx context.Context) (Status, error) {
	tok, err := c.src.Token()
	if err != nil {
		return Status{}, fmt.Errorf("refresh access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBase+currentlyPlayingPath, nil)
	if err != nil {
		return Status{}, err
	}
	tok.SetAuthHeader(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("currently playing: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent, resp.StatusCode == http.StatusNotFound:
		return Status{}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Status{}, fmt.Errorf("currently playing: unexpected status %d", resp.StatusCode)
	}

	var body currentlyPlaying
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Status{}, fmt.Errorf("decode currently playing: %w", err)
	}
	if body.Item == nil {
		return Status{}, nil
	}

	artists := make([]string, 0, len(body.Item.Artists))
	for _, a := range body.Item.Artists {
		artists = append(artists, a.Name)
	}
	track := &Track{
		Name:   body.Item.Name,
		Artist: strings.Join(artists, ", "),
		Album:  body.Item.Album.Name,
		URL:    body.Item.ExternalURLs.Spotify,
	}
	if len(body.Item.Album.Images) > 0 {
		track.Image = body.Item.Album.Images[0].URL
	}
	return Status{Track: track, IsPlaying: body.IsPlaying}, nil
}
