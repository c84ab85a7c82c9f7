package folio

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/eringen/folio/blog"
)

// PostCache keeps the published posts in memory for ttl so public pages do
// not decode the whole collection on every request. Every admin mutation
// invalidates it; a ttl of zero disables caching.
type PostCache struct {
	mu      sync.RWMutex
	posts   []blog.Post
	loaded  bool
	fetched time.Time
	ttl     time.Duration
	store   blog.Posts
}

// NewPostCache creates a PostCache backed by the given store.
func NewPostCache(s blog.Posts, ttl time.Duration) *PostCache {
	return &PostCache{store: s, ttl: ttl}
}

func (c *PostCache) valid() bool {
	return c.loaded && c.ttl > 0 && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *PostCache) Invalidate() {
	c.mu.Lock()
	c.posts = nil
	c.loaded = false
	c.mu.Unlock()
}

// ensureLoaded returns the cached published posts, reloading them when stale.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *PostCache) ensureLoaded(ctx context.Context) []blog.Post {
	c.mu.RLock()
	if c.valid() {
		posts := c.posts
		c.mu.RUnlock()
		return posts
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid() {
		c.posts = c.store.ListPublished(ctx)
		c.loaded = true
		c.fetched = time.Now()
	}
	return c.posts
}

// ListPublished returns published posts, newest first.
func (c *PostCache) ListPublished(ctx context.Context) []blog.Post {
	return slices.Clone(c.ensureLoaded(ctx))
}

// Recent returns at most n published posts, newest first.
func (c *PostCache) Recent(ctx context.Context, n int) []blog.Post {
	posts := c.ensureLoaded(ctx)
	if len(posts) > n {
		posts = posts[:n]
	}
	return slices.Clone(posts)
}

// GetBySlug returns a published post from the cache.
func (c *PostCache) GetBySlug(ctx context.Context, slug string) (blog.Post, error) {
	for _, p := range c.ensureLoaded(ctx) {
		if p.Slug == slug {
			return p, nil
		}
	}
	return blog.Post{}, blog.ErrNotFound
}
