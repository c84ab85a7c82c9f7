package blog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eringen/folio/kv"
)

// DefaultKey is the key holding the serialized post collection.
const DefaultKey = "blog_posts"

// ErrNotFound is returned when no post matches an id or slug.
var ErrNotFound = errors.New("blog: post not found")

// Posts is the post repository used by handlers, the cache and the CLI.
type Posts interface {
	// ListAll returns every post, published or not.
	ListAll(ctx context.Context) []Post
	// ListPublished returns published posts, newest first.
	ListPublished(ctx context.Context) []Post
	// GetBySlug returns a published post by slug.
	GetBySlug(ctx context.Context, slug string) (Post, error)
	// GetByID returns a post by id regardless of publish state.
	GetByID(ctx context.Context, id string) (Post, error)
	Create(ctx context.Context, in NewPost) (Post, error)
	Update(ctx context.Context, id string, patch Patch) (Post, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Store keeps all posts as one JSON array under a single key. Every mutation
// reads the whole collection, changes it in memory and writes it back. There
// is no locking: concurrent mutations race and the last write wins.
type Store struct {
	kv    kv.Store
	key   string
	log   *zap.Logger
	now   func() time.Time
	newID func() string
}

var _ Posts = (*Store)(nil)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKey overrides the collection key (default "blog_posts").
func WithKey(key string) StoreOption {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the logger used for degraded reads.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator overrides post id generation.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) {
		s.newID = fn
	}
}

// NewStore creates a Store over backend.
func NewStore(backend kv.Store, opts ...StoreOption) *Store {
	s := &Store{
		kv:    backend,
		key:   DefaultKey,
		log:   zap.NewNop(),
		now:   time.Now,
		newID: NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID returns a time-ordered random identifier (UUIDv7).
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// read decodes the collection. An absent key is an empty collection.
func (s *Store) read(ctx context.Context) ([]Post, error) {
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, kv.ErrNotFound) {
		return []Post{}, nil
	}
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []Post{}, nil
	}
	var posts []Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return posts, nil
}

// load is the lenient read used by queries: failures are logged and treated
// as an empty collection.
func (s *Store) load(ctx context.Context) []Post {
	posts, err := s.read(ctx)
	if err != nil {
		s.log.Error("failed to get posts", zap.String("key", s.key), zap.Error(err))
		return []Post{}
	}
	return posts
}

func (s *Store) write(ctx context.Context, posts []Post) error {
	if posts == nil {
		posts = []Post{}
	}
	data, err := json.Marshal(posts)
	if err != nil {
		return fmt.Errorf("blog: encode posts: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("blog: save posts: %w", err)
	}
	return nil
}

// timestamp is now in UTC at millisecond precision, so stored and returned
// values compare equal after a JSON round trip.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// ListAll returns every post in stored order.
func (s *Store) ListAll(ctx context.Context) []Post {
	return s.load(ctx)
}

// ListPublished returns published posts ordered by CreatedAt, newest first.
func (s *Store) ListPublished(ctx context.Context) []Post {
	var published []Post
	for _, p := range s.load(ctx) {
		if p.Published {
			published = append(published, p)
		}
	}
	SortNewestFirst(published)
	return published
}

// SortNewestFirst orders posts by CreatedAt descending, keeping the relative
// order of equal timestamps.
func SortNewestFirst(posts []Post) {
	slices.SortStableFunc(posts, func(a, b Post) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// GetBySlug returns the first published post with slug. Drafts are never
// returned, even on an exact match.
func (s *Store) GetBySlug(ctx context.Context, slug string) (Post, error) {
	for _, p := range s.load(ctx) {
		if p.Slug == slug && p.Published {
			return p, nil
		}
	}
	return Post{}, ErrNotFound
}

// GetByID returns the first post with id, published or not.
func (s *Store) GetByID(ctx context.Context, id string) (Post, error) {
	for _, p := range s.load(ctx) {
		if p.ID == id {
			return p, nil
		}
	}
	return Post{}, ErrNotFound
}

// Create assigns id, slug and timestamps to in, appends it to the collection
// and persists the collection. Title and content are validated by callers.
func (s *Store) Create(ctx context.Context, in NewPost) (Post, error) {
	posts, err := s.read(ctx)
	if err != nil {
		return Post{}, fmt.Errorf("blog: load posts: %w", err)
	}

	published := true
	if in.Published != nil {
		published = *in.Published
	}
	attachments := append([]Attachment{}, in.Attachments...)
	now := s.timestamp()

	post := Post{
		ID:          s.newID(),
		Slug:        uniqueSlug(in.Title, posts, ""),
		Title:       in.Title,
		Excerpt:     normalizeExcerpt(in.Excerpt),
		Content:     in.Content,
		Category:    in.Category,
		ReadTime:    in.ReadTime,
		Published:   published,
		Attachments: attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	posts = append(posts, post)
	if err := s.write(ctx, posts); err != nil {
		return Post{}, err
	}
	return post, nil
}

// Update merges patch into the post with id. A changed, non-empty title
// re-derives the slug; every update refreshes UpdatedAt.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (Post, error) {
	posts, err := s.read(ctx)
	if err != nil {
		return Post{}, fmt.Errorf("blog: load posts: %w", err)
	}
	idx := slices.IndexFunc(posts, func(p Post) bool { return p.ID == id })
	if idx < 0 {
		return Post{}, ErrNotFound
	}

	current := posts[idx]
	updated := current
	patch.apply(&updated)
	if patch.Title != nil && *patch.Title != "" && *patch.Title != current.Title {
		updated.Slug = uniqueSlug(*patch.Title, posts, id)
	}
	updated.UpdatedAt = s.timestamp()

	posts[idx] = updated
	if err := s.write(ctx, posts); err != nil {
		return Post{}, err
	}
	return updated, nil
}

// Delete removes the post with id. The collection is only written when a post
// was removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	posts, err := s.read(ctx)
	if err != nil {
		return false, fmt.Errorf("blog: load posts: %w", err)
	}
	kept := make([]Post, 0, len(posts))
	for _, p := range posts {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(posts) {
		return false, nil
	}
	if err := s.write(ctx, kept); err != nil {
		return false, err
	}
	return true, nil
}

// Snapshot returns the stored collection unsorted. Unlike ListAll it reports
// read failures, so a backup never silently comes out empty.
func (s *Store) Snapshot(ctx context.Context) ([]Post, error) {
	return s.read(ctx)
}

// Replace overwrites the whole collection. It backs bulk import.
func (s *Store) Replace(ctx context.Context, posts []Post) error {
	return s.write(ctx, posts)
}
