package blog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eringen/folio/kv"
)

// fakeClock advances one minute per call so createdAt ordering is predictable.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func setupTestStore(t *testing.T) (*Store, *kv.Memory) {
	t.Helper()
	backend := kv.NewMemory()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewStore(backend, WithClock(clock.Now)), backend
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestCreateAssignsIdentity(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	post, err := s.Create(ctx, NewPost{Title: "Hello, World!", Content: "<p>hi</p>"})
	require.NoError(t, err)

	assert.NotEmpty(t, post.ID)
	assert.Equal(t, "hello-world", post.Slug)
	assert.True(t, post.Published, "published defaults to true")
	assert.Nil(t, post.Excerpt)
	assert.NotNil(t, post.Attachments)
	assert.False(t, post.CreatedAt.IsZero())
	assert.Equal(t, post.CreatedAt, post.UpdatedAt)
}

func TestCreateDuplicateTitles(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, NewPost{Title: "Hello, World!", Content: "<p>hi</p>"})
	require.NoError(t, err)
	second, err := s.Create(ctx, NewPost{Title: "Hello, World!", Content: "<p>hi2</p>"})
	require.NoError(t, err)
	third, err := s.Create(ctx, NewPost{Title: "hello world", Content: "<p>hi3</p>"})
	require.NoError(t, err)

	assert.Equal(t, "hello-world", first.Slug)
	assert.Equal(t, "hello-world-1", second.Slug)
	assert.Equal(t, "hello-world-2", third.Slug)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreateThenGetByIDRoundTrip(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, NewPost{
		Title:     "Round Trip",
		Excerpt:   strPtr("short"),
		Content:   "<p>body</p>",
		Category:  "Tutorial",
		ReadTime:  "3 min read",
		Published: boolPtr(false),
		Attachments: []Attachment{
			{ID: "a1", Name: "diagram.png", URL: "/uploads/diagram.jpg", Size: 1234, Type: "image/jpeg"},
		},
	})
	require.NoError(t, err)

	got, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestCreateWithRealClockRoundTrips(t *testing.T) {
	s := NewStore(kv.NewMemory())
	ctx := context.Background()

	created, err := s.Create(ctx, NewPost{Title: "Now", Content: "c"})
	require.NoError(t, err)
	got, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestGetBySlugHidesDrafts(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	draft, err := s.Create(ctx, NewPost{Title: "Draft", Content: "c", Published: boolPtr(false)})
	require.NoError(t, err)

	_, err = s.GetBySlug(ctx, draft.Slug)
	assert.ErrorIs(t, err, ErrNotFound, "drafts are invisible by slug even on exact match")

	got, err := s.GetByID(ctx, draft.ID)
	require.NoError(t, err, "drafts are visible by id")
	assert.False(t, got.Published)

	_, err = s.Update(ctx, draft.ID, Patch{Published: boolPtr(true)})
	require.NoError(t, err)
	got, err = s.GetBySlug(ctx, draft.Slug)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, got.ID)
}

func TestGetNotFound(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := s.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetBySlug(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPublishedOrdering(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	for _, in := range []NewPost{
		{Title: "Oldest", Content: "c"},
		{Title: "Hidden", Content: "c", Published: boolPtr(false)},
		{Title: "Middle", Content: "c"},
		{Title: "Newest", Content: "c"},
	} {
		_, err := s.Create(ctx, in)
		require.NoError(t, err)
	}

	all := s.ListAll(ctx)
	assert.Len(t, all, 4)

	published := s.ListPublished(ctx)
	require.Len(t, published, 3)
	assert.Equal(t, "newest", published[0].Slug)
	assert.Equal(t, "middle", published[1].Slug)
	assert.Equal(t, "oldest", published[2].Slug)

	assert.Equal(t, published, s.ListPublished(ctx), "repeated reads without mutation are identical")
}

func TestUpdateTitleRederivesSlug(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	a, err := s.Create(ctx, NewPost{Title: "First", Content: "c"})
	require.NoError(t, err)
	_, err = s.Create(ctx, NewPost{Title: "Second", Content: "c"})
	require.NoError(t, err)

	updated, err := s.Update(ctx, a.ID, Patch{Title: strPtr("Second")})
	require.NoError(t, err)
	assert.Equal(t, "second-1", updated.Slug, "collides with the other post")
	assert.Equal(t, "Second", updated.Title)
	assert.True(t, updated.UpdatedAt.After(a.UpdatedAt))
	assert.Equal(t, a.CreatedAt, updated.CreatedAt)

	again, err := s.Update(ctx, a.ID, Patch{Title: strPtr("Second!")})
	require.NoError(t, err)
	assert.Equal(t, "second-1", again.Slug, "own slug is excluded from the collision set")
}

func TestUpdateOtherFieldsKeepSlug(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, NewPost{Title: "Stable Slug", Content: "c", Excerpt: strPtr("old")})
	require.NoError(t, err)

	updated, err := s.Update(ctx, p.ID, Patch{
		Content:   strPtr("new content"),
		Category:  strPtr("Personal"),
		ReadTime:  strPtr("1 min read"),
		Published: boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "stable-slug", updated.Slug)
	assert.Equal(t, "new content", updated.Content)
	assert.Equal(t, "Personal", updated.Category)
	assert.Equal(t, "1 min read", updated.ReadTime)
	assert.False(t, updated.Published)
	assert.Equal(t, "old", updated.ExcerptText())

	same, err := s.Update(ctx, p.ID, Patch{Title: strPtr("Stable Slug")})
	require.NoError(t, err)
	assert.Equal(t, "stable-slug", same.Slug, "unchanged title keeps slug")

	cleared, err := s.Update(ctx, p.ID, Patch{ClearExcerpt: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.Excerpt)
}

func TestUpdateNotFound(t *testing.T) {
	s, backend := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Update(ctx, "missing", Patch{Title: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = backend.Get(ctx, DefaultKey)
	assert.ErrorIs(t, err, kv.ErrNotFound, "nothing is written for unknown ids")
}

func TestDelete(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, NewPost{Title: "Doomed", Content: "c"})
	require.NoError(t, err)
	_, err = s.Create(ctx, NewPost{Title: "Survivor", Content: "c"})
	require.NoError(t, err)

	ok, err := s.Delete(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, s.ListAll(ctx), 2)

	ok, err = s.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, s.ListAll(ctx), 1)

	_, err = s.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteLastPostStoresEmptyArray(t *testing.T) {
	s, backend := setupTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, NewPost{Title: "Only", Content: "c"})
	require.NoError(t, err)
	_, err = s.Delete(ctx, p.ID)
	require.NoError(t, err)

	raw, err := backend.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

// failingKV fails reads and/or writes on demand.
type failingKV struct {
	kv.Store
	getErr error
	setErr error
}

func (f *failingKV) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Store.Get(ctx, key)
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Store.Set(ctx, key, value)
}

func TestReadFailureDegradesToEmpty(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	backend := &failingKV{Store: kv.NewMemory(), getErr: errors.New("connection refused")}
	s := NewStore(backend, WithLogger(zap.New(core)))
	ctx := context.Background()

	assert.Empty(t, s.ListAll(ctx))
	assert.Empty(t, s.ListPublished(ctx))
	_, err := s.GetBySlug(ctx, "x")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetByID(ctx, "x")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 4, logs.FilterMessage("failed to get posts").Len())
}

func TestMutationsDoNotOverwriteOnReadFailure(t *testing.T) {
	mem := kv.NewMemory()
	ctx := context.Background()
	seed := NewStore(mem)
	_, err := seed.Create(ctx, NewPost{Title: "Keep me", Content: "c"})
	require.NoError(t, err)

	backend := &failingKV{Store: mem, getErr: errors.New("timeout")}
	s := NewStore(backend)
	_, err = s.Create(ctx, NewPost{Title: "New", Content: "c"})
	require.Error(t, err)

	assert.Len(t, seed.ListAll(ctx), 1, "collection must survive a failed read")
}

func TestWriteFailurePropagates(t *testing.T) {
	backend := &failingKV{Store: kv.NewMemory(), setErr: errors.New("read-only replica")}
	s := NewStore(backend)
	ctx := context.Background()

	_, err := s.Create(ctx, NewPost{Title: "x", Content: "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only replica")
}

func TestCorruptCollectionIsTreatedAsEmpty(t *testing.T) {
	backend := kv.NewMemory()
	ctx := context.Background()
	require.NoError(t, backend.Set(ctx, DefaultKey, []byte(`{not json`)))

	s := NewStore(backend)
	assert.Empty(t, s.ListAll(ctx))
}

func TestReadsLegacyCollection(t *testing.T) {
	backend := kv.NewMemory()
	ctx := context.Background()
	legacy := `[{"id":"lq3x1k2abc123","slug":"getting-started","title":"Getting Started",
		"excerpt":null,"content":"<p>Hi</p>","category":"Tutorial","readTime":"5 min read",
		"published":true,"createdAt":"2024-01-15T10:00:00.000Z","updatedAt":"2024-01-15T10:00:00.000Z"}]`
	require.NoError(t, backend.Set(ctx, DefaultKey, []byte(legacy)))

	s := NewStore(backend)
	p, err := s.GetBySlug(ctx, "getting-started")
	require.NoError(t, err)
	assert.Equal(t, "lq3x1k2abc123", p.ID)
	assert.Nil(t, p.Excerpt)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), p.CreatedAt.UTC())
}

func TestCustomKey(t *testing.T) {
	backend := kv.NewMemory()
	ctx := context.Background()
	s := NewStore(backend, WithKey("posts_v2"))

	_, err := s.Create(ctx, NewPost{Title: "x", Content: "c"})
	require.NoError(t, err)

	_, err = backend.Get(ctx, "posts_v2")
	assert.NoError(t, err)
	_, err = backend.Get(ctx, DefaultKey)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

// staleKV serves a fixed snapshot on reads, standing in for a writer whose
// read happened before another writer's commit.
type staleKV struct {
	kv.Store
	snapshot []byte
}

func (s *staleKV) Get(context.Context, string) ([]byte, error) {
	return s.snapshot, nil
}

func TestConcurrentMutationsLastWriterWins(t *testing.T) {
	mem := kv.NewMemory()
	ctx := context.Background()
	a := NewStore(mem)
	_, err := a.Create(ctx, NewPost{Title: "Existing", Content: "c"})
	require.NoError(t, err)

	snapshot, err := mem.Get(ctx, DefaultKey)
	require.NoError(t, err)
	b := NewStore(&staleKV{Store: mem, snapshot: snapshot})

	_, err = a.Create(ctx, NewPost{Title: "Written by A", Content: "c"})
	require.NoError(t, err)
	_, err = b.Create(ctx, NewPost{Title: "Written by B", Content: "c"})
	require.NoError(t, err)

	var titles []string
	for _, p := range a.ListAll(ctx) {
		titles = append(titles, p.Title)
	}
	assert.Equal(t, []string{"Existing", "Written by B"}, titles, "B's whole-collection write drops A's post")
}

func TestPatchUnmarshalJSON(t *testing.T) {
	var p Patch
	require.NoError(t, json.Unmarshal([]byte(`{
		"title": "New",
		"excerpt": null,
		"published": false,
		"id": "ignored",
		"createdAt": "2020-01-01T00:00:00Z",
		"content": null
	}`), &p))

	require.NotNil(t, p.Title)
	assert.Equal(t, "New", *p.Title)
	assert.True(t, p.ClearExcerpt)
	require.NotNil(t, p.Published)
	assert.False(t, *p.Published)
	assert.Nil(t, p.Content, "null on a non-nullable field means absent")
	assert.Nil(t, p.Category)

	var bad Patch
	err := json.Unmarshal([]byte(`{"published":"yes"}`), &bad)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	ok := []Post{{ID: "1", Slug: "a", Title: "A"}, {ID: "2", Slug: "b", Title: "B"}}
	assert.NoError(t, Validate(ok))

	bad := []Post{
		{ID: "1", Slug: "a", Title: "A"},
		{ID: "1", Slug: "a", Title: ""},
		{ID: "", Slug: "", Title: "C"},
	}
	err := Validate(bad)
	require.Error(t, err)
	for _, want := range []string{"duplicate id", "duplicate slug", "missing title", "missing id", "missing slug"} {
		assert.Contains(t, err.Error(), want)
	}
}

func BenchmarkCreate(b *testing.B) {
	s := NewStore(kv.NewMemory())
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		if _, err := s.Create(ctx, NewPost{Title: fmt.Sprintf("Post %d", i%50), Content: "c"}); err != nil {
			b.Fatal(err)
		}
	}
}
