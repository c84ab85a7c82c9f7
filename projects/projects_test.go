package projects

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogue(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NotEmpty(t, c.Projects)
	require.NotEmpty(t, c.Experiences)

	p, ok := c.Lookup("fun-mcp")
	require.True(t, ok)
	assert.Contains(t, p.HTML, "<strong>Model Context Protocol</strong>")
	assert.Equal(t, "/projects/fun-mcp/gallery", p.GalleryPath())
	assert.False(t, p.HasLink())
}

func TestGallery(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	p, err := c.Gallery("speech-app")
	require.NoError(t, err)
	assert.Len(t, p.Gallery, 2)

	_, err = c.Gallery("open-source")
	assert.ErrorIs(t, err, ErrNoGallery, "project without pictures")

	_, err = c.Gallery("missing")
	assert.ErrorIs(t, err, ErrNoGallery)
}

func TestParseRejectsBadCatalogues(t *testing.T) {
	_, err := Parse([]byte("projects:\n  - title: No slug\n"))
	assert.ErrorContains(t, err, "missing slug")

	_, err = Parse([]byte("projects:\n  - slug: a\n  - slug: a\n"))
	assert.ErrorContains(t, err, "duplicate project slug")

	_, err = Parse([]byte("projects: [\n"))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.yaml")
	yml := "projects:\n  - slug: cli\n    title: CLI\n    link: https://example.com\n    description: \"# Heading\"\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	p, ok := c.Lookup("cli")
	require.True(t, ok)
	assert.True(t, p.HasLink())
	assert.Contains(t, p.HTML, "<h1>Heading</h1>")
	assert.Empty(t, p.GalleryPath())
	assert.Empty(t, c.Experiences)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	_, ok := c.Lookup("speech-app")
	assert.True(t, ok)
}
