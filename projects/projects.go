// Package projects loads the portfolio catalogue shown on the projects and
// gallery pages.
package projects

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"
)

//go:embed projects.yaml
var defaultCatalogue []byte

// Image is one gallery picture.
type Image struct {
	Src     string `yaml:"src"`
	Alt     string `yaml:"alt"`
	Caption string `yaml:"caption"`
}

// Project is a portfolio entry. Description is markdown; HTML holds its
// rendered form.
type Project struct {
	Slug        string   `yaml:"slug"`
	Title       string   `yaml:"title"`
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	Link        string   `yaml:"link"`
	Gallery     []Image  `yaml:"gallery"`

	HTML string `yaml:"-"`
}

// HasLink reports whether the project points somewhere real.
func (p Project) HasLink() bool {
	return p.Link != "" && p.Link != "#"
}

// GalleryPath is the gallery page URL, or "" when there is nothing to show.
func (p Project) GalleryPath() string {
	if len(p.Gallery) == 0 {
		return ""
	}
	return "/projects/" + p.Slug + "/gallery"
}

// Experience is a role on the professional timeline.
type Experience struct {
	Title        string   `yaml:"title"`
	Company      string   `yaml:"company"`
	Period       string   `yaml:"period"`
	Description  string   `yaml:"description"`
	Achievements []string `yaml:"achievements"`
}

// Catalogue is the full set of projects and experiences.
type Catalogue struct {
	Projects    []Project    `yaml:"projects"`
	Experiences []Experience `yaml:"experiences"`
}

// Default returns the catalogue compiled into the binary.
func Default() (*Catalogue, error) {
	return Parse(defaultCatalogue)
}

// Load reads the catalogue at path, or the built-in one when path is empty.
func Load(path string) (*Catalogue, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read projects file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, validates slugs and renders descriptions.
func Parse(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse projects: %w", err)
	}

	seen := make(map[string]bool, len(c.Projects))
	for i := range c.Projects {
		p := &c.Projects[i]
		if p.Slug == "" {
			return nil, fmt.Errorf("project %d (%q): missing slug", i, p.Title)
		}
		if seen[p.Slug] {
			return nil, fmt.Errorf("duplicate project slug %q", p.Slug)
		}
		seen[p.Slug] = true

		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(p.Description), &buf); err != nil {
			return nil, fmt.Errorf("render project %q: %w", p.Slug, err)
		}
		p.HTML = buf.String()
	}
	return &c, nil
}

// ErrNoGallery is returned by Gallery for unknown projects and projects
// without pictures.
var ErrNoGallery = errors.New("projects: no gallery")

// Lookup finds a project by slug.
func (c *Catalogue) Lookup(slug string) (Project, bool) {
	for _, p := range c.Projects {
		if p.Slug == slug {
			return p, true
		}
	}
	return Project{}, false
}

// Gallery returns the project behind a gallery page.
func (c *Catalogue) Gallery(slug string) (Project, error) {
	p, ok := c.Lookup(slug)
	if !ok || len(p.Gallery) == 0 {
		return Project{}, ErrNoGallery
	}
	return p, nil
}
