// Package blog holds the blog post model and the document store that keeps
// every post in a single serialized collection.
package blog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Attachment is a file linked to a post.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Post is a blog post as persisted in the collection. The JSON shape is the
// wire format of the stored collection.
type Post struct {
	ID          string       `json:"id"`
	Slug        string       `json:"slug"`
	Title       string       `json:"title"`
	Excerpt     *string      `json:"excerpt"`
	Content     string       `json:"content"`
	Category    string       `json:"category"`
	ReadTime    string       `json:"readTime"`
	Published   bool         `json:"published"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Link returns the public path of the post.
func (p Post) Link() string {
	return "/blog/" + p.Slug
}

// ExcerptText returns the excerpt or "" when none is set.
func (p Post) ExcerptText() string {
	if p.Excerpt == nil {
		return ""
	}
	return *p.Excerpt
}

// NewPost is the input to Create. The store assigns id, slug and timestamps.
type NewPost struct {
	Title       string       `json:"title"`
	Excerpt     *string      `json:"excerpt"`
	Content     string       `json:"content"`
	Category    string       `json:"category"`
	ReadTime    string       `json:"readTime"`
	Published   *bool        `json:"published"`
	Attachments []Attachment `json:"attachments"`
}

// Patch is a partial update. Nil fields are left untouched. Excerpt is
// nullable, so an explicit null is recorded in ClearExcerpt.
type Patch struct {
	Title        *string
	Excerpt      *string
	ClearExcerpt bool
	Content      *string
	Category     *string
	ReadTime     *string
	Published    *bool
	Attachments  *[]Attachment
}

// UnmarshalJSON decodes a partial JSON object, recording which fields were
// present. Unknown fields, including id, slug and timestamps, are ignored.
func (p *Patch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Patch{}
	for name, msg := range raw {
		var err error
		switch name {
		case "title":
			err = decodeField(msg, &p.Title)
		case "excerpt":
			if isNull(msg) {
				p.ClearExcerpt = true
				continue
			}
			err = decodeField(msg, &p.Excerpt)
		case "content":
			err = decodeField(msg, &p.Content)
		case "category":
			err = decodeField(msg, &p.Category)
		case "readTime":
			err = decodeField(msg, &p.ReadTime)
		case "published":
			err = decodeField(msg, &p.Published)
		case "attachments":
			err = decodeField(msg, &p.Attachments)
		}
		if err != nil {
			return fmt.Errorf("blog: decode %s: %w", name, err)
		}
	}
	return nil
}

// decodeField treats null as absent for non-nullable fields.
func decodeField[T any](msg json.RawMessage, dst **T) error {
	if isNull(msg) {
		return nil
	}
	v := new(T)
	if err := json.Unmarshal(msg, v); err != nil {
		return err
	}
	*dst = v
	return nil
}

func isNull(msg json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(msg), []byte("null"))
}

func (p Patch) apply(post *Post) {
	if p.Title != nil {
		post.Title = *p.Title
	}
	if p.ClearExcerpt {
		post.Excerpt = nil
	} else if p.Excerpt != nil {
		post.Excerpt = normalizeExcerpt(p.Excerpt)
	}
	if p.Content != nil {
		post.Content = *p.Content
	}
	if p.Category != nil {
		post.Category = *p.Category
	}
	if p.ReadTime != nil {
		post.ReadTime = *p.ReadTime
	}
	if p.Published != nil {
		post.Published = *p.Published
	}
	if p.Attachments != nil {
		post.Attachments = append([]Attachment{}, (*p.Attachments)...)
	}
}

// normalizeExcerpt stores blank excerpts as null.
func normalizeExcerpt(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := *s
	return &v
}
