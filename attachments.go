package folio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/eringen/folio/blog"
)

const (
	maxImageWidth = 800
	jpegQuality   = 80
	maxUploadSize = 10 << 20 // 10MB
	uploadsPrefix = "/uploads/"
)

var (
	errNoFile             = errors.New("no file provided")
	errTooLarge           = errors.New("file too large")
	errBadImage           = errors.New("invalid image")
	errAttachmentNotFound = errors.New("attachment not found")
)

// Uploads stores attachment files on disk. Files are served under /uploads/.
type Uploads struct {
	dir string
}

// NewUploads returns an Uploads rooted at dir. The directory is created on
// first write.
func NewUploads(dir string) *Uploads {
	return &Uploads{dir: dir}
}

// Save writes the uploaded file and describes it as an Attachment. Images are
// re-encoded as JPEG no wider than 800px; anything else is stored as is.
func (u *Uploads) Save(fh *multipart.FileHeader) (blog.Attachment, error) {
	if fh.Size > maxUploadSize {
		return blog.Attachment{}, errTooLarge
	}
	src, err := fh.Open()
	if err != nil {
		return blog.Attachment{}, err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxUploadSize+1))
	if err != nil {
		return blog.Attachment{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > maxUploadSize {
		return blog.Attachment{}, errTooLarge
	}

	name := filepath.Base(fh.Filename)
	ext := strings.ToLower(filepath.Ext(name))
	contentType := http.DetectContentType(data)
	if isResizable(contentType) {
		data, err = processImage(bytes.NewReader(data))
		if err != nil {
			return blog.Attachment{}, err
		}
		contentType, ext = "image/jpeg", ".jpg"
	}

	id := blog.NewID()
	base := blog.Slugify(strings.TrimSuffix(name, filepath.Ext(name)))
	if base == "" {
		base = "file"
	}
	filename := id + "-" + base + ext

	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return blog.Attachment{}, fmt.Errorf("create uploads dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(u.dir, filename), data, 0o644); err != nil {
		return blog.Attachment{}, fmt.Errorf("write upload: %w", err)
	}

	return blog.Attachment{
		ID:   id,
		Name: name,
		URL:  uploadsPrefix + filename,
		Size: int64(len(data)),
		Type: contentType,
	}, nil
}

// Remove deletes the file behind att. Attachments that do not point into the
// uploads directory are ignored, as are files already gone.
func (u *Uploads) Remove(att blog.Attachment) error {
	if !strings.HasPrefix(att.URL, uploadsPrefix) {
		return nil
	}
	name := filepath.Base(strings.TrimPrefix(att.URL, uploadsPrefix))
	if name == "." || name == "/" || name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(u.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func isResizable(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/gif":
		return true
	}
	return false
}

// processImage decodes an image, scales it down to maxImageWidth when wider,
// and encodes it as JPEG.
func processImage(src io.Reader) ([]byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadImage, err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func attachmentErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, blog.ErrNotFound):
		return http.StatusNotFound, msgPostNotFound
	case errors.Is(err, errAttachmentNotFound):
		return http.StatusNotFound, msgAttachmentAbsent
	case errors.Is(err, errNoFile):
		return http.StatusBadRequest, "No file provided"
	case errors.Is(err, errTooLarge):
		return http.StatusBadRequest, "File too large (max 10MB)"
	case errors.Is(err, errBadImage):
		return http.StatusBadRequest, "Invalid image"
	default:
		return http.StatusInternalServerError, "Failed to update post"
	}
}

// addAttachment stores the "file" form field and appends it to the post.
func (a *App) addAttachment(c echo.Context, id string) (blog.Post, error) {
	post, err := a.Posts.GetByID(c.Request().Context(), id)
	if err != nil {
		return blog.Post{}, err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return blog.Post{}, errNoFile
	}
	att, err := a.uploads.Save(fh)
	if err != nil {
		if !errors.Is(err, errTooLarge) && !errors.Is(err, errBadImage) {
			a.Log.Error("failed to store attachment", zap.String("post", id), zap.Error(err))
		}
		return blog.Post{}, err
	}

	attachments := append(slices.Clone(post.Attachments), att)
	updated, err := a.updatePost(c, id, blog.Patch{Attachments: &attachments})
	if err != nil {
		_ = a.uploads.Remove(att)
		return blog.Post{}, err
	}
	return updated, nil
}

// removeAttachment unlinks an attachment from the post and deletes its file.
func (a *App) removeAttachment(c echo.Context, id, attachmentID string) (blog.Post, error) {
	post, err := a.Posts.GetByID(c.Request().Context(), id)
	if err != nil {
		return blog.Post{}, err
	}
	idx := slices.IndexFunc(post.Attachments, func(att blog.Attachment) bool { return att.ID == attachmentID })
	if idx < 0 {
		return blog.Post{}, errAttachmentNotFound
	}
	removed := post.Attachments[idx]
	attachments := slices.Delete(slices.Clone(post.Attachments), idx, idx+1)

	updated, err := a.updatePost(c, id, blog.Patch{Attachments: &attachments})
	if err != nil {
		return blog.Post{}, err
	}
	if err := a.uploads.Remove(removed); err != nil {
		a.Log.Warn("failed to remove attachment file", zap.String("url", removed.URL), zap.Error(err))
	}
	return updated, nil
}
