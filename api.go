package folio

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/folio/blog"
	"github.com/eringen/folio/gate"
)

const (
	defaultCategory = "General"
	defaultReadTime = "5 min read"

	msgInvalidRequest   = "Invalid request"
	msgRequired         = "Title and content are required"
	msgPostNotFound     = "Post not found"
	msgNotConfigured    = "Admin not configured. Set ADMIN_PASSWORD and ADMIN_COOKIE_TOKEN env vars."
	msgInvalidPassword  = "Invalid password"
	msgTooManyAttempts  = "Too many login attempts. Try again later."
	msgAttachmentAbsent = "Attachment not found"
)

func isFormRequest(c echo.Context) bool {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	return strings.HasPrefix(ct, echo.MIMEApplicationForm) || strings.HasPrefix(ct, echo.MIMEMultipartForm)
}

// decodeJSON reads the request body strictly as JSON into dst.
func decodeJSON(c echo.Context, dst any) error {
	return json.NewDecoder(c.Request().Body).Decode(dst)
}

type loginRequest struct {
	Password *string `json:"password"`
}

func (a *App) handleAPILogin(c echo.Context) error {
	form := isFormRequest(c)
	cfg := a.Config.Gate()
	if !cfg.Configured() {
		if form {
			return RenderStatus(c, http.StatusInternalServerError, a.Views.AdminLogin(a.site(), false, false, CsrfToken(c)))
		}
		return jsonError(c, http.StatusInternalServerError, msgNotConfigured)
	}

	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		a.Log.Warn("login rate limited", zap.String("ip", ip))
		if form {
			return c.String(http.StatusTooManyRequests, msgTooManyAttempts)
		}
		return jsonError(c, http.StatusTooManyRequests, msgTooManyAttempts)
	}

	var password string
	if form {
		password = c.FormValue("password")
	} else {
		var req loginRequest
		if err := decodeJSON(c, &req); err != nil || req.Password == nil {
			return jsonError(c, http.StatusBadRequest, msgInvalidRequest)
		}
		password = *req.Password
	}

	if subtle.ConstantTimeCompare([]byte(password), []byte(cfg.Password)) != 1 {
		a.loginLimiter.Record(ip)
		a.Log.Info("admin login failed", zap.String("ip", ip))
		if form {
			return RenderStatus(c, http.StatusUnauthorized, a.Views.AdminLogin(a.site(), true, true, CsrfToken(c)))
		}
		return jsonError(c, http.StatusUnauthorized, msgInvalidPassword)
	}

	a.loginLimiter.Reset(ip)
	c.SetCookie(gate.SessionCookie(cfg.Token, a.Config.CookieSecure))
	a.Log.Info("admin login", zap.String("ip", ip))
	if form {
		return c.Redirect(http.StatusSeeOther, "/admin")
	}
	return c.JSON(http.StatusOK, okBody{OK: true})
}

func (a *App) handleAPILogout(c echo.Context) error {
	c.SetCookie(gate.ClearedCookie(a.Config.CookieSecure))
	if isFormRequest(c) {
		return c.Redirect(http.StatusSeeOther, gate.LoginPath)
	}
	return c.JSON(http.StatusOK, okBody{OK: true})
}

func (a *App) handleAPIListPosts(c echo.Context) error {
	posts := a.Posts.ListAll(c.Request().Context())
	if posts == nil {
		posts = []blog.Post{}
	}
	blog.SortNewestFirst(posts)
	return c.JSON(http.StatusOK, posts)
}

func applyDefaults(in *blog.NewPost) {
	if in.Category == "" {
		in.Category = defaultCategory
	}
	if in.ReadTime == "" {
		in.ReadTime = defaultReadTime
	}
}

func validNewPost(in blog.NewPost) bool {
	return strings.TrimSpace(in.Title) != "" && strings.TrimSpace(in.Content) != ""
}

func (a *App) handleAPICreatePost(c echo.Context) error {
	var in blog.NewPost
	if err := decodeJSON(c, &in); err != nil {
		return jsonError(c, http.StatusBadRequest, msgInvalidRequest)
	}
	if !validNewPost(in) {
		return jsonError(c, http.StatusBadRequest, msgRequired)
	}
	applyDefaults(&in)

	post, err := a.createPost(c, in)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "Failed to create post")
	}
	return c.JSON(http.StatusCreated, post)
}

func (a *App) handleAPIGetPost(c echo.Context) error {
	post, err := a.Posts.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return jsonError(c, http.StatusNotFound, msgPostNotFound)
	}
	return c.JSON(http.StatusOK, post)
}

// validPatch rejects patches that blank out the required fields.
func validPatch(p blog.Patch) bool {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return false
	}
	if p.Content != nil && strings.TrimSpace(*p.Content) == "" {
		return false
	}
	return true
}

func (a *App) handleAPIUpdatePost(c echo.Context) error {
	var patch blog.Patch
	if err := decodeJSON(c, &patch); err != nil {
		return jsonError(c, http.StatusBadRequest, msgInvalidRequest)
	}
	if !validPatch(patch) {
		return jsonError(c, http.StatusBadRequest, msgRequired)
	}

	post, err := a.updatePost(c, c.Param("id"), patch)
	switch {
	case errors.Is(err, blog.ErrNotFound):
		return jsonError(c, http.StatusNotFound, msgPostNotFound)
	case err != nil:
		return jsonError(c, http.StatusInternalServerError, "Failed to update post")
	}
	return c.JSON(http.StatusOK, post)
}

func (a *App) handleAPIDeletePost(c echo.Context) error {
	deleted, err := a.deletePost(c, c.Param("id"))
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "Failed to delete post")
	}
	if !deleted {
		return jsonError(c, http.StatusNotFound, msgPostNotFound)
	}
	return c.JSON(http.StatusOK, okBody{OK: true})
}

func (a *App) handleAPIUploadAttachment(c echo.Context) error {
	post, err := a.addAttachment(c, c.Param("id"))
	if err != nil {
		code, msg := attachmentErrorStatus(err)
		return jsonError(c, code, msg)
	}
	return c.JSON(http.StatusCreated, post)
}

func (a *App) handleAPIDeleteAttachment(c echo.Context) error {
	post, err := a.removeAttachment(c, c.Param("id"), c.Param("attachmentID"))
	if err != nil {
		code, msg := attachmentErrorStatus(err)
		return jsonError(c, code, msg)
	}
	return c.JSON(http.StatusOK, post)
}

// createPost, updatePost and deletePost are shared by the JSON API and the
// admin forms. They log failures and keep the public cache coherent.

func (a *App) createPost(c echo.Context, in blog.NewPost) (blog.Post, error) {
	post, err := a.Posts.Create(c.Request().Context(), in)
	if err != nil {
		a.Log.Error("failed to create post", zap.Error(err))
		return blog.Post{}, err
	}
	a.Cache.Invalidate()
	a.Log.Info("post created", zap.String("id", post.ID), zap.String("slug", post.Slug))
	return post, nil
}

func (a *App) updatePost(c echo.Context, id string, patch blog.Patch) (blog.Post, error) {
	post, err := a.Posts.Update(c.Request().Context(), id, patch)
	if err != nil {
		if !errors.Is(err, blog.ErrNotFound) {
			a.Log.Error("failed to update post", zap.String("id", id), zap.Error(err))
		}
		return blog.Post{}, err
	}
	a.Cache.Invalidate()
	return post, nil
}

func (a *App) deletePost(c echo.Context, id string) (bool, error) {
	ctx := c.Request().Context()
	existing, lookupErr := a.Posts.GetByID(ctx, id)
	deleted, err := a.Posts.Delete(ctx, id)
	if err != nil {
		a.Log.Error("failed to delete post", zap.String("id", id), zap.Error(err))
		return false, err
	}
	if !deleted {
		return false, nil
	}
	a.Cache.Invalidate()
	if lookupErr == nil {
		for _, att := range existing.Attachments {
			if err := a.uploads.Remove(att); err != nil {
				a.Log.Warn("failed to remove attachment file", zap.String("url", att.URL), zap.Error(err))
			}
		}
	}
	return true, nil
}
