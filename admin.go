package folio

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/blog"
)

func (a *App) handleAdminLoginPage(c echo.Context) error {
	if a.IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin")
	}
	return Render(c, a.Views.AdminLogin(a.site(), false, a.Config.Gate().Configured(), CsrfToken(c)))
}

func (a *App) handleAdmin(c echo.Context) error {
	posts := a.Posts.ListAll(c.Request().Context())
	blog.SortNewestFirst(posts)
	return Render(c, a.Views.AdminDashboard(a.site(), posts, popFlash(c), CsrfToken(c)))
}

func (a *App) handleAdminNew(c echo.Context) error {
	return Render(c, a.Views.AdminEditor(a.site(), blog.Post{}, "", CsrfToken(c)))
}

func (a *App) handleAdminEdit(c echo.Context) error {
	post, err := a.Posts.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site()))
	}
	return Render(c, a.Views.AdminEditor(a.site(), post, popFlash(c), CsrfToken(c)))
}

// postForm is the editor form. Unlike the JSON API, every field is always
// submitted, and an unchecked box means unpublished.
type postForm struct {
	Title     string
	Excerpt   string
	Content   string
	Category  string
	ReadTime  string
	Published bool
}

func readPostForm(c echo.Context) postForm {
	return postForm{
		Title:     strings.TrimSpace(c.FormValue("title")),
		Excerpt:   c.FormValue("excerpt"),
		Content:   c.FormValue("content"),
		Category:  strings.TrimSpace(c.FormValue("category")),
		ReadTime:  strings.TrimSpace(c.FormValue("readTime")),
		Published: c.FormValue("published") != "",
	}
}

func (f postForm) newPost() blog.NewPost {
	in := blog.NewPost{
		Title:     f.Title,
		Excerpt:   &f.Excerpt,
		Content:   f.Content,
		Category:  f.Category,
		ReadTime:  f.ReadTime,
		Published: &f.Published,
	}
	applyDefaults(&in)
	return in
}

func (f postForm) patch() blog.Patch {
	in := f.newPost()
	p := blog.Patch{
		Title:     &in.Title,
		Content:   &in.Content,
		Category:  &in.Category,
		ReadTime:  &in.ReadTime,
		Published: in.Published,
	}
	if strings.TrimSpace(f.Excerpt) == "" {
		p.ClearExcerpt = true
	} else {
		p.Excerpt = &f.Excerpt
	}
	return p
}

// draft rebuilds an unsaved post so a rejected form keeps its input.
func (f postForm) draft(id string) blog.Post {
	p := blog.Post{
		ID:        id,
		Title:     f.Title,
		Content:   f.Content,
		Category:  f.Category,
		ReadTime:  f.ReadTime,
		Published: f.Published,
	}
	if f.Excerpt != "" {
		p.Excerpt = &f.Excerpt
	}
	return p
}

func (a *App) handleAdminCreate(c echo.Context) error {
	form := readPostForm(c)
	in := form.newPost()
	if !validNewPost(in) {
		return RenderStatus(c, http.StatusBadRequest, a.Views.AdminEditor(a.site(), form.draft(""), msgRequired, CsrfToken(c)))
	}
	post, err := a.createPost(c, in)
	if err != nil {
		return err
	}
	setFlash(c, "Created \""+post.Title+"\"")
	return c.Redirect(http.StatusSeeOther, "/admin")
}

func (a *App) handleAdminUpdate(c echo.Context) error {
	id := c.Param("id")
	form := readPostForm(c)
	if !validNewPost(form.newPost()) {
		return RenderStatus(c, http.StatusBadRequest, a.Views.AdminEditor(a.site(), form.draft(id), msgRequired, CsrfToken(c)))
	}
	post, err := a.updatePost(c, id, form.patch())
	if errors.Is(err, blog.ErrNotFound) {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site()))
	}
	if err != nil {
		return err
	}
	setFlash(c, "Saved \""+post.Title+"\"")
	return c.Redirect(http.StatusSeeOther, "/admin")
}

func (a *App) handleAdminDelete(c echo.Context) error {
	deleted, err := a.deletePost(c, c.Param("id"))
	if err != nil {
		return err
	}
	if deleted {
		setFlash(c, "Post deleted")
	} else {
		setFlash(c, msgPostNotFound)
	}
	return c.Redirect(http.StatusSeeOther, "/admin")
}

func (a *App) handleAdminTogglePublish(c echo.Context) error {
	id := c.Param("id")
	post, err := a.Posts.GetByID(c.Request().Context(), id)
	if err != nil {
		setFlash(c, msgPostNotFound)
		return c.Redirect(http.StatusSeeOther, "/admin")
	}
	published := !post.Published
	if _, err := a.updatePost(c, id, blog.Patch{Published: &published}); err != nil {
		return err
	}
	if published {
		setFlash(c, "Published \""+post.Title+"\"")
	} else {
		setFlash(c, "Unpublished \""+post.Title+"\"")
	}
	return c.Redirect(http.StatusSeeOther, "/admin")
}

func (a *App) handleAdminAttachmentUpload(c echo.Context) error {
	id := c.Param("id")
	if _, err := a.addAttachment(c, id); err != nil {
		code, msg := attachmentErrorStatus(err)
		if errors.Is(err, blog.ErrNotFound) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site()))
		}
		if code >= 500 {
			return err
		}
		setFlash(c, msg)
	}
	return c.Redirect(http.StatusSeeOther, "/admin/posts/"+id+"/edit")
}

func (a *App) handleAdminAttachmentDelete(c echo.Context) error {
	id := c.Param("id")
	if _, err := a.removeAttachment(c, id, c.Param("attachmentID")); err != nil {
		code, msg := attachmentErrorStatus(err)
		if errors.Is(err, blog.ErrNotFound) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site()))
		}
		if code >= 500 {
			return err
		}
		setFlash(c, msg)
	}
	return c.Redirect(http.StatusSeeOther, "/admin/posts/"+id+"/edit")
}
