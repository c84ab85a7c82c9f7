package folio

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/folio/blog"
	"github.com/eringen/folio/views"
)

const recentPosts = 3

func (a *App) handleHome(c echo.Context) error {
	recent := a.Cache.Recent(c.Request().Context(), recentPosts)
	return Render(c, a.Views.Home(a.site(), recent, a.NowPlaying.Configured()))
}

func (a *App) handleBlog(c echo.Context) error {
	posts := a.Cache.ListPublished(c.Request().Context())
	return Render(c, a.Views.BlogList(a.site(), posts))
}

func (a *App) handlePost(c echo.Context) error {
	post, err := a.Cache.GetBySlug(c.Request().Context(), c.Param("slug"))
	if errors.Is(err, blog.ErrNotFound) {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site()))
	}
	if err != nil {
		return err
	}
	return Render(c, a.Views.Post(a.site(), post))
}

func (a *App) handleProjects(c echo.Context) error {
	return Render(c, a.Views.Projects(a.site(), a.Projects))
}

func (a *App) handleGallery(c echo.Context) error {
	project, err := a.Projects.Gallery(c.Param("slug"))
	if err != nil {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site()))
	}
	return Render(c, a.Views.Gallery(a.site(), project))
}

func (a *App) handleContact(c echo.Context) error {
	return Render(c, a.Views.Contact(a.site()))
}

func (a *App) handleFeed(c echo.Context) error {
	return a.renderRSS(c, a.Cache.ListPublished(c.Request().Context()))
}

func (a *App) handleSitemap(c echo.Context) error {
	return a.renderSitemap(c, a.Cache.ListPublished(c.Request().Context()))
}

func (a *App) handleRobots(c echo.Context) error {
	body := fmt.Sprintf("User-agent: *\nDisallow: /admin\nDisallow: /api/\n\nSitemap: %s\n",
		views.AbsURL(a.Config.URL, "sitemap.xml"))
	return c.String(http.StatusOK, body)
}

func (a *App) handleNowPlaying(c echo.Context) error {
	h := c.Response().Header()
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	return c.JSON(http.StatusOK, a.NowPlaying.NowPlaying(c.Request().Context()))
}

func handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func isAPI(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/api/")
}

// httpErrorHandler renders HTML error pages for page routes and the JSON
// error envelope for /api/ routes.
func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	}

	if code >= 500 {
		a.Log.Error("server error",
			zap.Error(err),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
		)
		msg = http.StatusText(code)
	}

	if isAPI(c) {
		_ = jsonError(c, code, msg)
		return
	}
	switch {
	case code == http.StatusNotFound:
		_ = RenderStatus(c, code, a.Views.NotFound(a.site()))
	case code >= 500:
		_ = RenderStatus(c, code, a.Views.ServerError(a.site()))
	default:
		_ = c.String(code, msg)
	}
}
