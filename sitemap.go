package folio

import (
	"encoding/xml"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/blog"
	"github.com/eringen/folio/views"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func (a *App) buildSitemap(posts []blog.Post) sitemapURLSet {
	base := a.Config.URL
	urls := []sitemapURL{
		{Loc: views.AbsURL(base)},
		{Loc: views.AbsURL(base, "blog")},
		{Loc: views.AbsURL(base, "projects")},
		{Loc: views.AbsURL(base, "contact")},
	}
	for _, p := range a.Projects.Projects {
		if g := p.GalleryPath(); g != "" {
			urls = append(urls, sitemapURL{Loc: views.AbsURL(base, g)})
		}
	}
	for _, p := range posts {
		urls = append(urls, sitemapURL{
			Loc:     views.AbsURL(base, "blog", p.Slug),
			LastMod: p.UpdatedAt.UTC().Format("2006-01-02"),
		})
	}
	return sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
}

func (a *App) renderSitemap(c echo.Context, posts []blog.Post) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(a.buildSitemap(posts))
}
