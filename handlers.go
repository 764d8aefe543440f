package spacetraveling

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/model"
	"github.com/eringen/spacetraveling/views"
)

func isHTMX(c echo.Context) bool {
	return c.Request().Header.Get("HX-Request") == "true"
}

func noStore(c echo.Context) {
	c.Response().Header().Set("Cache-Control", "no-store")
}

func (a *App) generateHome(ctx context.Context) ([]byte, error) {
	page, err := a.Posts.FirstPage(ctx, "")
	if err != nil {
		return nil, err
	}
	return renderBytes(ctx, a.Views.Home(a.Site(), page, false))
}

func (a *App) postGenerator(slug string) Generator {
	return func(ctx context.Context) ([]byte, error) {
		post, err := a.Posts.Detail(ctx, slug, "")
		if err != nil {
			return nil, err
		}
		return renderBytes(ctx, a.Views.Post(a.Site(), post, false))
	}
}

func (a *App) handleHome(c echo.Context) error {
	ctx := c.Request().Context()
	if ref := previewRef(c); ref != "" {
		page, err := a.Posts.FirstPage(ctx, ref)
		if err != nil {
			return err
		}
		noStore(c)
		return Render(c, a.Views.Home(a.Site(), page, true))
	}
	html, err := a.Pages.Serve(ctx, "/", a.generateHome)
	if err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, html)
}

// handleLoadMore answers the load-more control with the next page of
// entries. "seen" carries the uids already on screen.
func (a *App) handleLoadMore(c echo.Context) error {
	cursor := c.QueryParam("cursor")
	if cursor == "" {
		return c.NoContent(http.StatusNoContent)
	}
	seen := c.QueryParams()["seen"]
	if len(seen) > views.MaxSeen {
		seen = seen[len(seen)-views.MaxSeen:]
	}
	feed := NewFeed(model.PostPage{NextPage: cursor})
	feed.Seed(seen...)

	added, err := feed.Load(c.Request().Context(), a.Posts.NextPage)
	switch {
	case errors.Is(err, cms.ErrForeignCursor):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid cursor")
	case err != nil:
		slog.Warn("load more failed", "error", err)
		// htmx only swaps 2xx responses.
		return Render(c, a.Views.LoadMoreError(a.Site(), cursor, seen))
	}
	return Render(c, a.Views.MorePosts(a.Site(), added, feed.NextPage()))
}

func (a *App) handlePost(c echo.Context) error {
	slug := c.Param("slug")
	ctx := c.Request().Context()
	ref := previewRef(c)
	partial := isHTMX(c) && c.QueryParam("partial") == "post"

	if ref != "" || partial {
		state, post, err := a.Posts.Resolve(ctx, slug, ref)
		if err != nil {
			return err
		}
		slog.Debug("post resolved", "slug", slug, "state", state, "preview", ref != "")
		if state == StateNotFoundRedirect {
			return redirectHome(c)
		}
		if ref != "" {
			noStore(c)
		} else if html, err := renderBytes(ctx, a.Views.Post(a.Site(), post, false)); err == nil {
			a.Pages.Put(ctx, model.PostPath(slug), html)
		}
		if partial {
			return Render(c, a.Views.PostPartial(a.Site(), post))
		}
		return Render(c, a.Views.Post(a.Site(), post, true))
	}

	path := model.PostPath(slug)
	if !a.Config.BlockingFallback {
		cached, err := a.Pages.Cached(ctx, path)
		if err == nil && !cached {
			slog.Debug("post resolved", "slug", slug, "state", StateFallback)
			noStore(c)
			return Render(c, a.Views.PostFallback(a.Site(), slug, false))
		}
	}
	html, err := a.Pages.Serve(ctx, path, a.postGenerator(slug))
	if errors.Is(err, cms.ErrNotFound) {
		slog.Debug("post resolved", "slug", slug, "state", StateNotFoundRedirect)
		return redirectHome(c)
	}
	if err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, html)
}

// redirectHome sends the visitor to the listing. htmx requests get an
// HX-Redirect so the whole page navigates instead of swapping a fragment.
func redirectHome(c echo.Context) error {
	noStore(c)
	if isHTMX(c) {
		c.Response().Header().Set("HX-Redirect", "/")
		return c.NoContent(http.StatusOK)
	}
	return c.Redirect(http.StatusTemporaryRedirect, "/")
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.Posts.Index().Posts(c.Request().Context())
	if err != nil {
		return err
	}
	body, err := a.sitemapXML(posts)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "application/xml; charset=utf-8", body)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Posts.Index().Posts(c.Request().Context())
	if err != nil {
		return err
	}
	body, err := a.feedXML(posts)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "application/rss+xml; charset=utf-8", body)
}

func (a *App) handleRobots(c echo.Context) error {
	return c.String(http.StatusOK, a.robotsTxt())
}

func (a *App) robotsTxt() string {
	return "User-agent: *\nAllow: /\nDisallow: /api/\n\nSitemap: " + AbsURL(a.Config.URL, "/sitemap.xml") + "\n"
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.Site()))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		slog.Error("server error", "method", c.Request().Method, "uri", c.Request().RequestURI, "error", err)
		_ = RenderStatus(c, code, a.Views.ServerError(a.Site()))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
