package spacetraveling

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"github.com/eringen/spacetraveling/model"
)

const previewSession = "preview_session"

// previewRef returns the content ref stored by /api/preview, or "".
func previewRef(c echo.Context) string {
	sess, err := session.Get(previewSession, c)
	if err != nil {
		return ""
	}
	ref, _ := sess.Values["ref"].(string)
	return ref
}

// IsPreview reports whether the request is in preview mode.
func IsPreview(c echo.Context) bool {
	return previewRef(c) != ""
}

func setPreviewRef(c echo.Context, ref string) error {
	sess, err := session.Get(previewSession, c)
	if err != nil {
		return err
	}
	sess.Values["ref"] = ref
	return sess.Save(c.Request(), c.Response())
}

func clearPreview(c echo.Context) error {
	sess, err := session.Get(previewSession, c)
	if err != nil {
		return err
	}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// handlePreview resolves a preview token into a ref, stores it in the
// session and sends the editor to the previewed document.
func (a *App) handlePreview(c echo.Context) error {
	if !a.limiter.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
	}
	token := c.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing token")
	}
	ref, err := a.src.PreviewRef(c.Request().Context(), token)
	if err != nil {
		slog.Warn("preview token rejected", "error", err, "remote_ip", c.RealIP())
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid preview token")
	}
	if err := setPreviewRef(c, ref); err != nil {
		return err
	}

	return c.Redirect(http.StatusTemporaryRedirect, a.previewDest(c, c.QueryParam("documentId"), ref))
}

// previewDest maps the previewed document id to its post page. Unknown or
// non-post documents land on the home page.
func (a *App) previewDest(c echo.Context, id, ref string) string {
	if id == "" {
		return "/"
	}
	uid, err := a.Posts.UIDForID(c.Request().Context(), id, ref)
	if err != nil {
		slog.Warn("preview document lookup failed", "id", id, "error", err)
		return "/"
	}
	if uid == "" {
		return "/"
	}
	return model.PostPath(url.PathEscape(uid))
}

func handleExitPreview(c echo.Context) error {
	if err := clearPreview(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusTemporaryRedirect, "/")
}
