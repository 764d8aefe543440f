package spacetraveling

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"

	"github.com/eringen/spacetraveling/model"
)

const maxWebhookBody = 1 << 20

// revalidateEvent is the body of a content change notification. Documents
// lists post uids; an empty list revalidates everything.
type revalidateEvent struct {
	Type      string   `json:"type"`
	Documents []string `json:"documents"`
}

// handleRevalidate drops generated pages after a signed content change
// notification so the next visit regenerates them.
func (a *App) handleRevalidate(c echo.Context) error {
	if a.Config.WebhookSecret == "" {
		return echo.ErrNotFound
	}
	if !a.limiter.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	wh, err := standardwebhooks.NewWebhookRaw([]byte(a.Config.WebhookSecret))
	if err != nil {
		return err
	}
	if err := wh.Verify(payload, c.Request().Header); err != nil {
		slog.Warn("webhook signature rejected", "error", err, "remote_ip", c.RealIP())
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	var ev revalidateEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	ctx := c.Request().Context()
	paths, placed := a.changedPaths(ctx, ev.Documents)
	if placed {
		if err := a.Pages.Invalidate(ctx, paths...); err != nil {
			return err
		}
	} else {
		if err := a.Pages.InvalidateAll(ctx); err != nil {
			return err
		}
		paths = []string{"*"}
	}
	slog.Info("pages revalidated", "type", ev.Type, "paths", paths)
	return c.JSON(http.StatusOK, map[string]any{"revalidated": paths})
}

// changedPaths lists the pages that show any of uids: the home page, each
// post and the posts linking to it, both before and after the change. The
// post index is reloaded on the way. placed is false when uids is empty or
// a uid is in neither listing, and every page has to go.
func (a *App) changedPaths(ctx context.Context, uids []string) (paths []string, placed bool) {
	idx := a.Posts.Index()
	if len(uids) == 0 {
		idx.Invalidate()
		return nil, false
	}
	paths = []string{"/"}
	seen := map[string]bool{"/": true}
	add := func(uid string) {
		if p := model.PostPath(uid); uid != "" && !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	found := make(map[string]bool, len(uids))
	for round := 0; round < 2; round++ {
		if round == 1 {
			idx.Invalidate()
		}
		posts, err := idx.Posts(ctx)
		if err != nil {
			slog.Warn("revalidate: post index unavailable", "error", err)
			idx.Invalidate()
			return nil, false
		}
		for _, uid := range uids {
			add(uid)
			prev, next, ok := Adjacent(posts, uid)
			if ok {
				found[uid] = true
				add(prev.UID)
				add(next.UID)
			}
		}
	}
	for _, uid := range uids {
		if !found[uid] {
			slog.Info("revalidate: unknown document, dropping every page", "uid", uid)
			return nil, false
		}
	}
	return paths, true
}
