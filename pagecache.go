package spacetraveling

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/eringen/spacetraveling/cms"
)

// regenerateTimeout bounds a shared regeneration, which outlives the
// request that started it.
const regenerateTimeout = time.Minute

// Generator renders the HTML of one page.
type Generator func(ctx context.Context) ([]byte, error)

// PageCache serves generated pages from the Store and regenerates a page
// once it is older than the TTL. Concurrent requests for the same path
// share one regeneration.
type PageCache struct {
	store *Store
	ttl   time.Duration
	group singleflight.Group
	now   func() time.Time
}

// NewPageCache creates a PageCache backed by the given Store.
func NewPageCache(s *Store, ttl time.Duration) *PageCache {
	return &PageCache{store: s, ttl: ttl, now: time.Now}
}

// Cached reports whether a page for path has been generated.
func (c *PageCache) Cached(ctx context.Context, path string) (bool, error) {
	_, err := c.store.GetPage(ctx, path)
	if errors.Is(err, ErrPageNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Serve returns the page for path, regenerating it with generate when it is
// missing or stale. If regeneration fails and a stale copy exists, the stale
// copy is served. A cms.ErrNotFound from generate drops the stored copy.
func (c *PageCache) Serve(ctx context.Context, path string, generate Generator) ([]byte, error) {
	stored, err := c.store.GetPage(ctx, path)
	found := err == nil
	if err != nil && !errors.Is(err, ErrPageNotFound) {
		slog.Error("page store read failed", "path", path, "error", err)
	}
	if found && c.now().Sub(stored.GeneratedAt) < c.ttl {
		return stored.HTML, nil
	}

	v, err, _ := c.group.Do(path, func() (any, error) {
		// Waiters share this call, so it must not stop when the first caller goes away.
		gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), regenerateTimeout)
		defer cancel()
		return c.regenerate(gctx, path, generate)
	})
	if err == nil {
		return v.([]byte), nil
	}
	if errors.Is(err, cms.ErrNotFound) {
		if found {
			if derr := c.store.DeletePage(ctx, path); derr != nil {
				slog.Error("drop removed page failed", "path", path, "error", derr)
			}
		}
		return nil, err
	}
	if found {
		slog.Warn("regeneration failed, serving stale page", "path", path, "age", c.now().Sub(stored.GeneratedAt), "error", err)
		return stored.HTML, nil
	}
	return nil, err
}

func (c *PageCache) regenerate(ctx context.Context, path string, generate Generator) ([]byte, error) {
	html, err := generate(ctx)
	if err != nil {
		return nil, err
	}
	c.Put(ctx, path, html)
	slog.Debug("page regenerated", "path", path, "bytes", len(html))
	return html, nil
}

// Put stores html as the freshly generated page for path.
func (c *PageCache) Put(ctx context.Context, path string, html []byte) {
	if err := c.store.SavePage(ctx, Page{Path: path, HTML: html, GeneratedAt: c.now()}); err != nil {
		slog.Error("page store write failed", "path", path, "error", err)
	}
}

// Invalidate drops the stored page for each path.
func (c *PageCache) Invalidate(ctx context.Context, paths ...string) error {
	for _, p := range paths {
		if err := c.store.DeletePage(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// InvalidateAll drops every stored page.
func (c *PageCache) InvalidateAll(ctx context.Context) error {
	return c.store.DeleteAll(ctx)
}
