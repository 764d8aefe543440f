package spacetraveling

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 500 * time.Millisecond

// WatchContent drops every generated page when a file under the content
// directory changes, so edits show up on the next visit. It blocks until
// ctx is done. Only useful with the markdown source.
func (a *App) WatchContent(ctx context.Context) error {
	if a.Pages == nil {
		return fmt.Errorf("spacetraveling: WatchContent before Init")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("spacetraveling: create watcher: %w", err)
	}
	defer watcher.Close()

	dir := a.Config.ContentDir
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		return watcher.Add(path)
	})
	if err != nil {
		return fmt.Errorf("spacetraveling: watch %s: %w", dir, err)
	}
	slog.Info("watching content", "dir", dir)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := watcher.Add(ev.Name); err != nil {
						slog.Warn("watch new directory failed", "dir", ev.Name, "error", err)
					}
				}
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			slog.Debug("content changed", "file", ev.Name, "op", ev.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() { a.dropGenerated(ctx) })
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("content watcher error", "error", err)
		}
	}
}

func (a *App) dropGenerated(ctx context.Context) {
	a.Posts.Index().Invalidate()
	if err := a.Pages.InvalidateAll(ctx); err != nil {
		slog.Error("drop generated pages failed", "error", err)
		return
	}
	slog.Info("content changed, generated pages dropped")
}
