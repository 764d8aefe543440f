package spacetraveling

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/eringen/spacetraveling/model"
)

// Export renders the published site into dir as static files and returns
// their paths relative to dir. Static hosts have no load-more endpoint, so
// the exported home page lists every post.
func (a *App) Export(ctx context.Context, dir string) ([]string, error) {
	a.exporting = true
	if err := a.prepare(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("export: create %s: %w", dir, err)
	}

	posts, err := a.Posts.All(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	site := a.Site()
	w := &exportWriter{dir: dir}

	home := model.PostPage{Results: newestFirst(posts)}
	html, err := renderBytes(ctx, a.Views.Home(site, home, false))
	if err != nil {
		return nil, fmt.Errorf("export: render home: %w", err)
	}
	w.write("index.html", html)

	for _, p := range posts {
		post, err := a.Posts.Detail(ctx, p.UID, "")
		if err != nil {
			return nil, fmt.Errorf("export: post %s: %w", p.UID, err)
		}
		html, err := renderBytes(ctx, a.Views.Post(site, post, false))
		if err != nil {
			return nil, fmt.Errorf("export: render post %s: %w", p.UID, err)
		}
		w.write(filepath.Join("post", p.UID, "index.html"), html)
	}

	notFound, err := renderBytes(ctx, a.Views.NotFound(site))
	if err != nil {
		return nil, fmt.Errorf("export: render 404: %w", err)
	}
	w.write("404.html", notFound)

	sitemap, err := a.sitemapXML(posts)
	if err != nil {
		return nil, fmt.Errorf("export: sitemap: %w", err)
	}
	w.write("sitemap.xml", sitemap)

	feed, err := a.feedXML(posts)
	if err != nil {
		return nil, fmt.Errorf("export: feed: %w", err)
	}
	w.write("feed.xml", feed)
	w.write("robots.txt", []byte(a.robotsTxt()))

	embedded, _ := fs.Sub(EmbeddedAssets, "embedded")
	w.copyFS(embedded, "styles.css", filepath.Join("public", "styles.css"))
	w.copyFS(embedded, "favicon.svg", "favicon.svg")

	if info, err := os.Stat(a.staticDir); err == nil && info.IsDir() {
		w.copyDir(a.staticDir, "public")
	}

	if w.err != nil {
		return nil, fmt.Errorf("export: %w", w.err)
	}
	slog.Info("site exported", "dir", dir, "posts", len(posts), "files", len(w.files))
	return w.files, nil
}

// newestFirst reverses an oldest-first listing, keeping undated posts last.
func newestFirst(posts []model.PostSummary) []model.PostSummary {
	out := make([]model.PostSummary, 0, len(posts))
	for i := len(posts) - 1; i >= 0; i-- {
		if posts[i].FirstPublicationDate != nil {
			out = append(out, posts[i])
		}
	}
	for _, p := range posts {
		if p.FirstPublicationDate == nil {
			out = append(out, p)
		}
	}
	return out
}

// exportWriter writes files under dir and remembers the first error.
type exportWriter struct {
	dir   string
	files []string
	err   error
}

func (w *exportWriter) write(rel string, data []byte) {
	if w.err != nil {
		return
	}
	dst := filepath.Join(w.dir, rel)
	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		w.err = fmt.Errorf("create directory for %s: %w", rel, err)
		return
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		w.err = fmt.Errorf("write %s: %w", rel, err)
		return
	}
	w.files = append(w.files, filepath.ToSlash(rel))
}

func (w *exportWriter) copyFS(fsys fs.FS, name, rel string) {
	if w.err != nil {
		return
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		w.err = fmt.Errorf("read %s: %w", name, err)
		return
	}
	w.write(rel, data)
}

// copyDir copies every regular file under src into rel.
func (w *exportWriter) copyDir(src, rel string) {
	if w.err != nil {
		return
	}
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		sub, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		w.write(filepath.Join(rel, sub), data)
		return w.err
	})
	if err != nil && w.err == nil {
		w.err = fmt.Errorf("copy %s: %w", src, err)
	}
}
