package spacetraveling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/model"
)

const (
	postType      = "posts"
	indexPageSize = 100
	maxIndexPages = 1000
)

var summaryFields = []string{"posts.title", "posts.subtitle", "posts.author"}

// DetailState is the outcome of resolving a post page.
type DetailState int

const (
	// StateFallback means the page is not generated yet and a placeholder
	// that loads the article is served instead.
	StateFallback DetailState = iota
	// StateResolved means the post was found and rendered.
	StateResolved
	// StateNotFoundRedirect means the slug matches no post and the visitor
	// is sent to the home page.
	StateNotFoundRedirect
)

func (s DetailState) String() string {
	switch s {
	case StateFallback:
		return "fallback"
	case StateResolved:
		return "resolved"
	case StateNotFoundRedirect:
		return "not-found-redirect"
	}
	return fmt.Sprintf("DetailState(%d)", int(s))
}

// Posts runs the listing and detail queries against a Source.
type Posts struct {
	src      Source
	pageSize int
	index    *PostIndex
}

// NewPosts creates Posts listing pageSize posts per page. The published
// post index is kept for indexTTL.
func NewPosts(src Source, pageSize int, indexTTL time.Duration) *Posts {
	p := &Posts{src: src, pageSize: pageSize}
	p.index = NewPostIndex(func(ctx context.Context) ([]model.PostSummary, error) {
		return p.All(ctx, "")
	}, indexTTL)
	return p
}

// Index returns the cached index of published posts.
func (p *Posts) Index() *PostIndex { return p.index }

// withRef runs fn under ref. A rejected preview ref is logged and the call
// is repeated against published content.
func withRef[T any](ctx context.Context, ref string, fn func(ref string) (T, error)) (T, error) {
	v, err := fn(ref)
	if err == nil || ref == "" || errors.Is(err, cms.ErrNotFound) || ctx.Err() != nil {
		return v, err
	}
	slog.Warn("preview ref rejected, serving published content", "error", err)
	return fn("")
}

// FirstPage returns the newest posts and the cursor of the page after them.
func (p *Posts) FirstPage(ctx context.Context, ref string) (model.PostPage, error) {
	resp, err := withRef(ctx, ref, func(ref string) (*cms.Response, error) {
		return p.src.Query(ctx, []cms.Predicate{cms.DocumentType(postType)}, cms.QueryOptions{
			Fetch:     summaryFields,
			PageSize:  p.pageSize,
			Orderings: cms.OrderByFirstPublication(true),
			Ref:       ref,
		})
	})
	if err != nil {
		return model.PostPage{}, fmt.Errorf("query first page: %w", err)
	}
	return mapPageLogged(resp), nil
}

// NextPage follows a cursor handed out with an earlier page.
func (p *Posts) NextPage(ctx context.Context, cursor string) (model.PostPage, error) {
	resp, err := p.src.FetchPage(ctx, cursor)
	if err != nil {
		return model.PostPage{}, fmt.Errorf("fetch next page: %w", err)
	}
	return mapPageLogged(resp), nil
}

func mapPageLogged(resp *cms.Response) model.PostPage {
	page, err := MapPage(resp)
	if err != nil {
		slog.Warn("skipping undecodable posts", "error", err)
	}
	return page
}

// Latest returns the uids of the n newest posts.
func (p *Posts) Latest(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	resp, err := p.src.Query(ctx, []cms.Predicate{cms.DocumentType(postType)}, cms.QueryOptions{
		Fetch:     []string{"posts.title"},
		PageSize:  n,
		Orderings: cms.OrderByFirstPublication(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query latest posts: %w", err)
	}
	uids := make([]string, 0, len(resp.Results))
	for _, d := range resp.Results {
		if d.UID != "" {
			uids = append(uids, d.UID)
		}
	}
	return uids, nil
}

// All walks every page and returns all posts visible under ref, oldest first.
func (p *Posts) All(ctx context.Context, ref string) ([]model.PostSummary, error) {
	resp, err := withRef(ctx, ref, func(ref string) (*cms.Response, error) {
		return p.src.Query(ctx, []cms.Predicate{cms.DocumentType(postType)}, cms.QueryOptions{
			Fetch:     summaryFields,
			PageSize:  indexPageSize,
			Orderings: cms.OrderByFirstPublication(false),
			Ref:       ref,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	var all []model.PostSummary
	visited := make(map[string]bool)
	for pages := 1; ; pages++ {
		all = append(all, mapPageLogged(resp).Results...)
		next := resp.Next()
		if next == "" {
			break
		}
		if visited[next] || pages >= maxIndexPages {
			return nil, fmt.Errorf("list posts: cursor loop at page %d", pages)
		}
		visited[next] = true
		if resp, err = p.src.FetchPage(ctx, next); err != nil {
			return nil, fmt.Errorf("list posts: %w", err)
		}
	}
	SortByPublication(all)
	return all, nil
}

// Detail loads a post and its neighbours. It returns cms.ErrNotFound when
// the slug matches no post.
func (p *Posts) Detail(ctx context.Context, slug, ref string) (model.PostDetail, error) {
	doc, err := withRef(ctx, ref, func(ref string) (*cms.Document, error) {
		return p.src.GetByUID(ctx, postType, slug, cms.QueryOptions{Ref: ref})
	})
	if err != nil {
		return model.PostDetail{}, err
	}
	post, err := MapDetail(*doc)
	if err != nil {
		return model.PostDetail{}, err
	}
	post.Prev, post.Next, err = p.neighbours(ctx, post.UID, ref)
	if err != nil {
		return model.PostDetail{}, err
	}
	return post, nil
}

func (p *Posts) neighbours(ctx context.Context, uid, ref string) (prev, next model.AdjacentPost, err error) {
	if ref != "" {
		posts, err := p.All(ctx, ref)
		if err != nil {
			return prev, next, err
		}
		prev, next, _ = Adjacent(posts, uid)
		return prev, next, nil
	}
	prev, next, found, err := p.index.Neighbours(ctx, uid)
	if err != nil || found {
		return prev, next, err
	}
	// Published after the index was built.
	p.index.Invalidate()
	prev, next, _, err = p.index.Neighbours(ctx, uid)
	return prev, next, err
}

// Resolve classifies a detail request as resolved or not found.
func (p *Posts) Resolve(ctx context.Context, slug, ref string) (DetailState, model.PostDetail, error) {
	post, err := p.Detail(ctx, slug, ref)
	switch {
	case errors.Is(err, cms.ErrNotFound):
		return StateNotFoundRedirect, model.PostDetail{}, nil
	case err != nil:
		return StateResolved, model.PostDetail{}, err
	}
	return StateResolved, post, nil
}

// BannerURL returns the banner image URL of a post, or "" when it has none.
func (p *Posts) BannerURL(ctx context.Context, slug, ref string) (string, error) {
	doc, err := withRef(ctx, ref, func(ref string) (*cms.Document, error) {
		return p.src.GetByUID(ctx, postType, slug, cms.QueryOptions{Fetch: []string{"posts.title", "posts.banner"}, Ref: ref})
	})
	if err != nil {
		return "", err
	}
	post, err := MapDetail(*doc)
	if err != nil {
		return "", err
	}
	return post.BannerURL, nil
}

// UIDForID returns the uid of the post with document id under ref, or ""
// when no post has that id.
func (p *Posts) UIDForID(ctx context.Context, id, ref string) (string, error) {
	resp, err := withRef(ctx, ref, func(ref string) (*cms.Response, error) {
		return p.src.Query(ctx, []cms.Predicate{cms.DocumentID(id)}, cms.QueryOptions{
			Fetch:    []string{"posts.title"},
			PageSize: 1,
			Ref:      ref,
		})
	})
	if err != nil {
		return "", fmt.Errorf("look up document %s: %w", id, err)
	}
	for _, d := range resp.Results {
		if d.Type == postType && d.UID != "" {
			return d.UID, nil
		}
	}
	return "", nil
}
