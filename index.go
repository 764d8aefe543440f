package spacetraveling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eringen/spacetraveling/model"
)

// PostIndex is an in-memory cache of every published post, sorted by first
// publication date, with TTL. It backs neighbour links, the sitemap and the feed.
type PostIndex struct {
	mu      sync.RWMutex
	posts   []model.PostSummary
	fetched time.Time
	ttl     time.Duration
	load    func(ctx context.Context) ([]model.PostSummary, error)
}

// NewPostIndex creates a PostIndex that lists posts with load.
func NewPostIndex(load func(ctx context.Context) ([]model.PostSummary, error), ttl time.Duration) *PostIndex {
	return &PostIndex{load: load, ttl: ttl}
}

func (x *PostIndex) valid() bool {
	return x.posts != nil && time.Since(x.fetched) < x.ttl
}

// Invalidate clears the index so the next read triggers a fresh load.
func (x *PostIndex) Invalidate() {
	x.mu.Lock()
	x.posts = nil
	x.mu.Unlock()
}

// Posts returns all posts oldest first after ensuring the index is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (x *PostIndex) Posts(ctx context.Context) ([]model.PostSummary, error) {
	x.mu.RLock()
	if x.valid() {
		posts := x.posts
		x.mu.RUnlock()
		return posts, nil
	}
	x.mu.RUnlock()

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.valid() {
		return x.posts, nil
	}
	posts, err := x.load(ctx)
	if err != nil {
		return nil, err
	}
	SortByPublication(posts)
	if posts == nil {
		posts = []model.PostSummary{}
	}
	x.posts = posts
	x.fetched = time.Now()
	return x.posts, nil
}

// Neighbours returns the posts published right before and right after uid.
// found is false when uid is not in the index.
func (x *PostIndex) Neighbours(ctx context.Context, uid string) (prev, next model.AdjacentPost, found bool, err error) {
	posts, err := x.Posts(ctx)
	if err != nil {
		return prev, next, false, err
	}
	prev, next, found = Adjacent(posts, uid)
	return prev, next, found, nil
}

// SortByPublication orders posts by first publication date ascending.
// Undated posts go last; equal dates fall back to uid.
func SortByPublication(posts []model.PostSummary) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i].FirstPublicationDate, posts[j].FirstPublicationDate
		switch {
		case a == nil && b == nil:
			return posts[i].UID < posts[j].UID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		default:
			return posts[i].UID < posts[j].UID
		}
	})
}

// Adjacent finds uid in posts, which must be sorted with SortByPublication,
// and returns its immediate predecessor and successor.
func Adjacent(sorted []model.PostSummary, uid string) (prev, next model.AdjacentPost, found bool) {
	for i, p := range sorted {
		if p.UID != uid {
			continue
		}
		if i > 0 {
			prev = model.AdjacentPost{UID: sorted[i-1].UID, Title: sorted[i-1].Title}
		}
		if i+1 < len(sorted) {
			next = model.AdjacentPost{UID: sorted[i+1].UID, Title: sorted[i+1].Title}
		}
		return prev, next, true
	}
	return prev, next, false
}
