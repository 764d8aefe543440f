package spacetraveling

import (
	"context"
	"errors"
	"sync"

	"github.com/eringen/spacetraveling/model"
)

var (
	// ErrNoMorePages is returned by Feed.Begin when the cursor is exhausted.
	ErrNoMorePages = errors.New("feed: no more pages")
	// ErrLoadInFlight is returned by Feed.Begin while another load is running.
	ErrLoadInFlight = errors.New("feed: a page load is already in flight")
)

// PageFetcher fetches and decodes the page a cursor points at.
type PageFetcher func(ctx context.Context, cursor string) (model.PostPage, error)

// Feed is the state of a growing post listing: the posts shown so far, the
// cursor of the next page, the last load error and whether a load is
// running. Posts are unique by uid and kept in fetch order.
type Feed struct {
	mu      sync.Mutex
	posts   []model.PostSummary
	seen    map[string]struct{}
	next    string
	loading bool
	err     error
}

// NewFeed starts a feed from its first page.
func NewFeed(first model.PostPage) *Feed {
	f := &Feed{seen: make(map[string]struct{})}
	f.append(first.Results)
	f.next = first.NextPage
	return f
}

// Seed marks uids that are already on screen so later pages skip them.
func (f *Feed) Seed(uids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, uid := range uids {
		if uid != "" {
			f.seen[uid] = struct{}{}
		}
	}
}

// Begin claims the next load and returns the cursor to fetch.
func (f *Feed) Begin() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loading {
		return "", ErrLoadInFlight
	}
	if f.next == "" {
		return "", ErrNoMorePages
	}
	f.loading = true
	return f.next, nil
}

// Append adds a fetched page, replaces the cursor and ends the load.
// It returns only the posts that were not already in the feed.
func (f *Feed) Append(page model.PostPage) []model.PostSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	added := f.append(page.Results)
	f.next = page.NextPage
	f.loading = false
	f.err = nil
	return added
}

func (f *Feed) append(results []model.PostSummary) []model.PostSummary {
	var added []model.PostSummary
	for _, p := range results {
		if _, dup := f.seen[p.UID]; dup {
			continue
		}
		f.seen[p.UID] = struct{}{}
		f.posts = append(f.posts, p)
		added = append(added, p)
	}
	return added
}

// Fail ends the load with err. Loaded posts and the cursor are kept so the
// same page can be retried.
func (f *Feed) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loading = false
	f.err = err
}

// Load fetches the next page and appends it.
func (f *Feed) Load(ctx context.Context, fetch PageFetcher) ([]model.PostSummary, error) {
	cursor, err := f.Begin()
	if err != nil {
		return nil, err
	}
	page, err := fetch(ctx, cursor)
	if err != nil {
		f.Fail(err)
		return nil, err
	}
	return f.Append(page), nil
}

// Posts returns a copy of the posts loaded so far.
func (f *Feed) Posts() []model.PostSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.PostSummary(nil), f.posts...)
}

// NextPage returns the cursor of the next page, or "" at the end.
func (f *Feed) NextPage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next
}

// HasMore reports whether a load-more control should be shown.
func (f *Feed) HasMore() bool {
	return f.NextPage() != ""
}

// Err returns the error of the last load, cleared by a successful one.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Loading reports whether a load is in flight.
func (f *Feed) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}
