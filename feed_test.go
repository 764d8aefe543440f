package spacetraveling

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/spacetraveling/model"
)

func summaries(uids ...string) []model.PostSummary {
	out := make([]model.PostSummary, 0, len(uids))
	for _, uid := range uids {
		out = append(out, model.PostSummary{UID: uid, Title: uid})
	}
	return out
}

func uidsOf(posts []model.PostSummary) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.UID)
	}
	return out
}

// pagesFetcher serves a fixed chain of pages keyed by cursor.
func pagesFetcher(pages map[string]model.PostPage) PageFetcher {
	return func(_ context.Context, cursor string) (model.PostPage, error) {
		p, ok := pages[cursor]
		if !ok {
			return model.PostPage{}, errors.New("unknown cursor " + cursor)
		}
		return p, nil
	}
}

func TestFeedNoMorePagesWithoutCursor(t *testing.T) {
	f := NewFeed(model.PostPage{Results: summaries("a")})
	assert.False(t, f.HasMore())

	_, err := f.Load(context.Background(), pagesFetcher(nil))
	assert.ErrorIs(t, err, ErrNoMorePages)
	assert.Equal(t, []string{"a"}, uidsOf(f.Posts()))
}

func TestFeedConcatenatesInFetchOrder(t *testing.T) {
	f := NewFeed(model.PostPage{Results: summaries("a"), NextPage: "p2"})
	fetch := pagesFetcher(map[string]model.PostPage{
		"p2": {Results: summaries("b"), NextPage: "p3"},
		"p3": {Results: summaries("c", "d"), NextPage: "p4"},
		"p4": {Results: summaries("e")},
	})

	for f.HasMore() {
		_, err := f.Load(context.Background(), fetch)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, uidsOf(f.Posts()))
	assert.Empty(t, f.NextPage())
}

func TestFeedDeduplicatesOverlappingPages(t *testing.T) {
	f := NewFeed(model.PostPage{Results: summaries("a", "b"), NextPage: "p2"})
	fetch := pagesFetcher(map[string]model.PostPage{
		"p2": {Results: summaries("b", "c")},
	})

	added, err := f.Load(context.Background(), fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, uidsOf(added))
	assert.Equal(t, []string{"a", "b", "c"}, uidsOf(f.Posts()))
}

func TestFeedSeedSkipsPostsAlreadyShown(t *testing.T) {
	f := NewFeed(model.PostPage{NextPage: "p2"})
	f.Seed("a", "b")

	added, err := f.Load(context.Background(), pagesFetcher(map[string]model.PostPage{
		"p2": {Results: summaries("a", "c")},
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, uidsOf(added))
}

func TestFeedRejectsOverlappingLoads(t *testing.T) {
	f := NewFeed(model.PostPage{Results: summaries("a"), NextPage: "p2"})

	cursor, err := f.Begin()
	require.NoError(t, err)
	assert.Equal(t, "p2", cursor)
	assert.True(t, f.Loading())

	_, err = f.Load(context.Background(), pagesFetcher(nil))
	assert.ErrorIs(t, err, ErrLoadInFlight)

	f.Append(model.PostPage{Results: summaries("b")})
	assert.False(t, f.Loading())
	assert.Equal(t, []string{"a", "b"}, uidsOf(f.Posts()))
}

func TestFeedFailureKeepsStateForRetry(t *testing.T) {
	f := NewFeed(model.PostPage{Results: summaries("a"), NextPage: "p2"})
	boom := errors.New("network down")

	_, err := f.Load(context.Background(), func(context.Context, string) (model.PostPage, error) {
		return model.PostPage{}, boom
	})
	require.ErrorIs(t, err, boom)
	assert.ErrorIs(t, f.Err(), boom)
	assert.False(t, f.Loading())
	assert.Equal(t, "p2", f.NextPage())
	assert.Equal(t, []string{"a"}, uidsOf(f.Posts()))

	_, err = f.Load(context.Background(), pagesFetcher(map[string]model.PostPage{
		"p2": {Results: summaries("b")},
	}))
	require.NoError(t, err)
	assert.NoError(t, f.Err())
	assert.Equal(t, []string{"a", "b"}, uidsOf(f.Posts()))
}
