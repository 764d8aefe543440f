package spacetraveling

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eringen/spacetraveling/cms"
)

const postA = `---
title: Post A
subtitle: Primeiro post
author: Ana
first_publication_date: "2021-01-01T10:00:00+0000"
---
## Abertura

Texto do post A.
`

const postB = `---
title: Post B
subtitle: Segundo post
author: Bruno
banner: https://images.example.com/b.png
first_publication_date: "2021-02-01T10:00:00+0000"
last_publication_date: "2021-02-03T14:30:00+0000"
---
## Meio

Texto do post B.
`

const postC = `---
title: Post C
subtitle: Terceiro post
author: Carla
first_publication_date: "2021-03-01T10:00:00+0000"
---
## Fim

Texto do post C.
`

const postDraft = `---
title: Rascunho
author: Ana
draft: true
first_publication_date: "2021-04-01T10:00:00+0000"
---
Ainda não.
`

// writeContent lays out the three fixture posts plus a draft and returns the dir.
func writeContent(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	postsDir := filepath.Join(dir, "posts")
	require.NoError(t, os.MkdirAll(postsDir, 0o755))
	for name, body := range map[string]string{
		"a.md":        postA,
		"b.md":        postB,
		"c.md":        postC,
		"rascunho.md": postDraft,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(postsDir, name), []byte(body), 0o644))
	}
	return dir
}

// countingSource counts calls and can be told to fail.
type countingSource struct {
	Source
	queries  atomic.Int32
	gets     atomic.Int32
	fetches  atomic.Int32
	fail     atomic.Bool
	badRef   string
	failNext atomic.Bool
}

var errSourceDown = errors.New("source down")

func (s *countingSource) Query(ctx context.Context, preds []cms.Predicate, opts cms.QueryOptions) (*cms.Response, error) {
	s.queries.Add(1)
	if s.fail.Load() {
		return nil, errSourceDown
	}
	if s.badRef != "" && opts.Ref == s.badRef {
		return nil, &cms.APIError{Status: 404, Body: "unknown ref"}
	}
	return s.Source.Query(ctx, preds, opts)
}

func (s *countingSource) GetByUID(ctx context.Context, docType, uid string, opts cms.QueryOptions) (*cms.Document, error) {
	s.gets.Add(1)
	if s.fail.Load() {
		return nil, errSourceDown
	}
	if s.badRef != "" && opts.Ref == s.badRef {
		return nil, &cms.APIError{Status: 404, Body: "unknown ref"}
	}
	return s.Source.GetByUID(ctx, docType, uid, opts)
}

func (s *countingSource) FetchPage(ctx context.Context, cursor string) (*cms.Response, error) {
	s.fetches.Add(1)
	if s.fail.Load() || s.failNext.Load() {
		return nil, errSourceDown
	}
	return s.Source.FetchPage(ctx, cursor)
}

func newCountingSource(t *testing.T) *countingSource {
	t.Helper()
	return &countingSource{Source: cms.NewFileSource(writeContent(t))}
}
