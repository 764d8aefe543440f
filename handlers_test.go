package spacetraveling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "revalidate-secret-for-tests"

// newTestApp builds an initialized App over the fixture posts.
func newTestApp(t *testing.T, cfg SiteConfig, opts ...Option) *App {
	t.Helper()
	if cfg.ContentDir == "" {
		cfg.ContentDir = writeContent(t)
	}
	cfg.URL = "https://blog.example.com"
	cfg.DatabasePath = filepath.Join(t.TempDir(), "pages.db")
	cfg.SessionSecret = "test-session-secret-0123456789abcdef"
	a := New(cfg, append([]Option{WithStaticDir(t.TempDir())}, opts...)...)
	require.NoError(t, a.Init())
	t.Cleanup(func() { a.Close() })
	return a
}

type requestOption func(*http.Request)

func htmx(r *http.Request) { r.Header.Set("HX-Request", "true") }

func withCookies(cookies []*http.Cookie) requestOption {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	}
}

func get(t *testing.T, a *App, target string, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func TestHomeListsNewestPostWithLoadMore(t *testing.T) {
	a := newTestApp(t, SiteConfig{})

	rec := get(t, a, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `href="/post/c/"`)
	assert.NotContains(t, body, `href="/post/b/"`)
	assert.Contains(t, body, "Carregar mais posts")
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "Cookie", rec.Header().Get("Vary"))

	cached, err := a.Pages.Cached(context.Background(), "/")
	require.NoError(t, err)
	assert.True(t, cached)
}

func TestHomeWithoutNextPageHasNoLoadMore(t *testing.T) {
	a := newTestApp(t, SiteConfig{PageSize: 10})

	body := get(t, a, "/").Body.String()
	for _, uid := range []string{"a", "b", "c"} {
		assert.Contains(t, body, `href="/post/`+uid+`/"`)
	}
	assert.NotContains(t, body, "Carregar mais posts")
	assert.NotContains(t, body, "Rascunho")
}

func TestLoadMoreAppendsNextPage(t *testing.T) {
	a := newTestApp(t, SiteConfig{})
	first, err := a.Posts.FirstPage(context.Background(), "")
	require.NoError(t, err)

	q := url.Values{"cursor": {first.NextPage}, "seen": {"c"}}
	rec := get(t, a, "/posts/more?"+q.Encode(), htmx)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `href="/post/b/"`)
	assert.NotContains(t, body, `href="/post/c/"`)
	assert.Contains(t, body, "Carregar mais posts")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestLoadMoreSkipsPostsAlreadyShown(t *testing.T) {
	a := newTestApp(t, SiteConfig{})
	first, err := a.Posts.FirstPage(context.Background(), "")
	require.NoError(t, err)

	q := url.Values{"cursor": {first.NextPage}, "seen": {"c", "b"}}
	rec := get(t, a, "/posts/more?"+q.Encode(), htmx)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `href="/post/b/"`)
}

func TestLoadMoreFailureRendersRetry(t *testing.T) {
	src := newCountingSource(t)
	a := newTestApp(t, SiteConfig{}, WithSource(src))
	first, err := a.Posts.FirstPage(context.Background(), "")
	require.NoError(t, err)
	require.NotEmpty(t, first.NextPage)

	q := url.Values{"cursor": {first.NextPage}, "seen": {"c"}}
	src.failNext.Store(true)
	rec := get(t, a, "/posts/more?"+q.Encode(), htmx)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Tentar novamente")
	retry := "/posts/more?" + url.Values{"cursor": {first.NextPage}}.Encode()
	assert.Contains(t, body, `hx-get="`+retry+`"`)
	assert.Contains(t, body, `name="seen" value="c"`)
	assert.NotContains(t, body, `href="/post/b/"`)

	src.failNext.Store(false)
	rec = get(t, a, retry+"&seen=c", htmx)
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.Contains(t, body, `href="/post/b/"`)
	assert.NotContains(t, body, "Tentar novamente")
}

func TestLoadMoreCarriesOnlyTheLatestPage(t *testing.T) {
	a := newTestApp(t, SiteConfig{})
	first, err := a.Posts.FirstPage(context.Background(), "")
	require.NoError(t, err)

	seen := []string{"x1", "x2", "x3", "c"}
	q := url.Values{"cursor": {first.NextPage}, "seen": seen}
	body := get(t, a, "/posts/more?"+q.Encode(), htmx).Body.String()
	assert.Contains(t, body, `name="seen" value="b"`)
	for _, uid := range seen {
		assert.NotContains(t, body, `name="seen" value="`+uid+`"`)
	}
}

func TestLoadMoreRejectsForeignCursor(t *testing.T) {
	a := newTestApp(t, SiteConfig{})

	q := url.Values{"cursor": {"https://evil.example.com/api/v2/documents/search?page=2"}}
	rec := get(t, a, "/posts/more?"+q.Encode(), htmx)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoadMoreWithoutCursor(t *testing.T) {
	a := newTestApp(t, SiteConfig{})
	assert.Equal(t, http.StatusNoContent, get(t, a, "/posts/more", htmx).Code)
}

func TestPostNeighbourLinksAtEnds(t *testing.T) {
	a := newTestApp(t, SiteConfig{BlockingFallback: true})

	first := get(t, a, "/post/a/")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Contains(t, first.Body.String(), "Próximo post")
	assert.Contains(t, first.Body.String(), `href="/post/b/"`)
	assert.NotContains(t, first.Body.String(), "Post anterior")

	last := get(t, a, "/post/c/")
	require.Equal(t, http.StatusOK, last.Code)
	assert.Contains(t, last.Body.String(), "Post anterior")
	assert.NotContains(t, last.Body.String(), "Próximo post")
}

func TestUnknownSlugRedirectsHome(t *testing.T) {
	a := newTestApp(t, SiteConfig{BlockingFallback: true})

	rec := get(t, a, "/post/nao-existe/")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = get(t, a, "/post/rascunho/")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
}

func TestFallbackPlaceholderThenPartial(t *testing.T) {
	a := newTestApp(t, SiteConfig{})

	rec := get(t, a, "/post/b/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Carregando...")
	assert.Contains(t, rec.Body.String(), `hx-get="/post/b/?partial=post"`)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = get(t, a, "/post/b/?partial=post", htmx)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Post B")
	assert.NotContains(t, rec.Body.String(), "<html")

	// The partial generated the page, so the next visit gets the article.
	rec = get(t, a, "/post/b/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Post anterior")
	assert.NotContains(t, rec.Body.String(), "Carregando...")
}

func TestFallbackPartialForUnknownSlugRedirects(t *testing.T) {
	a := newTestApp(t, SiteConfig{})

	rec := get(t, a, "/post/nao-existe/?partial=post", htmx)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("HX-Redirect"))
}

func TestPreviewShowsDraftsUntilExit(t *testing.T) {
	a := newTestApp(t, SiteConfig{BlockingFallback: true})

	rec := get(t, a, "/api/preview?token=drafts&documentId=rascunho")
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/post/rascunho/", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	rec = get(t, a, "/post/rascunho/", withCookies(cookies))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Rascunho")
	assert.Contains(t, rec.Body.String(), "Sair do modo Preview")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	home := get(t, a, "/", withCookies(cookies))
	assert.Contains(t, home.Body.String(), `href="/post/rascunho/"`)

	cached, err := a.Pages.Cached(context.Background(), "/post/rascunho/")
	require.NoError(t, err)
	assert.False(t, cached)

	rec = get(t, a, "/api/exit-preview", withCookies(cookies))
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestPreviewRejectsUnknownToken(t *testing.T) {
	a := newTestApp(t, SiteConfig{})

	assert.Equal(t, http.StatusUnauthorized, get(t, a, "/api/preview?token=nope").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, a, "/api/preview").Code)
}

func signedRevalidate(t *testing.T, secret string, payload []byte) *http.Request {
	t.Helper()
	wh, err := standardwebhooks.NewWebhookRaw([]byte(secret))
	require.NoError(t, err)
	now := time.Now()
	sig, err := wh.Sign("msg_1", now, payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/revalidate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("webhook-id", "msg_1")
	req.Header.Set("webhook-timestamp", strconv.FormatInt(now.Unix(), 10))
	req.Header.Set("webhook-signature", sig)
	return req
}

func revalidate(t *testing.T, a *App, payload string) []string {
	t.Helper()
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, signedRevalidate(t, testWebhookSecret, []byte(payload)))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Revalidated []string `json:"revalidated"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Revalidated
}

func assertCached(t *testing.T, a *App, want bool, paths ...string) {
	t.Helper()
	for _, p := range paths {
		cached, err := a.Pages.Cached(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, want, cached, p)
	}
}

func TestRevalidateDropsChangedPages(t *testing.T) {
	a := newTestApp(t, SiteConfig{BlockingFallback: true, WebhookSecret: testWebhookSecret})
	for _, p := range []string{"/post/a/", "/post/b/", "/post/c/"} {
		require.Equal(t, http.StatusOK, get(t, a, p).Code)
	}

	got := revalidate(t, a, `{"type":"api-update","documents":["c"]}`)
	assert.Equal(t, []string{"/", "/post/c/", "/post/b/"}, got)
	assertCached(t, a, false, "/post/c/", "/post/b/")
	assertCached(t, a, true, "/post/a/")

	revalidate(t, a, `{"type":"api-update","documents":[]}`)
	assertCached(t, a, false, "/post/a/")
}

func TestRevalidateRefreshesNeighbourTitles(t *testing.T) {
	dir := writeContent(t)
	a := newTestApp(t, SiteConfig{ContentDir: dir, BlockingFallback: true, WebhookSecret: testWebhookSecret})
	require.Contains(t, get(t, a, "/post/a/").Body.String(), "Post B")

	edited := []byte("---\ntitle: Post B renomeado\nfirst_publication_date: \"2021-02-01T10:00:00+0000\"\n---\nTexto.\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "posts", "b.md"), edited, 0o644))
	revalidate(t, a, `{"type":"api-update","documents":["b"]}`)

	assert.Contains(t, get(t, a, "/post/a/").Body.String(), "Post B renomeado")
	assert.Contains(t, get(t, a, "/post/c/").Body.String(), "Post B renomeado")
}

func TestRevalidateNewPostLinksFromPreviousNewest(t *testing.T) {
	dir := writeContent(t)
	a := newTestApp(t, SiteConfig{ContentDir: dir, BlockingFallback: true, WebhookSecret: testWebhookSecret})
	require.NotContains(t, get(t, a, "/post/c/").Body.String(), "Próximo post")

	post := []byte("---\ntitle: Post D\nfirst_publication_date: \"2021-04-10T10:00:00+0000\"\n---\nNovo.\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "posts", "d.md"), post, 0o644))
	got := revalidate(t, a, `{"type":"api-update","documents":["d"]}`)
	assert.Equal(t, []string{"/", "/post/d/", "/post/c/"}, got)

	body := get(t, a, "/post/c/").Body.String()
	assert.Contains(t, body, "Próximo post")
	assert.Contains(t, body, `href="/post/d/"`)
}

func TestRevalidateUnknownDocumentDropsEverything(t *testing.T) {
	a := newTestApp(t, SiteConfig{BlockingFallback: true, WebhookSecret: testWebhookSecret})
	require.Equal(t, http.StatusOK, get(t, a, "/post/a/").Code)

	got := revalidate(t, a, `{"type":"api-update","documents":["removido"]}`)
	assert.Equal(t, []string{"*"}, got)
	assertCached(t, a, false, "/post/a/")
}

func TestRevalidateRejectsBadSignature(t *testing.T) {
	a := newTestApp(t, SiteConfig{WebhookSecret: testWebhookSecret})

	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, signedRevalidate(t, "some-other-secret", []byte(`{"documents":[]}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRevalidateDisabledWithoutSecret(t *testing.T) {
	a := newTestApp(t, SiteConfig{})

	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, signedRevalidate(t, testWebhookSecret, []byte(`{"documents":[]}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeedListsPostsNewestFirst(t *testing.T) {
	a := newTestApp(t, SiteConfig{Name: "Space Traveling"})

	rec := get(t, a, "/feed.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/rss+xml")

	feed, err := gofeed.NewParser().ParseString(rec.Body.String())
	require.NoError(t, err)
	assert.Equal(t, "Space Traveling", feed.Title)
	require.Len(t, feed.Items, 3)
	assert.Equal(t, "Post C", feed.Items[0].Title)
	assert.Equal(t, "https://blog.example.com/post/c/", feed.Items[0].Link)
	assert.Equal(t, "Post A", feed.Items[2].Title)
	require.NotNil(t, feed.Items[2].PublishedParsed)
	assert.Equal(t, 2021, feed.Items[2].PublishedParsed.Year())
}

func TestSitemapAndRobots(t *testing.T) {
	a := newTestApp(t, SiteConfig{})

	rec := get(t, a, "/sitemap.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<loc>https://blog.example.com/post/a/</loc>")
	assert.Contains(t, body, "<lastmod>2021-03-01</lastmod>")
	assert.NotContains(t, body, "rascunho")

	rec = get(t, a, "/robots.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sitemap: https://blog.example.com/sitemap.xml")
}

func TestUnknownRouteRendersNotFoundPage(t *testing.T) {
	a := newTestApp(t, SiteConfig{})

	rec := get(t, a, "/nada/aqui/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Página não encontrada")
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestResizeBannerScalesDown(t *testing.T) {
	out, err := resizeBanner(bytes.NewReader(testPNG(t, 400, 200)), 200)
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())

	out, err = resizeBanner(bytes.NewReader(testPNG(t, 100, 50)), 200)
	require.NoError(t, err)
	img, err = jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
}

func TestResizeBannerRejectsGarbage(t *testing.T) {
	_, err := resizeBanner(strings.NewReader("not an image"), 200)
	assert.Error(t, err)
}

func TestBannerWidth(t *testing.T) {
	tests := map[string]int{
		"":     maxBannerWidth,
		"abc":  maxBannerWidth,
		"-5":   maxBannerWidth,
		"5000": maxBannerWidth,
		"50":   minBannerWidth,
		"800":  800,
	}
	for q, want := range tests {
		if got := bannerWidth(q); got != want {
			t.Errorf("bannerWidth(%q) = %d, want %d", q, got, want)
		}
	}
}

func TestBannerEndpointResizesPostBanner(t *testing.T) {
	pngData := testPNG(t, 640, 320)
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	}))
	defer images.Close()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "posts"), 0o755))
	post := fmt.Sprintf("---\ntitle: Com banner\nbanner: %s/banner.png\nfirst_publication_date: \"2021-05-01T10:00:00+0000\"\n---\nTexto.\n", images.URL)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "posts", "com-banner.md"), []byte(post), 0o644))
	a := newTestApp(t, SiteConfig{ContentDir: dir})

	rec := get(t, a, "/post/com-banner/banner.jpg?w=320")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	img, err := jpeg.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, "public, max-age=86400", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "Cookie", rec.Header().Get("Vary"))

	assert.Equal(t, http.StatusNotFound, get(t, a, "/post/nao-existe/banner.jpg").Code)
}

func TestPreviewBannerIsNotCached(t *testing.T) {
	pngData := testPNG(t, 400, 200)
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	}))
	defer images.Close()

	dir := writeContent(t)
	draft := fmt.Sprintf("---\ntitle: Rascunho com banner\nbanner: %s/banner.png\ndraft: true\nfirst_publication_date: \"2021-05-01T10:00:00+0000\"\n---\nTexto.\n", images.URL)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "posts", "rascunho-banner.md"), []byte(draft), 0o644))
	a := newTestApp(t, SiteConfig{ContentDir: dir})

	assert.Equal(t, http.StatusNotFound, get(t, a, "/post/rascunho-banner/banner.jpg").Code)

	cookies := get(t, a, "/api/preview?token=drafts").Result().Cookies()
	require.NotEmpty(t, cookies)
	rec := get(t, a, "/post/rascunho-banner/banner.jpg", withCookies(cookies))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestPrebuildGeneratesNewestPosts(t *testing.T) {
	a := newTestApp(t, SiteConfig{PrebuildCount: 2})
	ctx := context.Background()
	require.NoError(t, a.Prebuild(ctx))

	for path, want := range map[string]bool{"/post/c/": true, "/post/b/": true, "/post/a/": false} {
		cached, err := a.Pages.Cached(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, want, cached, path)
	}
}

func TestInitRequiresSessionSecret(t *testing.T) {
	a := New(SiteConfig{ContentDir: writeContent(t), DatabasePath: filepath.Join(t.TempDir(), "pages.db")})
	assert.Error(t, a.Init())
}

func TestWithSourceOverridesContentDir(t *testing.T) {
	src := newCountingSource(t)
	a := New(SiteConfig{ContentDir: "does-not-exist"}, WithSource(src))
	require.NoError(t, a.prepare())

	page, err := a.Posts.FirstPage(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, page.Results, 1)
	assert.EqualValues(t, 1, src.queries.Load())
}

func TestMissingContentDirFailsInit(t *testing.T) {
	a := New(SiteConfig{
		ContentDir:    filepath.Join(t.TempDir(), "missing"),
		DatabasePath:  filepath.Join(t.TempDir(), "pages.db"),
		SessionSecret: "secret",
	})
	assert.Error(t, a.Init())
}
