// Package spacetraveling is a blog front-end over a headless content
// repository. It renders the home listing and post pages with templ,
// regenerates them on a fixed interval, and serves preview, feeds and
// a static export.
//
// Views are plain templ components; replace any of them through ViewFuncs.
package spacetraveling

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/model"
	"github.com/eringen/spacetraveling/views"
)

// Version is set at build time.
var Version = "dev"

// ViewFuncs holds the templ components the handlers render. This is the
// inversion-of-control mechanism that lets users own the templates.
type ViewFuncs struct {
	Home          func(site views.Site, page model.PostPage, preview bool) templ.Component
	MorePosts     func(site views.Site, posts []model.PostSummary, next string) templ.Component
	LoadMoreError func(site views.Site, cursor string, seen []string) templ.Component
	Post          func(site views.Site, post model.PostDetail, preview bool) templ.Component
	PostPartial   func(site views.Site, post model.PostDetail) templ.Component
	PostFallback  func(site views.Site, slug string, preview bool) templ.Component
	NotFound      func(site views.Site) templ.Component
	ServerError   func(site views.Site) templ.Component
}

// DefaultViews returns the built-in views.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Home:          views.Home,
		MorePosts:     views.MorePosts,
		LoadMoreError: views.LoadMoreError,
		Post:          views.Post,
		PostPartial:   views.PostArticle,
		PostFallback:  views.PostFallback,
		NotFound:      views.NotFound,
		ServerError:   views.ServerError,
	}
}

func (v ViewFuncs) merge(o ViewFuncs) ViewFuncs {
	if o.Home != nil {
		v.Home = o.Home
	}
	if o.MorePosts != nil {
		v.MorePosts = o.MorePosts
	}
	if o.LoadMoreError != nil {
		v.LoadMoreError = o.LoadMoreError
	}
	if o.Post != nil {
		v.Post = o.Post
	}
	if o.PostPartial != nil {
		v.PostPartial = o.PostPartial
	}
	if o.PostFallback != nil {
		v.PostFallback = o.PostFallback
	}
	if o.NotFound != nil {
		v.NotFound = o.NotFound
	}
	if o.ServerError != nil {
		v.ServerError = o.ServerError
	}
	return v
}

// App is the central application. It wires together the content source,
// page store, caches, handlers, middleware and views.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Store  *Store
	Pages  *PageCache
	Posts  *Posts
	Views  ViewFuncs

	src          Source
	limiter      *RateLimiter
	images       *http.Client
	customRoutes []func(*App)
	staticDir    string
	exporting    bool
}

// New creates an App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     DefaultViews(),
		staticDir: "public",
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// prepare builds the content source and query layer shared by the server
// and the static export.
func (a *App) prepare() error {
	if a.Posts != nil {
		return nil
	}
	if a.src == nil {
		src, err := newSource(a.Config)
		if err != nil {
			return fmt.Errorf("spacetraveling: content source: %w", err)
		}
		a.src = src
	}
	a.Posts = NewPosts(a.src, a.Config.PageSize, a.Config.Revalidate)
	return nil
}

// Init prepares the store, caches, middleware and routes without listening.
func (a *App) Init() error {
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("spacetraveling: SessionSecret is required")
	}
	if err := a.prepare(); err != nil {
		return err
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("spacetraveling: init store: %w", err)
	}
	a.Store = store
	a.Pages = NewPageCache(store, a.Config.Revalidate)

	a.limiter = NewRateLimiter(10, time.Minute)
	a.images = cms.NewHTTPClient(15 * time.Second)

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start initializes the app unless Init was already called, prebuilds the
// newest post pages and starts the server. It returns when the server stops.
func (a *App) Start(ctx context.Context) error {
	if a.Store == nil {
		if err := a.Init(); err != nil {
			return err
		}
	}
	if err := a.Prebuild(ctx); err != nil {
		slog.Warn("prebuild failed, pages will be generated on demand", "error", err)
	}
	slog.Info("server starting", "addr", a.Config.Addr, "version", Version)
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Prebuild generates the pages of the PrebuildCount newest posts.
func (a *App) Prebuild(ctx context.Context) error {
	uids, err := a.Posts.Latest(ctx, a.Config.PrebuildCount)
	if err != nil {
		return err
	}
	for _, uid := range uids {
		if _, err := a.Pages.Serve(ctx, model.PostPath(uid), a.postGenerator(uid)); err != nil {
			return fmt.Errorf("prebuild %s: %w", uid, err)
		}
	}
	slog.Info("prebuilt post pages", "count", len(uids))
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Embedded assets are served first; anything else under /public comes
	// from the user's static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/styles.css", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.GET("/favicon.svg", echo.WrapHandler(embeddedHandler))
	e.Static("/public", a.staticDir)
	e.GET("/robots.txt", a.handleRobots)

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/", a.handleHome)
	e.GET("/posts/more", a.handleLoadMore)
	e.GET("/post/:slug/", a.handlePost)
	e.GET("/post/:slug/banner.jpg", a.handleBanner)

	e.GET("/api/preview", a.handlePreview)
	e.GET("/api/exit-preview", handleExitPreview)
	e.POST("/api/revalidate", a.handleRevalidate)
}

// Site returns the view settings derived from the config.
func (a *App) Site() views.Site {
	return views.Site{
		Name:           a.Config.Name,
		URL:            a.Config.URL,
		Description:    a.Config.Description,
		Author:         a.Config.Author,
		Locale:         a.Config.Locale,
		TimeZone:       a.Config.TimeZone,
		UtterancesRepo: a.Config.UtterancesRepo,
		ResizeBanners:  !a.exporting,
	}
}

// Shutdown stops the server gracefully and releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	return errors.Join(err, a.Close())
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
