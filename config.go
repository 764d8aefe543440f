package spacetraveling

import "time"

// SiteConfig holds all configuration for a spacetraveling site.
type SiteConfig struct {
	Name        string `mapstructure:"name"`        // Site name (default "spacetraveling")
	URL         string `mapstructure:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `mapstructure:"description"` // Site description for RSS and meta tags
	Author      string `mapstructure:"author"`      // Author name for JSON-LD
	Locale      string `mapstructure:"locale"`      // Date and label language (default "pt-BR")
	TimeZone    string `mapstructure:"time_zone"`   // IANA zone for post dates; empty follows the locale (America/Sao_Paulo for pt)
	Env         string `mapstructure:"env"`         // "development" or "production"

	Addr         string `mapstructure:"addr"`          // Listen address (default ":3000")
	DatabasePath string `mapstructure:"database_path"` // SQLite page store (default "data/pages.db")

	CMSEndpoint    string `mapstructure:"cms_endpoint"`     // Repository API root, e.g. https://repo.cdn.prismic.io/api/v2
	CMSAccessToken string `mapstructure:"cms_access_token"` // Optional repository token
	ContentDir     string `mapstructure:"content_dir"`      // Markdown content used when CMSEndpoint is empty (default "content")

	PageSize         int           `mapstructure:"page_size"`         // Posts per listing page (default 1)
	Revalidate       time.Duration `mapstructure:"revalidate"`        // Page regeneration interval (default 1h)
	BlockingFallback bool          `mapstructure:"blocking_fallback"` // Generate unknown post pages before responding instead of showing a placeholder
	PrebuildCount    int           `mapstructure:"prebuild_count"`    // Post pages generated at startup (default 2)

	SessionSecret string `mapstructure:"session_secret"` // Required: preview session encryption secret
	CookieSecure  bool   `mapstructure:"cookie_secure"`  // Set true for HTTPS
	WebhookSecret string `mapstructure:"webhook_secret"` // Enables POST /api/revalidate

	UtterancesRepo string `mapstructure:"utterances_repo"` // owner/repo for comments; empty disables them
	SentryDSN      string `mapstructure:"sentry_dsn"`
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "spacetraveling"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Locale == "" {
		c.Locale = "pt-BR"
	}
	if c.Env == "" {
		c.Env = "development"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/pages.db"
	}
	if c.ContentDir == "" {
		c.ContentDir = "content"
	}
	if c.PageSize <= 0 {
		c.PageSize = 1
	}
	if c.Revalidate <= 0 {
		c.Revalidate = time.Hour
	}
	if c.PrebuildCount < 0 {
		c.PrebuildCount = 0
	} else if c.PrebuildCount == 0 {
		c.PrebuildCount = 2
	}
}

// IsDevelopment reports whether the site runs in development mode.
func (c SiteConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// Option configures additional App behavior.
type Option func(*App)

// WithSource replaces the content source built from the config.
func WithSource(src Source) Option {
	return func(a *App) {
		a.src = src
	}
}

// WithViews replaces individual default views. Nil fields keep the default.
func WithViews(v ViewFuncs) Option {
	return func(a *App) {
		a.Views = a.Views.merge(v)
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}
