package views

// Site holds site-wide settings. Every handler passes this to templates so
// nothing is hardcoded.
type Site struct {
	Name           string
	URL            string
	Description    string
	Author         string
	Locale         string // "pt-BR" (default) or "en"
	TimeZone       string // IANA zone for dates; empty uses the locale's zone
	UtterancesRepo string // owner/repo; empty hides comments
	ResizeBanners  bool   // serve banners through /post/<uid>/banner.jpg
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
	JSONLD      string
}
