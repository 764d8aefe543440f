package views

import (
	"github.com/a-h/templ"
)

const htmxSrc = "https://unpkg.com/htmx.org@2.0.4/dist/htmx.min.js"

// Layout wraps body in the document shell shared by every page.
func Layout(site Site, meta PageMeta, preview bool, body templ.Component) templ.Component {
	l := labelsFor(site.Locale)
	title := site.Name
	if meta.Title != "" {
		title = meta.Title + " | " + site.Name
	}
	description := meta.Description
	if description == "" {
		description = site.Description
	}
	ogType := meta.OGType
	if ogType == "" {
		ogType = "website"
	}
	return component(func(h *htmlWriter) {
		h.raw("<!DOCTYPE html>")
		h.open("html", "lang", l.lang)
		h.raw("<head>")
		h.raw(`<meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.elem("title", title)
		if description != "" {
			h.open("meta", "name", "description", "content", description)
			h.open("meta", "property", "og:description", "content", description)
		}
		h.open("meta", "property", "og:title", "content", title)
		h.open("meta", "property", "og:type", "content", ogType)
		h.open("meta", "property", "og:site_name", "content", site.Name)
		if meta.URL != "" {
			h.open("link", "rel", "canonical", "href", meta.URL)
			h.open("meta", "property", "og:url", "content", meta.URL)
		}
		if meta.Image != "" {
			h.open("meta", "property", "og:image", "content", safeURL(meta.Image))
		}
		h.open("link", "rel", "alternate", "type", "application/rss+xml", "title", site.Name, "href", "/feed.xml")
		h.open("link", "rel", "stylesheet", "href", "/public/styles.css")
		h.open("script", "src", htmxSrc, "defer", "defer")
		h.close("script")
		if meta.JSONLD != "" {
			h.raw(`<script type="application/ld+json">` + meta.JSONLD + `</script>`)
		}
		h.raw("</head><body>")
		h.raw(`<header class="header"><div class="container">`)
		h.open("a", "href", "/", "class", "logo")
		h.text(site.Name)
		h.raw(`<span class="dot">.</span></a></div></header>`)
		h.raw(`<main class="container">`)
		h.render(body)
		if preview {
			h.render(ExitPreview(site))
		}
		h.raw("</main></body></html>")
	})
}

// ExitPreview renders the aside that leaves preview mode.
func ExitPreview(site Site) templ.Component {
	l := labelsFor(site.Locale)
	return component(func(h *htmlWriter) {
		h.open("aside", "class", "exit-preview")
		h.elem("a", l.exitPreview, "href", "/api/exit-preview")
		h.close("aside")
	})
}
