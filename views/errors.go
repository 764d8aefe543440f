package views

import "github.com/a-h/templ"

// NotFound is the 404 page.
func NotFound(site Site) templ.Component {
	l := labelsFor(site.Locale)
	body := component(func(h *htmlWriter) {
		h.open("section", "class", "error-page")
		h.elem("h1", "404")
		h.elem("p", l.notFound)
		h.elem("a", l.backHome, "href", "/")
		h.close("section")
	})
	return Layout(site, PageMeta{Title: "404"}, false, body)
}

// ServerError is the 500 page.
func ServerError(site Site) templ.Component {
	l := labelsFor(site.Locale)
	body := component(func(h *htmlWriter) {
		h.open("section", "class", "error-page")
		h.elem("h1", "500")
		h.elem("p", l.serverError)
		h.elem("a", l.backHome, "href", "/")
		h.close("section")
	})
	return Layout(site, PageMeta{Title: "500"}, false, body)
}
