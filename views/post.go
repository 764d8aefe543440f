package views

import (
	"fmt"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/spacetraveling/model"
)

const bannerWidth = 1200

// Post is the full post page.
func Post(site Site, post model.PostDetail, preview bool) templ.Component {
	meta := PageMeta{
		Title:       post.Title,
		Description: post.Subtitle,
		URL:         buildURL(site.URL, "post", post.UID),
		OGType:      "article",
		Image:       post.BannerURL,
		JSONLD:      BlogPostingJsonLD(site, post),
	}
	return Layout(site, meta, preview, PostArticle(site, post))
}

// PostArticle renders the article alone. It is also the fragment that
// replaces the fallback placeholder.
func PostArticle(site Site, post model.PostDetail) templ.Component {
	l := labelsFor(site.Locale)
	return component(func(h *htmlWriter) {
		h.open("article", "class", "post", "id", "post")
		if post.BannerURL != "" {
			h.open("div", "class", "banner")
			h.open("img", "src", bannerSrc(site, post, bannerWidth), "alt", l.banner)
			h.close("div")
		}
		h.elem("h1", post.Title)
		h.render(postInfo(site, post.FirstPublicationDate, post.Author, post.ReadingTime()))
		if post.Edited() {
			h.elem("p", EditedLine(post.LastPublicationDate, site), "class", "last-edit")
		}
		h.open("div", "class", "content")
		for _, s := range post.Content {
			if s.Heading != "" {
				h.elem("h2", s.Heading)
			}
			for _, b := range s.Body {
				h.elem("p", b)
			}
		}
		h.close("div")
		h.raw(`<hr class="divider">`)
		h.render(navigator(site, post))
		h.render(Comments(site))
		h.close("article")
	})
}

func navigator(site Site, post model.PostDetail) templ.Component {
	l := labelsFor(site.Locale)
	link := func(h *htmlWriter, adj model.AdjacentPost, rel, label string) {
		h.open("div", "class", "nav nav-"+rel)
		if adj.Exists() {
			h.open("a", "href", model.PostPath(adj.UID), "rel", rel)
			h.elem("span", adj.Title)
			h.close("a")
			h.elem("p", label)
		}
		h.close("div")
	}
	return component(func(h *htmlWriter) {
		h.open("nav", "class", "navigator")
		link(h, post.Prev, "prev", l.prevPost)
		link(h, post.Next, "next", l.nextPost)
		h.close("nav")
	})
}

// Comments embeds the Utterances widget when a repository is configured.
func Comments(site Site) templ.Component {
	if site.UtterancesRepo == "" {
		return templ.NopComponent
	}
	return component(func(h *htmlWriter) {
		h.open("div", "class", "comments")
		h.open("script",
			"src", "https://utteranc.es/client.js",
			"repo", site.UtterancesRepo,
			"issue-term", "pathname",
			"theme", "github-dark",
			"crossorigin", "anonymous",
			"async", "async",
		)
		h.close("script")
		h.close("div")
	})
}

func postInfo(site Site, date *time.Time, author string, minutes int) templ.Component {
	l := labelsFor(site.Locale)
	return component(func(h *htmlWriter) {
		h.open("div", "class", "info")
		h.raw(`<span class="icon icon-calendar" aria-hidden="true"></span>`)
		if date = site.local(date); date != nil {
			h.elem("time", FormatDate(date, site.Locale), "datetime", date.Format("2006-01-02"))
		} else {
			h.elem("span", FormatDate(nil, site.Locale))
		}
		if author != "" {
			h.raw(`<span class="icon icon-user" aria-hidden="true"></span>`)
			h.elem("span", author)
		}
		if minutes > 0 {
			h.raw(`<span class="icon icon-clock" aria-hidden="true"></span>`)
			h.elem("span", fmt.Sprintf(l.minutes, minutes))
		}
		h.close("div")
	})
}

// PostFallback is served for a post whose page has not been generated yet.
// It fetches the article once the placeholder is on screen.
func PostFallback(site Site, slug string, preview bool) templ.Component {
	l := labelsFor(site.Locale)
	body := component(func(h *htmlWriter) {
		h.elem("div", l.loading,
			"class", "post fallback",
			"id", "post",
			"hx-get", model.PostPath(slug)+"?partial=post",
			"hx-trigger", "load",
			"hx-swap", "outerHTML",
		)
	})
	return Layout(site, PageMeta{URL: buildURL(site.URL, "post", slug)}, preview, body)
}
