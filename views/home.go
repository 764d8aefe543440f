package views

import (
	"net/url"

	"github.com/a-h/templ"

	"github.com/eringen/spacetraveling/model"
)

// Home is the listing page: the first page of posts and a load-more control.
func Home(site Site, page model.PostPage, preview bool) templ.Component {
	meta := PageMeta{
		URL:    buildURL(site.URL),
		JSONLD: WebsiteJsonLD(site),
	}
	return Layout(site, meta, preview, PostList(site, page))
}

// PostList renders the list element that load-more responses grow.
func PostList(site Site, page model.PostPage) templ.Component {
	return component(func(h *htmlWriter) {
		h.open("div", "class", "posts", "id", "posts")
		for _, p := range page.Results {
			h.render(PostItem(site, p))
		}
		h.render(LoadMore(site, page.NextPage, uids(page.Results)))
		h.close("div")
	})
}

// PostItem renders one listing entry.
func PostItem(site Site, p model.PostSummary) templ.Component {
	return component(func(h *htmlWriter) {
		h.open("div", "class", "result")
		h.open("a", "href", p.Link())
		h.elem("strong", p.Title)
		h.close("a")
		if p.Subtitle != "" {
			h.elem("p", p.Subtitle)
		}
		h.render(postInfo(site, p.FirstPublicationDate, p.Author, 0))
		h.close("div")
	})
}

// MaxSeen caps the uids a load-more control reports back.
const MaxSeen = 100

// moreURL is the load-more endpoint for cursor.
func moreURL(cursor string) string {
	return "/posts/more?" + url.Values{"cursor": {cursor}}.Encode()
}

func uids(posts []model.PostSummary) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.UID)
	}
	return out
}

// seenInputs writes the hidden fields a load-more request reports as
// already on screen: the entries of the page right before the cursor, where
// a newly published post can push an entry across the page boundary.
func seenInputs(h *htmlWriter, seen []string) {
	if len(seen) > MaxSeen {
		seen = seen[len(seen)-MaxSeen:]
	}
	for _, uid := range seen {
		h.open("input", "type", "hidden", "name", "seen", "value", uid)
	}
}

// LoadMore renders the load-more control, or nothing when cursor is empty.
// seen lists the uids of the page the control follows. Requests are synced
// on the list so a second click while one is in flight is dropped.
func LoadMore(site Site, cursor string, seen []string) templ.Component {
	if cursor == "" {
		return templ.NopComponent
	}
	l := labelsFor(site.Locale)
	return component(func(h *htmlWriter) {
		h.open("div", "class", "load-more-box")
		seenInputs(h, seen)
		h.elem("button", l.loadMore,
			"type", "button",
			"class", "load-more",
			"hx-get", moreURL(cursor),
			"hx-include", "closest .load-more-box",
			"hx-target", "closest .load-more-box",
			"hx-swap", "outerHTML",
			"hx-sync", "closest .posts:drop",
			"hx-disabled-elt", "this",
		)
		h.close("div")
	})
}

// MorePosts is the fragment returned for a successful load-more: the new
// entries followed by the next control.
func MorePosts(site Site, posts []model.PostSummary, next string) templ.Component {
	return component(func(h *htmlWriter) {
		for _, p := range posts {
			h.render(PostItem(site, p))
		}
		h.render(LoadMore(site, next, uids(posts)))
	})
}

// LoadMoreError replaces the control when a page fails to load. Its retry
// button requests the same cursor again with the same seen uids.
func LoadMoreError(site Site, cursor string, seen []string) templ.Component {
	l := labelsFor(site.Locale)
	return component(func(h *htmlWriter) {
		h.open("div", "class", "load-more-box load-more-error", "role", "alert")
		seenInputs(h, seen)
		h.elem("p", l.loadMoreFailed)
		h.elem("button", l.retry,
			"type", "button",
			"class", "load-more",
			"hx-get", moreURL(cursor),
			"hx-include", "closest .load-more-box",
			"hx-target", "closest .load-more-box",
			"hx-swap", "outerHTML",
			"hx-sync", "closest .posts:drop",
		)
		h.close("div")
	})
}
