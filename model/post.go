// Package model holds the view-model types shared by the handlers and the
// templ views. They carry only what the pages render.
package model

import (
	"strings"
	"time"
)

// PostSummary is one entry of the home listing.
type PostSummary struct {
	UID                  string
	FirstPublicationDate *time.Time
	Title                string
	Subtitle             string
	Author               string
}

// Link returns the canonical path of the post page.
func (p PostSummary) Link() string {
	return PostPath(p.UID)
}

// PostPage is one page of summaries plus the cursor of the page after it.
// An empty NextPage marks the end of the list.
type PostPage struct {
	Results  []PostSummary
	NextPage string
}

// Section is a heading followed by its body paragraphs.
type Section struct {
	Heading string
	Body    []string
}

// AdjacentPost references the previous or next post by publication date.
// A zero UID means there is no neighbour and no link is rendered.
type AdjacentPost struct {
	UID   string
	Title string
}

// Exists reports whether the reference points at a post.
func (a AdjacentPost) Exists() bool {
	return a.UID != ""
}

// PostDetail is everything the post page renders.
type PostDetail struct {
	UID                  string
	FirstPublicationDate *time.Time
	LastPublicationDate  *time.Time
	Title                string
	Subtitle             string
	BannerURL            string
	Author               string
	Content              []Section
	Prev                 AdjacentPost
	Next                 AdjacentPost
}

// Summary projects the detail down to its listing entry.
func (p PostDetail) Summary() PostSummary {
	return PostSummary{
		UID:                  p.UID,
		FirstPublicationDate: p.FirstPublicationDate,
		Title:                p.Title,
		Subtitle:             p.Subtitle,
		Author:               p.Author,
	}
}

// Edited reports whether the post was republished after it first went out.
func (p PostDetail) Edited() bool {
	if p.FirstPublicationDate == nil || p.LastPublicationDate == nil {
		return false
	}
	return p.LastPublicationDate.After(*p.FirstPublicationDate)
}

const wordsPerMinute = 200

// ReadingTime estimates minutes to read headings and body text, rounded up.
func (p PostDetail) ReadingTime() int {
	words := 0
	for _, s := range p.Content {
		words += len(strings.Fields(s.Heading))
		for _, b := range s.Body {
			words += len(strings.Fields(b))
		}
	}
	if words == 0 {
		return 0
	}
	return (words + wordsPerMinute - 1) / wordsPerMinute
}

// PostPath returns the site path of the post with the given uid.
func PostPath(uid string) string {
	return "/post/" + uid + "/"
}
