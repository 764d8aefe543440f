// Package cms is a thin client for a Prismic-style headless content
// repository: predicate queries, orderings, field projection, cursor
// pagination and preview refs. It also ships a markdown-backed FileSource
// that answers the same queries from a local directory.
package cms

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document lookup matches nothing.
	ErrNotFound = errors.New("cms: document not found")
	// ErrForeignCursor is returned when a next-page cursor does not point
	// back at the repository that issued it.
	ErrForeignCursor = errors.New("cms: cursor does not belong to this repository")
)

// APIError is a non-200 answer from the repository.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cms: status=%d body=%s", e.Status, e.Body)
}

// QueryOptions mirrors the query parameters of the search endpoint.
type QueryOptions struct {
	Fetch     []string // field projection, e.g. "posts.title"
	PageSize  int
	Page      int
	Orderings string // e.g. "[document.first_publication_date desc]"
	After     string // document id
	Ref       string // empty means the master ref
}

// Response is one page of search results.
type Response struct {
	Page             int        `json:"page"`
	ResultsPerPage   int        `json:"results_per_page"`
	ResultsSize      int        `json:"results_size"`
	TotalResultsSize int        `json:"total_results_size"`
	TotalPages       int        `json:"total_pages"`
	NextPage         *string    `json:"next_page"`
	PrevPage         *string    `json:"prev_page"`
	Results          []Document `json:"results"`
}

// Next returns the next-page cursor, or "" at the end of the list.
func (r *Response) Next() string {
	if r == nil || r.NextPage == nil {
		return ""
	}
	return *r.NextPage
}

// Document is a raw repository document. Data is left undecoded; the
// caller owns the schema of each document type.
type Document struct {
	ID                   string          `json:"id"`
	UID                  string          `json:"uid"`
	Type                 string          `json:"type"`
	Tags                 []string        `json:"tags,omitempty"`
	FirstPublicationDate *string         `json:"first_publication_date"`
	LastPublicationDate  *string         `json:"last_publication_date"`
	Data                 json.RawMessage `json:"data"`
}

// DateLayout is the timestamp layout the repository uses for publication dates.
const DateLayout = "2006-01-02T15:04:05-0700"

// OrderByFirstPublication builds an ordering on the first publication date.
func OrderByFirstPublication(desc bool) string {
	if desc {
		return "[document.first_publication_date desc]"
	}
	return "[document.first_publication_date]"
}
