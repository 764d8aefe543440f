package spacetraveling

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/model"
)

// DecodeError reports a repository document that does not have the shape
// the pages need.
type DecodeError struct {
	UID   string
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	uid := e.UID
	if uid == "" {
		uid = "<no uid>"
	}
	return fmt.Sprintf("decode post %s: %s: %v", uid, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var errMissing = errors.New("missing")

type postData struct {
	Title    *string `json:"title"`
	Subtitle string  `json:"subtitle"`
	Author   string  `json:"author"`
	Banner   struct {
		URL string `json:"url"`
	} `json:"banner"`
	Content []struct {
		Heading string `json:"heading"`
		Body    []struct {
			Text string `json:"text"`
		} `json:"body"`
	} `json:"content"`
}

func decodePostData(doc cms.Document) (postData, error) {
	var d postData
	if doc.UID == "" {
		return d, &DecodeError{Field: "uid", Err: errMissing}
	}
	if len(doc.Data) == 0 || string(doc.Data) == "null" {
		return d, &DecodeError{UID: doc.UID, Field: "data", Err: errMissing}
	}
	if err := json.Unmarshal(doc.Data, &d); err != nil {
		return d, &DecodeError{UID: doc.UID, Field: "data", Err: err}
	}
	if d.Title == nil || strings.TrimSpace(*d.Title) == "" {
		return d, &DecodeError{UID: doc.UID, Field: "title", Err: errMissing}
	}
	return d, nil
}

// parseDate accepts the repository layout and RFC 3339. Absent dates map to nil.
func parseDate(uid, field string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	for _, layout := range []string{cms.DateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t, nil
		}
	}
	return nil, &DecodeError{UID: uid, Field: field, Err: fmt.Errorf("unrecognized date %q", *s)}
}

// MapSummary decodes a listing entry.
func MapSummary(doc cms.Document) (model.PostSummary, error) {
	d, err := decodePostData(doc)
	if err != nil {
		return model.PostSummary{}, err
	}
	first, err := parseDate(doc.UID, "first_publication_date", doc.FirstPublicationDate)
	if err != nil {
		return model.PostSummary{}, err
	}
	return model.PostSummary{
		UID:                  doc.UID,
		FirstPublicationDate: first,
		Title:                *d.Title,
		Subtitle:             d.Subtitle,
		Author:               d.Author,
	}, nil
}

// MapSummaries decodes every document it can. Documents that fail to decode
// are left out and reported together in the returned error.
func MapSummaries(docs []cms.Document) ([]model.PostSummary, error) {
	out := make([]model.PostSummary, 0, len(docs))
	var errs []error
	for _, doc := range docs {
		s, err := MapSummary(doc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, s)
	}
	return out, errors.Join(errs...)
}

// MapPage decodes a search response into a listing page.
func MapPage(resp *cms.Response) (model.PostPage, error) {
	if resp == nil {
		return model.PostPage{}, nil
	}
	results, err := MapSummaries(resp.Results)
	return model.PostPage{Results: results, NextPage: resp.Next()}, err
}

// MapDetail decodes a full post. Neighbours are resolved separately.
func MapDetail(doc cms.Document) (model.PostDetail, error) {
	d, err := decodePostData(doc)
	if err != nil {
		return model.PostDetail{}, err
	}
	first, err := parseDate(doc.UID, "first_publication_date", doc.FirstPublicationDate)
	if err != nil {
		return model.PostDetail{}, err
	}
	last, err := parseDate(doc.UID, "last_publication_date", doc.LastPublicationDate)
	if err != nil {
		return model.PostDetail{}, err
	}
	content := make([]model.Section, 0, len(d.Content))
	for _, c := range d.Content {
		sec := model.Section{Heading: c.Heading}
		for _, b := range c.Body {
			sec.Body = append(sec.Body, b.Text)
		}
		content = append(content, sec)
	}
	return model.PostDetail{
		UID:                  doc.UID,
		FirstPublicationDate: first,
		LastPublicationDate:  last,
		Title:                *d.Title,
		Subtitle:             d.Subtitle,
		BannerURL:            d.Banner.URL,
		Author:               d.Author,
		Content:              content,
	}, nil
}
