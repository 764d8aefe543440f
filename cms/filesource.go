package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/frontmatter"
)

// DraftsRef is the preview ref under which a FileSource also serves drafts.
const DraftsRef = "drafts"

const (
	fileScheme      = "fs"
	defaultPageSize = 20
)

// FileSource answers repository queries from markdown files laid out as
// <dir>/<type>/<name>.md. Frontmatter carries the document fields;
// "## " headings open content sections and paragraphs become body blocks.
type FileSource struct {
	dir string
	md  goldmark.Markdown
}

// NewFileSource creates a FileSource rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{
		dir: dir,
		md: goldmark.New(
			goldmark.WithExtensions(&frontmatter.Extender{}),
		),
	}
}

type fileMeta struct {
	Title                string   `yaml:"title"`
	Subtitle             string   `yaml:"subtitle"`
	Author               string   `yaml:"author"`
	Banner               string   `yaml:"banner"`
	FirstPublicationDate string   `yaml:"first_publication_date"`
	LastPublicationDate  string   `yaml:"last_publication_date"`
	Draft                bool     `yaml:"draft"`
	Tags                 []string `yaml:"tags"`
}

type fileDoc struct {
	doc   Document
	data  map[string]any
	first time.Time
	draft bool
}

// Query runs preds against the documents on disk.
func (s *FileSource) Query(ctx context.Context, preds []Predicate, opts QueryOptions) (*Response, error) {
	docType := ""
	for _, p := range preds {
		if p.Op == "at" && p.Path == "document.type" {
			docType = p.Value
		}
	}
	docs, err := s.load(ctx, docType, opts.Ref == DraftsRef)
	if err != nil {
		return nil, err
	}

	var matched []fileDoc
	for _, d := range docs {
		ok, err := matches(d, preds)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, d)
		}
	}

	desc, err := parseOrdering(opts.Orderings)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.first.Equal(b.first) {
			return a.doc.UID < b.doc.UID
		}
		if desc {
			return a.first.After(b.first)
		}
		return a.first.Before(b.first)
	})

	if opts.After != "" {
		for i, d := range matched {
			if d.doc.ID == opts.After {
				matched = matched[i+1:]
				break
			}
		}
	}

	return s.paginate(matched, preds, opts), nil
}

func (s *FileSource) paginate(matched []fileDoc, preds []Predicate, opts QueryOptions) *Response {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	page := opts.Page
	if page <= 0 {
		page = 1
	}
	total := len(matched)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	results := make([]Document, 0, end-start)
	for _, d := range matched[start:end] {
		results = append(results, project(d, opts.Fetch))
	}

	resp := &Response{
		Page:             page,
		ResultsPerPage:   pageSize,
		ResultsSize:      len(results),
		TotalResultsSize: total,
		TotalPages:       totalPages,
		Results:          results,
	}
	if page < totalPages {
		next := s.cursor(preds, opts, page+1, pageSize)
		resp.NextPage = &next
	}
	if page > 1 {
		prev := s.cursor(preds, opts, page-1, pageSize)
		resp.PrevPage = &prev
	}
	return resp
}

func (s *FileSource) cursor(preds []Predicate, opts QueryOptions, page, pageSize int) string {
	q := url.Values{}
	q.Set("q", Query(preds))
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	if opts.Orderings != "" {
		q.Set("orderings", opts.Orderings)
	}
	if len(opts.Fetch) > 0 {
		q.Set("fetch", strings.Join(opts.Fetch, ","))
	}
	if opts.After != "" {
		q.Set("after", opts.After)
	}
	if opts.Ref != "" {
		q.Set("ref", opts.Ref)
	}
	u := url.URL{Scheme: fileScheme, Host: "documents", Path: "/search", RawQuery: q.Encode()}
	return u.String()
}

// FetchPage follows a cursor produced by this source.
func (s *FileSource) FetchPage(ctx context.Context, cursor string) (*Response, error) {
	u, err := url.Parse(cursor)
	if err != nil {
		return nil, fmt.Errorf("cms: parse cursor: %w", err)
	}
	if u.Scheme != fileScheme {
		return nil, ErrForeignCursor
	}
	q := u.Query()
	preds, err := ParseQuery(q.Get("q"))
	if err != nil {
		return nil, err
	}
	opts := QueryOptions{
		Orderings: q.Get("orderings"),
		After:     q.Get("after"),
		Ref:       q.Get("ref"),
	}
	if f := q.Get("fetch"); f != "" {
		opts.Fetch = strings.Split(f, ",")
	}
	if opts.Page, err = strconv.Atoi(q.Get("page")); err != nil {
		return nil, fmt.Errorf("cms: cursor page: %w", err)
	}
	if opts.PageSize, err = strconv.Atoi(q.Get("pageSize")); err != nil {
		return nil, fmt.Errorf("cms: cursor pageSize: %w", err)
	}
	return s.Query(ctx, preds, opts)
}

// GetByUID returns the document of docType with the given uid.
func (s *FileSource) GetByUID(ctx context.Context, docType, uid string, opts QueryOptions) (*Document, error) {
	opts.PageSize = 1
	opts.Page = 0
	resp, err := s.Query(ctx, []Predicate{DocumentType(docType), UID(docType, uid)}, opts)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, ErrNotFound
	}
	return &resp.Results[0], nil
}

// PreviewRef accepts only DraftsRef.
func (s *FileSource) PreviewRef(_ context.Context, token string) (string, error) {
	if token != DraftsRef {
		return "", fmt.Errorf("cms: preview ref %q rejected", token)
	}
	return token, nil
}

func (s *FileSource) load(ctx context.Context, docType string, withDrafts bool) ([]fileDoc, error) {
	var types []string
	if docType != "" {
		types = []string{docType}
	} else {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			return nil, fmt.Errorf("cms: read content dir: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				types = append(types, e.Name())
			}
		}
	}

	var docs []fileDoc
	for _, t := range types {
		files, err := filepath.Glob(filepath.Join(s.dir, t, "*.md"))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			d, err := s.parseFile(t, f)
			if err != nil {
				return nil, err
			}
			if d.draft && !withDrafts {
				continue
			}
			docs = append(docs, d)
		}
	}
	return docs, nil
}

func (s *FileSource) parseFile(docType, path string) (fileDoc, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return fileDoc{}, fmt.Errorf("cms: read %s: %w", path, err)
	}

	pctx := parser.NewContext()
	root := s.md.Parser().Parse(text.NewReader(src), parser.WithContext(pctx))

	var meta fileMeta
	if fm := frontmatter.Get(pctx); fm != nil {
		if err := fm.Decode(&meta); err != nil {
			return fileDoc{}, fmt.Errorf("cms: frontmatter of %s: %w", path, err)
		}
	}

	uid := slug.Make(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	first := normalizeDate(meta.FirstPublicationDate)
	last := normalizeDate(meta.LastPublicationDate)
	if last == nil {
		last = first
	}

	data := map[string]any{
		"title":    meta.Title,
		"subtitle": meta.Subtitle,
		"author":   meta.Author,
		"banner":   map[string]any{"url": meta.Banner},
		"content":  sections(root, src),
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fileDoc{}, err
	}

	d := fileDoc{
		doc: Document{
			ID:                   uid,
			UID:                  uid,
			Type:                 docType,
			Tags:                 meta.Tags,
			FirstPublicationDate: first,
			LastPublicationDate:  last,
			Data:                 raw,
		},
		data:  data,
		draft: meta.Draft,
	}
	if first != nil {
		if t, err := time.Parse(DateLayout, *first); err == nil {
			d.first = t
		}
	}
	return d, nil
}

// normalizeDate rewrites dates written as 2006-01-02 or RFC 3339 into
// DateLayout. Anything else is passed through untouched.
func normalizeDate(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{DateLayout, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			out := t.UTC().Format(DateLayout)
			return &out
		}
	}
	return &s
}

type bodyBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type contentSection struct {
	Heading string      `json:"heading"`
	Body    []bodyBlock `json:"body"`
}

func sections(root ast.Node, src []byte) []contentSection {
	out := []contentSection{}
	current := -1
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level <= 2 {
			out = append(out, contentSection{Heading: inlineText(n, src), Body: []bodyBlock{}})
			current = len(out) - 1
			continue
		}
		txt := blockText(n, src)
		if txt == "" {
			continue
		}
		if current < 0 {
			out = append(out, contentSection{Body: []bodyBlock{}})
			current = 0
		}
		out[current].Body = append(out[current].Body, bodyBlock{Type: "paragraph", Text: txt})
	}
	return out
}

// blockText flattens a block node into plain text. Code blocks keep their
// raw lines.
func blockText(n ast.Node, src []byte) string {
	switch n.Kind() {
	case ast.KindFencedCodeBlock, ast.KindCodeBlock:
		var b bytes.Buffer
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		return strings.TrimRight(b.String(), "\n")
	case ast.KindParagraph, ast.KindTextBlock, ast.KindHeading:
		return inlineText(n, src)
	}
	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t := blockText(c, src); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func matches(d fileDoc, preds []Predicate) (bool, error) {
	for _, p := range preds {
		if p.Op != "at" {
			return false, fmt.Errorf("cms: unsupported predicate %s", p)
		}
		var field string
		switch {
		case p.Path == "document.type":
			field = d.doc.Type
		case p.Path == "document.id":
			field = d.doc.ID
		case p.Path == "my."+d.doc.Type+".uid":
			field = d.doc.UID
		case strings.HasPrefix(p.Path, "my."):
			// uid predicate for another type, or an unknown field
			return false, nil
		default:
			return false, fmt.Errorf("cms: unsupported predicate path %q", p.Path)
		}
		if field != p.Value {
			return false, nil
		}
	}
	return true, nil
}

func parseOrdering(o string) (desc bool, err error) {
	o = strings.TrimSpace(strings.Trim(strings.TrimSpace(o), "[]"))
	switch o {
	case "", "document.first_publication_date desc":
		return true, nil
	case "document.first_publication_date":
		return false, nil
	}
	return false, fmt.Errorf("cms: unsupported ordering %q", o)
}

// project keeps only the data fields named in fetch ("<type>.<field>").
func project(d fileDoc, fetch []string) Document {
	if len(fetch) == 0 {
		return d.doc
	}
	keep := make(map[string]any, len(fetch))
	for _, f := range fetch {
		t, field, ok := strings.Cut(f, ".")
		if !ok || t != d.doc.Type {
			continue
		}
		if v, ok := d.data[field]; ok {
			keep[field] = v
		}
	}
	out := d.doc
	raw, err := json.Marshal(keep)
	if err == nil {
		out.Data = raw
	}
	return out
}
