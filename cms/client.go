package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Client talks to the repository REST API. The endpoint is the API root,
// e.g. https://my-repo.cdn.prismic.io/api/v2.
type Client struct {
	endpoint    *url.URL
	accessToken string
	http        *http.Client
	refTTL      time.Duration

	mu        sync.Mutex
	masterRef string
	fetchedAt time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default logging http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRefTTL sets how long the master ref is reused before re-reading it.
func WithRefTTL(d time.Duration) ClientOption {
	return func(c *Client) {
		c.refTTL = d
	}
}

// NewClient creates a Client for the given API endpoint.
func NewClient(endpoint, accessToken string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("cms: parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("cms: endpoint %q must be an absolute URL", endpoint)
	}
	c := &Client{
		endpoint:    u,
		accessToken: accessToken,
		http:        NewHTTPClient(0),
		refTTL:      30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type apiInfo struct {
	Refs []struct {
		ID          string `json:"id"`
		Ref         string `json:"ref"`
		Label       string `json:"label"`
		IsMasterRef bool   `json:"isMasterRef"`
	} `json:"refs"`
}

// MasterRef returns the ref of the currently published content.
func (c *Client) MasterRef(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.masterRef != "" && time.Since(c.fetchedAt) < c.refTTL {
		ref := c.masterRef
		c.mu.Unlock()
		return ref, nil
	}
	c.mu.Unlock()

	u := *c.endpoint
	if c.accessToken != "" {
		q := url.Values{}
		q.Set("access_token", c.accessToken)
		u.RawQuery = q.Encode()
	}
	var info apiInfo
	if err := c.getJSON(ctx, u.String(), &info); err != nil {
		return "", fmt.Errorf("cms: read api info: %w", err)
	}
	for _, r := range info.Refs {
		if r.IsMasterRef {
			c.mu.Lock()
			c.masterRef = r.Ref
			c.fetchedAt = time.Now()
			c.mu.Unlock()
			return r.Ref, nil
		}
	}
	return "", fmt.Errorf("cms: api info has no master ref")
}

// Query runs a search against the repository.
func (c *Client) Query(ctx context.Context, preds []Predicate, opts QueryOptions) (*Response, error) {
	ref := opts.Ref
	if ref == "" {
		var err error
		ref, err = c.MasterRef(ctx)
		if err != nil {
			return nil, err
		}
	}
	q := url.Values{}
	q.Set("ref", ref)
	if len(preds) > 0 {
		q.Set("q", Query(preds))
	}
	if opts.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Orderings != "" {
		q.Set("orderings", opts.Orderings)
	}
	if len(opts.Fetch) > 0 {
		q.Set("fetch", strings.Join(opts.Fetch, ","))
	}
	if opts.After != "" {
		q.Set("after", opts.After)
	}
	if c.accessToken != "" {
		q.Set("access_token", c.accessToken)
	}
	u := c.endpoint.JoinPath("documents", "search")
	u.RawQuery = q.Encode()

	var out Response
	if err := c.getJSON(ctx, u.String(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetByUID returns the document of type docType with the given uid, or
// ErrNotFound.
func (c *Client) GetByUID(ctx context.Context, docType, uid string, opts QueryOptions) (*Document, error) {
	opts.PageSize = 1
	opts.Page = 0
	resp, err := c.Query(ctx, []Predicate{UID(docType, uid)}, opts)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, ErrNotFound
	}
	return &resp.Results[0], nil
}

// FetchPage follows a next_page cursor issued by this repository.
func (c *Client) FetchPage(ctx context.Context, cursor string) (*Response, error) {
	u, err := url.Parse(cursor)
	if err != nil {
		return nil, fmt.Errorf("cms: parse cursor: %w", err)
	}
	if u.Scheme != c.endpoint.Scheme || u.Host != c.endpoint.Host || !strings.HasPrefix(u.Path, c.endpoint.Path) {
		return nil, ErrForeignCursor
	}
	var out Response
	if err := c.getJSON(ctx, u.String(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PreviewRef checks that token is a ref the repository accepts and
// returns it.
func (c *Client) PreviewRef(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("cms: empty preview token")
	}
	if _, err := c.Query(ctx, nil, QueryOptions{Ref: token, PageSize: 1}); err != nil {
		return "", fmt.Errorf("cms: preview ref rejected: %w", err)
	}
	return token, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("cms: decode response: %w", err)
	}
	return nil
}
