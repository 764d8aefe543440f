package spacetraveling

import (
	"context"
	"fmt"
	"os"

	"github.com/eringen/spacetraveling/cms"
)

// Source is the content repository the site renders from. cms.Client talks
// to a hosted repository; cms.FileSource reads markdown from disk.
type Source interface {
	Query(ctx context.Context, preds []cms.Predicate, opts cms.QueryOptions) (*cms.Response, error)
	GetByUID(ctx context.Context, docType, uid string, opts cms.QueryOptions) (*cms.Document, error)
	FetchPage(ctx context.Context, cursor string) (*cms.Response, error)
	PreviewRef(ctx context.Context, token string) (string, error)
}

var (
	_ Source = (*cms.Client)(nil)
	_ Source = (*cms.FileSource)(nil)
)

// newSource picks the hosted repository when an endpoint is configured and
// falls back to the content directory otherwise.
func newSource(cfg SiteConfig) (Source, error) {
	if cfg.CMSEndpoint != "" {
		return cms.NewClient(cfg.CMSEndpoint, cfg.CMSAccessToken)
	}
	if info, err := os.Stat(cfg.ContentDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("content dir %q not found and no CMS endpoint configured", cfg.ContentDir)
	}
	return cms.NewFileSource(cfg.ContentDir), nil
}
