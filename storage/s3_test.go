package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type putCall struct {
	key, contentType, cacheControl, body string
}

type fakePutter struct {
	mu    sync.Mutex
	calls []putCall
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, putCall{
		key:          aws.ToString(in.Key),
		contentType:  aws.ToString(in.ContentType),
		cacheControl: aws.ToString(in.CacheControl),
		body:         string(body),
	})
	return &s3.PutObjectOutput{}, nil
}

func TestPublishUploadsWithContentTypes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "post", "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("home"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "post", "a", "index.html"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feed.xml"), []byte("<rss/>"), 0o644))

	fake := &fakePutter{}
	p := NewPublisher(fake, "bucket", "blog")
	err := p.Publish(context.Background(), dir, []string{"index.html", filepath.Join("post", "a", "index.html"), "feed.xml"})
	require.NoError(t, err)

	require.Len(t, fake.calls, 3)
	assert.Equal(t, "blog/index.html", fake.calls[0].key)
	assert.Equal(t, "text/html; charset=utf-8", fake.calls[0].contentType)
	assert.Equal(t, "public, max-age=0, must-revalidate", fake.calls[0].cacheControl)
	assert.Equal(t, "home", fake.calls[0].body)
	assert.Equal(t, "blog/post/a/index.html", fake.calls[1].key)
	assert.Equal(t, "blog/feed.xml", fake.calls[2].key)
}

func TestPublishMissingFile(t *testing.T) {
	p := NewPublisher(&fakePutter{}, "bucket", "")
	err := p.Publish(context.Background(), t.TempDir(), []string{"nope.html"})
	assert.Error(t, err)
}

func TestNewS3PublisherRequiresBucket(t *testing.T) {
	_, err := NewS3Publisher(context.Background(), S3Config{})
	assert.Error(t, err)
}
