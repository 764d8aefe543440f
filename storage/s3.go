// Package storage publishes an exported site to S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds configuration for the target bucket.
// Works with AWS S3, MinIO, Cloudflare R2 and other S3-compatible services.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Endpoint  string `mapstructure:"endpoint"` // Optional: for S3-compatible services
	Prefix    string `mapstructure:"prefix"`   // Optional key prefix, e.g. "blog/"
}

// ObjectPutter is the subset of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads files from a local directory to a bucket.
type Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
}

// NewS3Publisher creates a Publisher from cfg.
func NewS3Publisher(ctx context.Context, cfg S3Config) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: bucket is required")
	}
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load AWS config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO and some S3-compatible services
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}
	return NewPublisher(client, cfg.Bucket, cfg.Prefix), nil
}

// NewPublisher creates a Publisher over an existing client.
func NewPublisher(client ObjectPutter, bucket, prefix string) *Publisher {
	return &Publisher{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key for a path relative to the export directory.
func (p *Publisher) Key(rel string) string {
	return path.Join(p.prefix, filepath.ToSlash(rel))
}

// Publish uploads each file (relative to dir) with its content type.
// HTML, XML and text are marked for revalidation; other assets are
// cached for a day.
func (p *Publisher) Publish(ctx context.Context, dir string, files []string) error {
	for _, rel := range files {
		if err := p.put(ctx, dir, rel); err != nil {
			return err
		}
	}
	slog.Info("site published", "bucket", p.bucket, "prefix", p.prefix, "files", len(files))
	return nil
}

func (p *Publisher) put(ctx context.Context, dir, rel string) error {
	f, err := os.Open(filepath.Join(dir, rel))
	if err != nil {
		return fmt.Errorf("storage: open %s: %w", rel, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(p.bucket),
		Key:          aws.String(p.Key(rel)),
		Body:         f,
		ContentType:  aws.String(contentType(rel)),
		CacheControl: aws.String(cacheControl(rel)),
	})
	if err != nil {
		return fmt.Errorf("storage: upload %s: %w", rel, err)
	}
	slog.Debug("uploaded", "key", p.Key(rel))
	return nil
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func cacheControl(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".xml", ".txt":
		return "public, max-age=0, must-revalidate"
	}
	return "public, max-age=86400"
}
