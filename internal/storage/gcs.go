package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const ttmlContentType = "application/ttml+xml"

// bucketClient is the slice of Cloud Storage the sink needs.
type bucketClient interface {
	// EnsureBucket returns nil once the bucket exists, creating it if needed.
	EnsureBucket(ctx context.Context) error
	Exists(ctx context.Context, key string) (bool, error)
	Write(ctx context.Context, key string, data []byte, contentType string) error
	Close() error
}

type GCSConfig struct {
	ProjectID string
	Bucket    string
	Prefix    string
	Region    string
}

// GCSSink uploads artifacts under gs://bucket/prefix/. The bucket is
// created on first use and a zero-byte "prefix/" placeholder is written
// so the folder shows up in the console.
type GCSSink struct {
	client bucketClient
	bucket string
	prefix string

	mu    sync.Mutex
	ready bool
}

func NewGCSSink(ctx context.Context, cfg GCSConfig) (*GCSSink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project ID is required")
	}

	client, err := gcs.NewClient(ctx, option.WithQuotaProject(cfg.ProjectID))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = "US"
	}
	return newGCSSink(&gcsBucket{
		client:    client,
		bucket:    client.Bucket(cfg.Bucket),
		projectID: cfg.ProjectID,
		region:    region,
	}, cfg.Bucket, cfg.Prefix), nil
}

func newGCSSink(client bucketClient, bucket, prefix string) *GCSSink {
	return &GCSSink{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *GCSSink) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *GCSSink) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := s.prepare(ctx); err != nil {
		return "", err
	}

	key := s.Key(name)
	if err := s.client.Write(ctx, key, data, ttmlContentType); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}

func (s *GCSSink) prepare(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	if err := s.client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to prepare bucket %s: %w", s.bucket, err)
	}
	if s.prefix != "" {
		placeholder := s.prefix + "/"
		exists, err := s.client.Exists(ctx, placeholder)
		if err != nil {
			return fmt.Errorf("failed to check prefix %s: %w", placeholder, err)
		}
		if !exists {
			if err := s.client.Write(ctx, placeholder, nil, ""); err != nil {
				return fmt.Errorf("failed to create prefix %s: %w", placeholder, err)
			}
		}
	}

	s.ready = true
	return nil
}

func (s *GCSSink) Close() error {
	return s.client.Close()
}

type gcsBucket struct {
	client    *gcs.Client
	bucket    *gcs.BucketHandle
	projectID string
	region    string
}

func (b *gcsBucket) EnsureBucket(ctx context.Context) error {
	_, err := b.bucket.Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gcs.ErrBucketNotExist) {
		return err
	}
	return b.bucket.Create(ctx, b.projectID, &gcs.BucketAttrs{
		Location:     b.region,
		StorageClass: "STANDARD",
	})
}

func (b *gcsBucket) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.bucket.Object(key).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gcs.ErrObjectNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (b *gcsBucket) Write(ctx context.Context, key string, data []byte, contentType string) error {
	w := b.bucket.Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (b *gcsBucket) Close() error {
	return b.client.Close()
}
