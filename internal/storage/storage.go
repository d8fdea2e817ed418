// Package storage delivers translated artifacts to a local directory,
// a Cloud Storage bucket, or both.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Sink stores one named artifact and reports where it ended up.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// LocalSink writes artifacts into Dir, creating it as needed.
type LocalSink struct {
	Dir string
}

func NewLocalSink(dir string) *LocalSink {
	return &LocalSink{Dir: dir}
}

func (s *LocalSink) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// MultiSink puts each artifact into every sink in order and returns the
// last location, so a local copy is kept before uploading.
type MultiSink []Sink

func (m MultiSink) Put(ctx context.Context, name string, data []byte) (string, error) {
	var uri string
	for _, s := range m {
		u, err := s.Put(ctx, name, data)
		if err != nil {
			return "", err
		}
		uri = u
	}
	return uri, nil
}
