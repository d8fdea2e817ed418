package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLocalSinkPut(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "translated_outputs_gemini")
	sink := NewLocalSink(dir)

	uri, err := sink.Put(context.Background(), "ep1_es_gemini.ttml", []byte("<tt/>"))
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if want := filepath.Join(dir, "ep1_es_gemini.ttml"); uri != want {
		t.Errorf("Put() = %q, want %q", uri, want)
	}
	data, err := os.ReadFile(uri)
	if err != nil || string(data) != "<tt/>" {
		t.Errorf("file content = %q, %v", data, err)
	}
}

func TestLocalSinkRejectsPaths(t *testing.T) {
	sink := NewLocalSink(t.TempDir())
	for _, name := range []string{"", "../escape.ttml", "sub/dir.ttml"} {
		if _, err := sink.Put(context.Background(), name, nil); err == nil {
			t.Errorf("Put(%q) should fail", name)
		}
	}
}

type fakeBucket struct {
	exists   map[string]bool
	writes   []string
	ensured  int
	failOn   string
	closed   bool
	ensureEr error
}

func (f *fakeBucket) EnsureBucket(ctx context.Context) error {
	f.ensured++
	return f.ensureEr
}

func (f *fakeBucket) Exists(ctx context.Context, key string) (bool, error) {
	return f.exists[key], nil
}

func (f *fakeBucket) Write(ctx context.Context, key string, data []byte, contentType string) error {
	if key == f.failOn {
		return errors.New("write failed")
	}
	if f.exists == nil {
		f.exists = map[string]bool{}
	}
	f.exists[key] = true
	f.writes = append(f.writes, key)
	return nil
}

func (f *fakeBucket) Close() error {
	f.closed = true
	return nil
}

func TestGCSSinkPut(t *testing.T) {
	bucket := &fakeBucket{}
	sink := newGCSSink(bucket, "demo-bucket", "/output/")

	ctx := context.Background()
	uri, err := sink.Put(ctx, "ep1_es_translateLLM.ttml", []byte("x"))
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if want := "gs://demo-bucket/output/ep1_es_translateLLM.ttml"; uri != want {
		t.Errorf("Put() = %q, want %q", uri, want)
	}

	if _, err := sink.Put(ctx, "ep1_fr_translateLLM.ttml", []byte("y")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	want := []string{"output/", "output/ep1_es_translateLLM.ttml", "output/ep1_fr_translateLLM.ttml"}
	if !reflect.DeepEqual(bucket.writes, want) {
		t.Errorf("writes = %q, want %q", bucket.writes, want)
	}
	if bucket.ensured != 1 {
		t.Errorf("EnsureBucket called %d times, want 1", bucket.ensured)
	}

	if err := sink.Close(); err != nil || !bucket.closed {
		t.Errorf("Close() = %v, closed = %v", err, bucket.closed)
	}
}

func TestGCSSinkKeepsExistingPlaceholder(t *testing.T) {
	bucket := &fakeBucket{exists: map[string]bool{"output/": true}}
	sink := newGCSSink(bucket, "b", "output")

	if _, err := sink.Put(context.Background(), "a.ttml", nil); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if want := []string{"output/a.ttml"}; !reflect.DeepEqual(bucket.writes, want) {
		t.Errorf("writes = %q, want %q", bucket.writes, want)
	}
}

func TestGCSSinkWithoutPrefix(t *testing.T) {
	bucket := &fakeBucket{}
	sink := newGCSSink(bucket, "b", "")

	uri, err := sink.Put(context.Background(), "a.ttml", nil)
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if uri != "gs://b/a.ttml" {
		t.Errorf("Put() = %q", uri)
	}
}

func TestGCSSinkBucketFailureRetries(t *testing.T) {
	bucket := &fakeBucket{ensureEr: errors.New("forbidden")}
	sink := newGCSSink(bucket, "b", "out")

	if _, err := sink.Put(context.Background(), "a.ttml", nil); err == nil {
		t.Fatal("expected error when the bucket cannot be prepared")
	}
	bucket.ensureEr = nil
	if _, err := sink.Put(context.Background(), "a.ttml", nil); err != nil {
		t.Fatalf("Put() after recovery error: %v", err)
	}
	if bucket.ensured != 2 {
		t.Errorf("EnsureBucket called %d times, want 2", bucket.ensured)
	}
}

func TestMultiSink(t *testing.T) {
	dir := t.TempDir()
	bucket := &fakeBucket{}
	sink := MultiSink{NewLocalSink(dir), newGCSSink(bucket, "b", "out")}

	uri, err := sink.Put(context.Background(), "a.ttml", []byte("data"))
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if uri != "gs://b/out/a.ttml" {
		t.Errorf("Put() = %q, want the upload URI", uri)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.ttml")); err != nil {
		t.Errorf("local copy missing: %v", err)
	}

	bucket.failOn = "out/b.ttml"
	if _, err := sink.Put(context.Background(), "b.ttml", nil); err == nil {
		t.Error("expected upload error to propagate")
	}
}
