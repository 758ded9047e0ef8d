package local

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/plugin-registry/plugin-registry/internal/config"
)

func newTestBackend(t *testing.T) *LocalBackend {
	t.Helper()
	backend, err := New(&config.LocalStorageConfig{BasePath: t.TempDir()}, "http://localhost:3000")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return backend
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()
	content := []byte("archive bytes")

	result, err := backend.Upload(ctx, "octocat/hello/0.1.0/volt.tar.gz", bytes.NewReader(content), int64(len(content)), "application/gzip")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if result.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", result.Size, len(content))
	}
	if result.Checksum == "" {
		t.Error("expected checksum")
	}

	reader, err := backend.Download(ctx, "octocat/hello/0.1.0/volt.tar.gz")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer reader.Close()

	got, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestGetMetadataContentType(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	_, err := backend.Upload(ctx, "octocat/hello/0.1.0/icon", strings.NewReader("png bytes"), 9, "image/png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	meta, err := backend.GetMetadata(ctx, "octocat/hello/0.1.0/icon")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta.ContentType != "image/png" {
		t.Errorf("ContentType = %s, want image/png", meta.ContentType)
	}
	if meta.Size != 9 {
		t.Errorf("Size = %d, want 9", meta.Size)
	}
}

func TestExistsAndDelete(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	backend.Upload(ctx, "octocat/hello/0.1.0/readme", strings.NewReader("# hello"), 7, "text/markdown")

	exists, err := backend.Exists(ctx, "octocat/hello/0.1.0/readme")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	if err := backend.Delete(ctx, "octocat/hello/0.1.0/readme"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	exists, _ = backend.Exists(ctx, "octocat/hello/0.1.0/readme")
	if exists {
		t.Error("expected object to be gone")
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	backend := newTestBackend(t)
	if err := backend.Delete(context.Background(), "nope/nope/0.0.0/volt.tar.gz"); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
}

func TestGetURLServedThroughAPI(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	backend.Upload(ctx, "octocat/hello/0.1.0/volt.tar.gz", strings.NewReader("x"), 1, "application/gzip")

	url, err := backend.GetURL(ctx, "octocat/hello/0.1.0/volt.tar.gz", time.Minute)
	if err != nil {
		t.Fatalf("GetURL: %v", err)
	}
	want := "http://localhost:3000/api/v1/files/octocat/hello/0.1.0/volt.tar.gz"
	if url != want {
		t.Errorf("url = %s, want %s", url, want)
	}
}

func TestGetURLMissingObject(t *testing.T) {
	backend := newTestBackend(t)
	if _, err := backend.GetURL(context.Background(), "missing", time.Minute); err == nil {
		t.Error("expected error for missing object")
	}
}
