// Package local implements the local filesystem storage backend for the
// plugin registry. This backend is intended for development and single-node
// deployments only; it does not support horizontal scaling. For production,
// use a cloud storage backend.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/plugin-registry/plugin-registry/internal/config"
	"github.com/plugin-registry/plugin-registry/internal/storage"
	"github.com/plugin-registry/plugin-registry/pkg/checksum"
)

func init() {
	storage.Register("local", func(cfg *config.Config) (storage.Backend, error) {
		return New(&cfg.Storage.Local, cfg.Server.BaseURL)
	})
}

// contentTypeSuffix names the sidecar file holding an object's content type.
// Object keys like {login}/{name}/{version}/icon carry no extension, so the
// type cannot be derived from the path.
const contentTypeSuffix = ".content-type"

// LocalBackend implements the Backend interface over a directory tree.
type LocalBackend struct {
	basePath string
	baseURL  string
}

// New creates a new local filesystem storage backend rooted at BasePath.
func New(cfg *config.LocalStorageConfig, serverBaseURL string) (*LocalBackend, error) {
	if err := os.MkdirAll(cfg.BasePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalBackend{
		basePath: cfg.BasePath,
		baseURL:  strings.TrimRight(serverBaseURL, "/"),
	}, nil
}

// Upload stores an object on the local filesystem, computing its checksum
// while writing.
func (s *LocalBackend) Upload(ctx context.Context, path string, reader io.Reader, size int64, contentType string) (*storage.UploadResult, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(path))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(file, hasher), reader)
	if err != nil {
		_ = os.Remove(fullPath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	if contentType != "" {
		if err := os.WriteFile(fullPath+contentTypeSuffix, []byte(contentType), 0640); err != nil {
			_ = os.Remove(fullPath)
			return nil, fmt.Errorf("failed to write content type: %w", err)
		}
	}

	return &storage.UploadResult{
		Path:     path,
		Size:     written,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Download retrieves an object from the local filesystem.
func (s *LocalBackend) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(path))

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object not found: %s", path)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete removes an object and prunes empty parent directories.
func (s *LocalBackend) Delete(ctx context.Context, path string) error {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(path))

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	_ = os.Remove(fullPath + contentTypeSuffix)

	dir := filepath.Dir(fullPath)
	for dir != s.basePath {
		if err := os.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}

	return nil
}

// GetURL returns a registry-served URL for the object. Local storage has no
// signing, so the TTL is ignored and the object is streamed through the API.
func (s *LocalBackend) GetURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	exists, err := s.Exists(ctx, path)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("object not found: %s", path)
	}

	return fmt.Sprintf("%s/api/v1/files/%s", s.baseURL, path), nil
}

// Exists reports whether an object is present.
func (s *LocalBackend) Exists(ctx context.Context, path string) (bool, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(path))

	_, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}

	return true, nil
}

// GetMetadata retrieves object metadata, recomputing the checksum from disk.
func (s *LocalBackend) GetMetadata(ctx context.Context, path string) (*storage.ObjectMetadata, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(path))

	stat, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object not found: %s", path)
		}
		return nil, fmt.Errorf("failed to get file metadata: %w", err)
	}

	sum, err := checksum.File(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate checksum: %w", err)
	}

	contentType := ""
	if raw, err := os.ReadFile(fullPath + contentTypeSuffix); err == nil {
		contentType = string(raw)
	}

	return &storage.ObjectMetadata{
		Path:         path,
		Size:         stat.Size(),
		ContentType:  contentType,
		Checksum:     sum,
		LastModified: stat.ModTime(),
	}, nil
}
