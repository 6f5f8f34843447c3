// Package storage publishes avatar images. The local store serves files from
// disk through the API; the S3 store targets any S3-compatible host.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

type ObjectStore interface {
	// Put stores the object and returns its public URL.
	Put(ctx context.Context, key string, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}

type LocalStore struct {
	validator  *PathValidator
	publicPath string
}

// NewLocal stores objects under root and builds URLs below publicPath.
func NewLocal(root string, publicPath string) (*LocalStore, error) {
	validator, err := NewPathValidator(root)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(validator.RootAbs(), 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	return &LocalStore{
		validator:  validator,
		publicPath: "/" + strings.Trim(publicPath, "/"),
	}, nil
}

func (s *LocalStore) RootAbs() string {
	return s.validator.RootAbs()
}

func (s *LocalStore) PublicPath() string {
	return s.publicPath
}

// FileServer serves stored objects below PublicPath. Directory listings are
// not exposed.
func (s *LocalStore) FileServer() http.Handler {
	files := http.StripPrefix(s.publicPath, http.FileServer(http.Dir(s.RootAbs())))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	})
}

func (s *LocalStore) Put(ctx context.Context, key string, _ string, body io.Reader, _ int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	resolved, err := s.validator.ResolveKey(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", fmt.Errorf("prepare directory for %q: %w", key, err)
	}

	// Write to a temp file first so readers never see a partial image.
	tmp, err := os.CreateTemp(filepath.Dir(resolved), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %q: %w", key, err)
	}

	if err := os.Rename(tmp.Name(), resolved); err != nil {
		return "", fmt.Errorf("publish %q: %w", key, err)
	}

	rel, err := filepath.Rel(s.validator.RootAbs(), resolved)
	if err != nil {
		return "", fmt.Errorf("relative path for %q: %w", key, err)
	}

	return s.publicPath + "/" + filepath.ToSlash(rel), nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	resolved, err := s.validator.ResolveKey(key)
	if err != nil {
		return err
	}

	if err := os.Remove(resolved); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}
