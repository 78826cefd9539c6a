package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Object identifies an uploaded blob.
type Object struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// Storage persists rendered artifacts and uploaded assets.
type Storage interface {
	// Upload stores the contents of r under key.
	Upload(ctx context.Context, r io.Reader, key string) (Object, error)
	// Open returns the blob stored under key. The caller must close it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

var ErrInvalidKey = errors.New("invalid storage key")

// LocalStorage implements Storage on the local filesystem.
type LocalStorage struct {
	BaseDir   string
	PublicURL string
}

// NewLocalStorage creates a new LocalStorage instance. When publicURL is
// empty, object URLs are file:// URLs.
func NewLocalStorage(baseDir, publicURL string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir, PublicURL: strings.TrimSuffix(publicURL, "/")}
}

func (s *LocalStorage) Upload(ctx context.Context, r io.Reader, key string) (Object, error) {
	p, err := s.path(key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return Object{}, fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("failed to create file for %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, readerWithContext(ctx, r)); err != nil {
		tmp.Close()
		return Object{}, fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return Object{}, err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return Object{}, fmt.Errorf("failed to store %s: %w", key, err)
	}

	return Object{URL: s.URL(key), Key: cleanKey(key)}, nil
}

func (s *LocalStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// URL is the public address of key.
func (s *LocalStorage) URL(key string) string {
	key = cleanKey(key)
	if s.PublicURL != "" {
		return s.PublicURL + "/" + key
	}
	abs, err := filepath.Abs(filepath.Join(s.BaseDir, filepath.FromSlash(key)))
	if err != nil {
		abs = filepath.Join(s.BaseDir, filepath.FromSlash(key))
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

func (s *LocalStorage) path(key string) (string, error) {
	k := cleanKey(key)
	if k == "" || k == "." || strings.HasPrefix(k, "../") || k == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.BaseDir, filepath.FromSlash(k)), nil
}

func cleanKey(key string) string {
	return strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(key, "\\", "/")), "/")
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
