package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReceiptStore persists uploaded receipt images and returns a durable URL
// they can be fetched from.
type ReceiptStore interface {
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
}

// LocalStore writes receipts under a directory that the server exposes as
// static files.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating receipt store dir: %w", err)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Upload writes the reader's contents under name and returns the public URL.
// Name may contain forward slashes; path traversal outside the store
// directory is rejected.
func (s *LocalStore) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid receipt path %q", name)
	}

	dest := filepath.Join(s.dir, clean)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("creating receipt dir: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating receipt file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("writing receipt file: %w", err)
	}

	return s.baseURL + "/" + filepath.ToSlash(clean), nil
}
