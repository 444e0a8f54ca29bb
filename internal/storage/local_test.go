package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalStore_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("writes file and returns public URL", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewLocalStore(dir, "/static/receipts/")
		assert.NoError(t, err)

		url, err := store.Upload(ctx, "user1/123_receipt.png", strings.NewReader("png bytes"))
		assert.NoError(t, err)
		assert.Equal(t, "/static/receipts/user1/123_receipt.png", url)

		content, err := os.ReadFile(filepath.Join(dir, "user1", "123_receipt.png"))
		assert.NoError(t, err)
		assert.Equal(t, "png bytes", string(content))
	})

	t.Run("path traversal is rejected", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewLocalStore(dir, "/static/receipts")
		assert.NoError(t, err)

		_, err = store.Upload(ctx, "../outside.png", strings.NewReader("x"))
		assert.Error(t, err)

		_, err = store.Upload(ctx, "user1/../../outside.png", strings.NewReader("x"))
		assert.Error(t, err)
	})

	t.Run("absolute path is rejected", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewLocalStore(dir, "/static/receipts")
		assert.NoError(t, err)

		_, err = store.Upload(ctx, "/etc/passwd", strings.NewReader("x"))
		assert.Error(t, err)
	})

	t.Run("store directory is created on demand", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "receipts")
		_, err := NewLocalStore(dir, "/static/receipts")
		assert.NoError(t, err)

		info, err := os.Stat(dir)
		assert.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}
