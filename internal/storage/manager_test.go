// manager_test.go - Tests for the staging store
package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *LocalStore {
	store, err := NewLocalStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates upload directory", func(t *testing.T) {
		uploadDir := filepath.Join(t.TempDir(), "uploads")

		store, err := NewLocalStore(uploadDir, 0)
		require.NoError(t, err)
		require.NotNil(t, store)

		if _, err := os.Stat(uploadDir); os.IsNotExist(err) {
			t.Error("Expected upload directory to be created")
		}
	})
}

func TestLocalStore_Save(t *testing.T) {
	t.Run("saves file from reader", func(t *testing.T) {
		store := createTestStore(t)

		content := "\x89PNG fake image"
		info, err := store.Save("cat.png", "image/png", strings.NewReader(content))
		require.NoError(t, err)

		assert.NotEmpty(t, info.ID)
		assert.Equal(t, "cat.png", info.Name)
		assert.Equal(t, "image/png", info.ContentType)
		assert.Equal(t, int64(len(content)), info.Size)
		assert.Equal(t, "staged", info.Status)

		data, err := os.ReadFile(filepath.Join(store.uploadDir, info.ID))
		require.NoError(t, err)
		assert.Equal(t, content, string(data))
	})

	t.Run("saves empty file", func(t *testing.T) {
		store := createTestStore(t)

		info, err := store.Save("empty.png", "image/png", strings.NewReader(""))
		require.NoError(t, err)
		assert.Equal(t, int64(0), info.Size)
	})

	t.Run("rejects file over size limit", func(t *testing.T) {
		store, err := NewLocalStore(t.TempDir(), 4)
		require.NoError(t, err)

		_, err = store.Save("big.png", "image/png", strings.NewReader("12345"))
		assert.ErrorIs(t, err, ErrTooLarge)

		entries, _ := os.ReadDir(store.uploadDir)
		assert.Empty(t, entries, "oversized file should not stay on disk")
	})

	t.Run("accepts file at size limit", func(t *testing.T) {
		store, err := NewLocalStore(t.TempDir(), 4)
		require.NoError(t, err)

		info, err := store.Save("ok.png", "image/png", strings.NewReader("1234"))
		require.NoError(t, err)
		assert.Equal(t, int64(4), info.Size)
	})
}

func TestLocalStore_Open(t *testing.T) {
	store := createTestStore(t)

	info, err := store.Save("dog.jpg", "image/jpeg", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)

	rc, err := store.Open(info.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	_, err = store.Open("non-existent-id")
	assert.Error(t, err)
}

func TestLocalStore_Delete(t *testing.T) {
	store := createTestStore(t)

	info, err := store.Save("x.png", "image/png", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(info.ID))

	_, err = os.Stat(filepath.Join(store.uploadDir, info.ID))
	assert.True(t, os.IsNotExist(err))
	assert.Error(t, store.Delete(info.ID))

	_, err = store.Open(info.ID)
	assert.Error(t, err, "a deleted file can no longer be opened")
}

func TestLocalStore_DeleteAll(t *testing.T) {
	store := createTestStore(t)

	a, _ := store.Save("a.png", "image/png", strings.NewReader("a"))
	b, _ := store.Save("b.png", "image/png", strings.NewReader("b"))

	err := store.DeleteAll([]string{a.ID, "missing-1", b.ID, "missing-2"})
	require.Error(t, err)

	merr, ok := err.(*multierror.Error)
	require.True(t, ok, "expected *multierror.Error, got %T", err)
	assert.Len(t, merr.Errors, 2)

	assert.Empty(t, store.files)
	_, err = os.Stat(filepath.Join(store.uploadDir, a.ID))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.DeleteAll(nil))
}
