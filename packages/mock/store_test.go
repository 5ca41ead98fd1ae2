package mock

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveAndRemove(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	f, err := store.Save("images", "Photo.JPG", "image/jpeg", strings.NewReader("test"), 100)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(f.Filename, "images-"))
	assert.True(t, strings.HasSuffix(f.Filename, ".jpg"))
	assert.Equal(t, int64(4), f.Size)
	assert.True(t, store.Exists(f.Path))
	assert.Equal(t, 1, store.Count())

	require.NoError(t, store.Remove(f.Path))
	assert.False(t, store.Exists(f.Path))
	// already gone
	assert.NoError(t, store.Remove(f.Path))
}

func TestStore_UniqueNames(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	a, err := store.Save("images", "a.jpg", "image/jpeg", strings.NewReader("x"), 10)
	require.NoError(t, err)
	b, err := store.Save("images", "a.jpg", "image/jpeg", strings.NewReader("x"), 10)
	require.NoError(t, err)
	assert.NotEqual(t, a.Path, b.Path)
}

func TestStore_SaveTooLarge(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("images", "a.jpg", "image/jpeg", strings.NewReader("toolong"), 3)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, 0, store.Count())
}

func TestStore_RemoveOutsideDir(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	outside := filepath.Join(t.TempDir(), "x.jpg")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0644))

	err = store.Remove(outside)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal")
	assert.FileExists(t, outside)

	err = store.Remove(filepath.Join(store.Dir(), "..", "x.jpg"))
	assert.Error(t, err)
}
