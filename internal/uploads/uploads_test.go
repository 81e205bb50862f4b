package uploads

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/oilspill-go/internal/processing"
)

func newTestManager(t *testing.T, maxBytes int64) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "uploads"), maxBytes)
	require.NoError(t, err)
	return m
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("scene.tif"))
	assert.True(t, IsSupported("scene.TIFF"))
	assert.False(t, IsSupported("scene.png"))
	assert.False(t, IsSupported("tif"))
	assert.False(t, IsSupported(""))
}

func TestSave(t *testing.T) {
	t.Run("stores file and returns handle", func(t *testing.T) {
		m := newTestManager(t, 0)
		handle, err := m.Save("gulf scene.tif", "", strings.NewReader("II*\x00data"))
		require.NoError(t, err)

		assert.NotEmpty(t, handle.ID)
		assert.Equal(t, "gulf scene.tif", handle.Name)
		assert.Equal(t, int64(8), handle.Size)
		assert.Equal(t, "image/tiff", handle.ContentType)
		assert.Equal(t, m.Dir(), filepath.Dir(handle.Path))
		assert.False(t, handle.UploadedAt.IsZero())

		data, err := os.ReadFile(handle.Path)
		require.NoError(t, err)
		assert.Equal(t, "II*\x00data", string(data))
	})

	t.Run("keeps explicit content type", func(t *testing.T) {
		m := newTestManager(t, 0)
		handle, err := m.Save("a.tiff", "image/x-tiff", strings.NewReader("x"))
		require.NoError(t, err)
		assert.Equal(t, "image/x-tiff", handle.ContentType)
	})

	t.Run("rejects unsupported extension", func(t *testing.T) {
		m := newTestManager(t, 0)
		_, err := m.Save("photo.jpg", "image/jpeg", strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrUnsupportedType)
		assert.Equal(t, 0, countFiles(t, m.Dir()))
	})

	t.Run("rejects oversized file", func(t *testing.T) {
		m := newTestManager(t, 4)
		_, err := m.Save("big.tif", "", bytes.NewReader(make([]byte, 5)))
		assert.ErrorIs(t, err, ErrTooLarge)
		assert.Equal(t, 0, countFiles(t, m.Dir()))
	})

	t.Run("accepts file at the limit", func(t *testing.T) {
		m := newTestManager(t, 4)
		handle, err := m.Save("exact.tif", "", bytes.NewReader(make([]byte, 4)))
		require.NoError(t, err)
		assert.Equal(t, int64(4), handle.Size)
	})

	t.Run("rejects empty file", func(t *testing.T) {
		m := newTestManager(t, 0)
		_, err := m.Save("empty.tif", "", strings.NewReader(""))
		assert.ErrorIs(t, err, ErrEmpty)
		assert.Equal(t, 0, countFiles(t, m.Dir()))
	})

	t.Run("sanitizes traversal in name", func(t *testing.T) {
		m := newTestManager(t, 0)
		handle, err := m.Save("../../escape.tif", "", strings.NewReader("x"))
		require.NoError(t, err)
		assert.Equal(t, "escape.tif", handle.Name)
		assert.Equal(t, m.Dir(), filepath.Dir(handle.Path))
	})

	t.Run("same name twice yields distinct files", func(t *testing.T) {
		m := newTestManager(t, 0)
		a, err := m.Save("dup.tif", "", strings.NewReader("a"))
		require.NoError(t, err)
		b, err := m.Save("dup.tif", "", strings.NewReader("b"))
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
		assert.NotEqual(t, a.Path, b.Path)
	})
}

func TestImport(t *testing.T) {
	m := newTestManager(t, 0)
	src := filepath.Join(t.TempDir(), "dropped.tif")
	require.NoError(t, os.WriteFile(src, []byte("tiff"), 0644))

	handle, err := m.Import(src)
	require.NoError(t, err)
	assert.Equal(t, "dropped.tif", handle.Name)
	assert.NoFileExists(t, src)
	assert.FileExists(t, handle.Path)

	_, err = m.Import(filepath.Join(t.TempDir(), "missing.tif"))
	assert.Error(t, err)
}

func TestRelease(t *testing.T) {
	m := newTestManager(t, 0)
	handle, err := m.Save("a.tif", "", strings.NewReader("x"))
	require.NoError(t, err)

	m.Release(handle)
	assert.NoFileExists(t, handle.Path)

	// Releasing twice or releasing nil is harmless.
	m.Release(handle)
	m.Release(nil)

	outside := filepath.Join(t.TempDir(), "outside.tif")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0644))
	m.Release(&processing.FileHandle{Path: outside})
	assert.FileExists(t, outside)
}

func TestPrune(t *testing.T) {
	m := newTestManager(t, 0)
	old, err := m.Save("old.tif", "", strings.NewReader("x"))
	require.NoError(t, err)
	kept, err := m.Save("kept.tif", "", strings.NewReader("x"))
	require.NoError(t, err)
	fresh, err := m.Save("fresh.tif", "", strings.NewReader("x"))
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old.Path, past, past))
	require.NoError(t, os.Chtimes(kept.Path, past, past))

	removed, err := m.Prune(kept.Path, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, old.Path)
	assert.FileExists(t, kept.Path)
	assert.FileExists(t, fresh.Path)
}

func TestReleaseSuperseded(t *testing.T) {
	m := newTestManager(t, 0)
	first, err := m.Save("first.tif", "", strings.NewReader("x"))
	require.NoError(t, err)
	second, err := m.Save("second.tif", "", strings.NewReader("x"))
	require.NoError(t, err)

	listener := m.ReleaseSuperseded()
	prev := processing.InitialState()
	prev.CurrentFile = first
	next := prev
	next.CurrentFile = second

	// Unrelated transitions keep the file.
	listener(prev, prev)
	assert.FileExists(t, first.Path)

	listener(prev, next)
	assert.NoFileExists(t, first.Path)
	assert.FileExists(t, second.Path)
}
