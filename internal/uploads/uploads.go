// Package uploads stores image files handed to the service and hands them
// to the processing machine as FileHandles.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vrsandeep/oilspill-go/internal/processing"
	"github.com/vrsandeep/oilspill-go/internal/util"
)

var (
	ErrUnsupportedType = errors.New("only .tif and .tiff files are accepted")
	ErrTooLarge        = errors.New("file exceeds the maximum upload size")
	ErrEmpty           = errors.New("file is empty")
)

// IsSupported reports whether name has an accepted image extension. This
// is an affordance for the user, not a security boundary.
func IsSupported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tif", ".tiff":
		return true
	}
	return false
}

// Manager owns the upload directory.
type Manager struct {
	dir      string
	maxBytes int64
	now      func() time.Time
}

// NewManager prepares dir and returns a Manager that writes into it.
// maxBytes <= 0 disables the size limit.
func NewManager(dir string, maxBytes int64) (*Manager, error) {
	if err := util.EnsureWritableDir(dir); err != nil {
		return nil, fmt.Errorf("upload directory %s: %w", dir, err)
	}
	return &Manager{dir: dir, maxBytes: maxBytes, now: time.Now}, nil
}

// Dir returns the upload directory.
func (m *Manager) Dir() string { return m.dir }

// Save copies r into the upload directory and returns a handle for it.
// Partially written files are removed on error.
func (m *Manager) Save(name, contentType string, r io.Reader) (*processing.FileHandle, error) {
	if !IsSupported(name) {
		return nil, ErrUnsupportedType
	}

	id := uuid.NewString()
	safeName := util.SanitizeFileName(name)
	path := filepath.Join(m.dir, id+"_"+safeName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}

	src := r
	if m.maxBytes > 0 {
		// One extra byte tells an exact-size file apart from an oversized one.
		src = io.LimitReader(r, m.maxBytes+1)
	}
	size, err := io.Copy(f, src)
	closeErr := f.Close()
	switch {
	case err != nil:
		os.Remove(path)
		return nil, fmt.Errorf("failed to write upload: %w", err)
	case closeErr != nil:
		os.Remove(path)
		return nil, fmt.Errorf("failed to write upload: %w", closeErr)
	case m.maxBytes > 0 && size > m.maxBytes:
		os.Remove(path)
		return nil, ErrTooLarge
	case size == 0:
		os.Remove(path)
		return nil, ErrEmpty
	}

	if contentType == "" || contentType == "application/octet-stream" {
		contentType = "image/tiff"
	}
	return &processing.FileHandle{
		ID:          id,
		Name:        safeName,
		Size:        size,
		ContentType: contentType,
		Path:        path,
		UploadedAt:  m.now(),
	}, nil
}

// Import moves an existing file into the upload directory. It is used for
// files dropped into the inbox.
func (m *Manager) Import(srcPath string) (*processing.FileHandle, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", srcPath, err)
	}
	handle, err := m.Save(filepath.Base(srcPath), "image/tiff", f)
	f.Close()
	if err != nil {
		return nil, err
	}
	if err := os.Remove(srcPath); err != nil {
		log.Printf("Warning: could not remove imported file %s: %v", srcPath, err)
	}
	return handle, nil
}

// Release deletes the file behind handle. Handles that do not live in the
// upload directory are left alone.
func (m *Manager) Release(handle *processing.FileHandle) {
	if handle == nil || handle.Path == "" || filepath.Dir(handle.Path) != filepath.Clean(m.dir) {
		return
	}
	if err := os.Remove(handle.Path); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not release upload %s: %v", handle.Path, err)
	}
}

// Prune removes files older than maxAge from the upload directory, except
// the file at keep. It returns how many files were removed.
func (m *Manager) Prune(keep string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read upload directory: %w", err)
	}
	cutoff := m.now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(m.dir, e.Name())
		if path == keep {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			log.Printf("Warning: could not prune %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// ReleaseSuperseded returns a machine listener that deletes the previous
// file whenever the current file is replaced.
func (m *Manager) ReleaseSuperseded() processing.Listener {
	return func(prev, next processing.State) {
		if prev.CurrentFile != nil && prev.CurrentFile != next.CurrentFile {
			m.Release(prev.CurrentFile)
		}
	}
}
