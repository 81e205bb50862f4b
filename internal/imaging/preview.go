// Package imaging renders browser-friendly previews of uploaded imagery.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"os"
	"sync"

	"github.com/nfnt/resize"
	"github.com/vrsandeep/oilspill-go/internal/processing"
	_ "golang.org/x/image/tiff" // Register TIFF decoder
)

const (
	DefaultPreviewWidth uint = 1024
	MaxPreviewWidth     uint = 4096
	previewQuality           = 85
)

var (
	ErrNoFile = errors.New("no file loaded")
	// ErrDecode marks files that exist but are not readable images.
	ErrDecode = errors.New("failed to decode image")
)

type rendition struct {
	fileID string
	width  uint
	data   []byte
}

// PreviewCache holds the JPEG rendition of the current file. Only one
// rendition is kept; asking for another file or width replaces it.
type PreviewCache struct {
	mu      sync.Mutex
	current *rendition
}

func NewPreviewCache() *PreviewCache {
	return &PreviewCache{}
}

// Get returns a JPEG no wider than maxWidth for handle. A maxWidth of 0
// selects DefaultPreviewWidth. Images narrower than the limit keep their size.
func (c *PreviewCache) Get(handle *processing.FileHandle, maxWidth uint) ([]byte, error) {
	if handle == nil {
		return nil, ErrNoFile
	}
	if maxWidth == 0 {
		maxWidth = DefaultPreviewWidth
	}
	if maxWidth > MaxPreviewWidth {
		maxWidth = MaxPreviewWidth
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.fileID == handle.ID && c.current.width == maxWidth {
		return c.current.data, nil
	}

	data, err := renderFile(handle.Path, maxWidth)
	if err != nil {
		return nil, err
	}
	c.current = &rendition{fileID: handle.ID, width: maxWidth, data: data}
	return data, nil
}

// Release drops the cached rendition.
func (c *PreviewCache) Release() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// Cached reports whether a rendition for fileID is held.
func (c *PreviewCache) Cached(fileID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && c.current.fileID == fileID
}

// Listener returns a machine listener that releases the rendition when the
// current file changes.
func (c *PreviewCache) Listener() processing.Listener {
	return func(prev, next processing.State) {
		if prev.CurrentFile != next.CurrentFile {
			c.Release()
		}
	}
}

func renderFile(path string, maxWidth uint) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return Render(img, maxWidth)
}

// Render scales img down to maxWidth, preserving aspect ratio, and encodes
// it as JPEG.
func Render(img image.Image, maxWidth uint) ([]byte, error) {
	if uint(img.Bounds().Dx()) > maxWidth {
		img = resize.Resize(maxWidth, 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: previewQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
