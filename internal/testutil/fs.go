package testutil

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"
)

// TIFFBytes encodes a w x h gradient image as an uncompressed TIFF.
func TIFFBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, nil); err != nil {
		t.Fatalf("Failed to encode test tiff: %v", err)
	}
	return buf.Bytes()
}

// CreateTestTIFF writes a small TIFF named name into dir and returns its path.
func CreateTestTIFF(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	filePath := filepath.Join(dir, name)
	if err := os.WriteFile(filePath, TIFFBytes(t, w, h), 0644); err != nil {
		t.Fatalf("Failed to write test tiff: %v", err)
	}
	return filePath
}
