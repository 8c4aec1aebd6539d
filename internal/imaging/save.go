package imaging

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// DefaultJPEGQuality is the quality used for aligned outputs.
const DefaultJPEGQuality = 90

// SaveJPEG writes img to path as JPEG, creating parent directories.
// A quality outside 1..100 falls back to DefaultJPEGQuality.
func SaveJPEG(img image.Image, path string, quality int) error {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// Save writes img to path in the format implied by its extension.
func Save(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(DefaultJPEGQuality)); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
