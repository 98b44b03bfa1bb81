package heatmap

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// LoadImage decodes a floor-plan image. PNG, JPEG, GIF, BMP, TIFF and WebP
// are supported.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", path, err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %s image %s is %dx%d", ErrDegenerateImage, format, path, b.Dx(), b.Dy())
	}
	return img, nil
}

// ImageSize returns the pixel dimensions of img
func ImageSize(img image.Image) (width, height int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}
