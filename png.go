package carto

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"os"
)

// pixelImage wraps packed pixels as an NRGBA image. The packing already matches
// NRGBA's byte order, so this is a plain little-endian copy.
func pixelImage(width, height int, pixels []Pixel) (*image.NRGBA, error) {
	if len(pixels) != width*height {
		return nil, fmt.Errorf("have %d pixels for a %dx%d image", len(pixels), width, height)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, p := range pixels {
		binary.LittleEndian.PutUint32(img.Pix[i*4:], uint32(p))
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode png %s: %w", path, err)
	}
	return f.Close()
}

// EncodePNG writes width*height packed pixels to path as a PNG.
func EncodePNG(path string, width, height int, pixels []Pixel) error {
	img, err := pixelImage(width, height, pixels)
	if err != nil {
		return fmt.Errorf("failed to encode png %s: %w", path, err)
	}
	return writePNG(path, img)
}
