package logo

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"sync"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// IconSize is the edge of the square logos are shrunk to fit.
	IconSize = 48
	// PlaceholderSize is the edge of the generated placeholder.
	PlaceholderSize = 64
)

// PlaceholderColor fills the placeholder logo.
var PlaceholderColor = color.RGBA{R: 200, G: 200, B: 200, A: 255}

// Decode reads a PNG, JPEG, GIF, WebP or BMP image.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Thumbnail shrinks img to fit in a size x size box keeping its aspect
// ratio. Images that already fit are copied unscaled.
func Thumbnail(img image.Image, size int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > size || h > size {
		if w >= h {
			h = max(h*size/w, 1)
			w = size
		} else {
			w = max(w*size/h, 1)
			h = size
		}
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Normalize decodes data and returns it as a thumbnail PNG.
func Normalize(data []byte) ([]byte, error) {
	img, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return EncodePNG(Thumbnail(img, IconSize))
}

var placeholder = sync.OnceValue(func() []byte {
	img := image.NewRGBA(image.Rect(0, 0, PlaceholderSize, PlaceholderSize))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: PlaceholderColor}, image.Point{}, draw.Src)
	data, err := EncodePNG(img)
	if err != nil {
		panic(err)
	}
	return data
})

// Placeholder returns the gray PlaceholderSize square shown when no real
// logo is available. Callers shrink it to IconSize for display, as with
// Normalize.
func Placeholder() []byte {
	return placeholder()
}
