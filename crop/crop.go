// Package crop turns a source image into a centred square PNG without any
// resampling.
package crop

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrEmptyImage = errors.New("image has no pixels")

type Options struct {
	Compression png.CompressionLevel
}

func DefaultOptions() Options {
	return Options{Compression: png.DefaultCompression}
}

// CenterSquare returns the largest square inside bounds, centred, with the
// offset rounded down on odd remainders.
func CenterSquare(bounds image.Rectangle) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	size := min(w, h)
	x := bounds.Min.X + (w-size)/2
	y := bounds.Min.Y + (h-size)/2
	return image.Rect(x, y, x+size, y+size)
}

// SquareImage copies the centred square of src onto a new non-premultiplied
// canvas anchored at the origin. NRGBA sources are copied byte for byte;
// other colour models go through a single Src conversion into NRGBA.
func SquareImage(src image.Image) *image.NRGBA {
	sr := CenterSquare(src.Bounds())
	dst := image.NewNRGBA(image.Rect(0, 0, sr.Dx(), sr.Dy()))

	if n, ok := src.(*image.NRGBA); ok {
		for y := 0; y < sr.Dy(); y++ {
			from := n.PixOffset(sr.Min.X, sr.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+4*sr.Dx()], n.Pix[from:from+4*sr.Dx()])
		}
		return dst
	}

	draw.Draw(dst, dst.Bounds(), src, sr.Min, draw.Src)
	return dst
}

// Square decodes data, crops it to its centred square and returns the PNG
// encoding of the result.
func Square(data []byte, opts Options) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error decoding image: %w", err)
	}
	if src.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: opts.Compression}
	if err := enc.Encode(&buf, SquareImage(src)); err != nil {
		return nil, fmt.Errorf("error encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}
