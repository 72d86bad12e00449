package crop

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// patterned returns an image where every pixel encodes its own coordinates,
// so any blending or offset error shows up as a mismatch. A zero alpha makes
// the image opaque; otherwise every pixel uses that alpha.
func patterned(r image.Rectangle, alpha uint8) *image.NRGBA {
	img := image.NewNRGBA(r)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			a := alpha
			if a == 0 {
				a = 0xff
			}
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 13), B: uint8(x ^ y), A: a})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCenterSquare(t *testing.T) {
	testCases := []struct {
		name   string
		bounds image.Rectangle
		want   image.Rectangle
	}{
		{"square", image.Rect(0, 0, 4, 4), image.Rect(0, 0, 4, 4)},
		{"landscape_even", image.Rect(0, 0, 10, 4), image.Rect(3, 0, 7, 4)},
		{"landscape_odd", image.Rect(0, 0, 9, 4), image.Rect(2, 0, 6, 4)},
		{"portrait_odd", image.Rect(0, 0, 3, 8), image.Rect(0, 2, 3, 5)},
		{"offset_origin", image.Rect(5, 5, 15, 9), image.Rect(8, 5, 12, 9)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CenterSquare(tc.bounds))
		})
	}
}

func TestSquareIsExactSubRectangle(t *testing.T) {
	testCases := []struct {
		name   string
		bounds image.Rectangle
		alpha  uint8
	}{
		{"landscape", image.Rect(0, 0, 17, 10), 0},
		{"portrait", image.Rect(0, 0, 6, 11), 0},
		{"square", image.Rect(0, 0, 8, 8), 0},
		{"translucent", image.Rect(0, 0, 9, 5), 3},
		{"half_alpha", image.Rect(0, 0, 4, 7), 0x80},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src := patterned(tc.bounds, tc.alpha)
			out, err := Square(encodePNG(t, src), DefaultOptions())
			require.NoError(t, err)

			got, err := png.Decode(bytes.NewReader(out))
			require.NoError(t, err)

			r := tc.bounds
			size := min(r.Dx(), r.Dy())
			require.Equal(t, image.Rect(0, 0, size, size), got.Bounds())

			ox, oy := (r.Dx()-size)/2, (r.Dy()-size)/2
			for y := 0; y < size; y++ {
				for x := 0; x < size; x++ {
					want := src.NRGBAAt(ox+x, oy+y)
					have := color.NRGBAModel.Convert(got.At(x, y))
					require.Equalf(t, want, have, "pixel (%d,%d)", x, y)
				}
			}
		})
	}
}

func TestSquareImageTranslucentPixel(t *testing.T) {
	c := color.NRGBA{R: 200, G: 100, B: 37, A: 3}
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			src.SetNRGBA(x, y, c)
		}
	}

	out, err := Square(encodePNG(t, src), DefaultOptions())
	require.NoError(t, err)
	got, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	assert.Equal(t, c, color.NRGBAModel.Convert(got.At(1, 1)))
}

func TestSquareImageFromOtherModel(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 5, 3))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 11)
	}

	got := SquareImage(src)
	require.Equal(t, image.Rect(0, 0, 3, 3), got.Bounds())
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			g := src.GrayAt(x+1, y).Y
			assert.Equal(t, color.NRGBA{R: g, G: g, B: g, A: 0xff}, got.NRGBAAt(x, y))
		}
	}
}

func TestSquareIsDeterministic(t *testing.T) {
	data := encodePNG(t, patterned(image.Rect(0, 0, 12, 7), 0))

	first, err := Square(data, DefaultOptions())
	require.NoError(t, err)
	second, err := Square(data, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSquareRejectsGarbage(t *testing.T) {
	_, err := Square([]byte("not an image"), DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, image.ErrFormat)
}
