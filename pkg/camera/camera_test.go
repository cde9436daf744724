package camera

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeKeepsDimensions(t *testing.T) {
	for _, size := range []image.Point{{1, 1}, {64, 48}, {320, 240}} {
		img, err := Decode(encodePNG(t, size.X, size.Y))
		require.NoError(t, err)
		assert.Equal(t, size.X, img.Bounds().Dx())
		assert.Equal(t, size.Y, img.Bounds().Dy())
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 40, 30)), nil))
	img, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())
}

func TestDecodeMalformed(t *testing.T) {
	truncated := encodePNG(t, 16, 16)
	truncated = truncated[:len(truncated)/2]

	for name, data := range map[string][]byte{
		"nil":       nil,
		"garbage":   []byte("definitely not an image"),
		"truncated": truncated,
		"jpeg-soi":  {0xff, 0xd8, 0xff, 0x00},
	} {
		_, err := Decode(data)
		assert.Truef(t, errors.Is(err, ErrDecode), "%s: got %v", name, err)
	}
}

func TestBoundsClamp(t *testing.T) {
	b := DefaultBounds
	assert.Equal(t, Position{X: 90, Y: 45}, b.Center())
	assert.Equal(t, Position{X: 0, Y: 90}, b.Clamp(Position{X: -5, Y: 400}))
	assert.Equal(t, Position{X: 180, Y: 0}, b.Clamp(Position{X: 181, Y: -1}))
	assert.Equal(t, Position{X: 12, Y: 34}, b.Clamp(Position{X: 12, Y: 34}))
}
