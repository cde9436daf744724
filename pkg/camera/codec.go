package camera

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Decode turns an encoded frame from the wire into an image.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrDecode, "empty payload")
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(ErrDecode, "%d bytes: %v", len(data), err)
	}
	if img.Bounds().Empty() {
		return nil, errors.Wrapf(ErrDecode, "empty %s image", format)
	}
	return img, nil
}
