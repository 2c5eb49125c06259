// Package imaging holds the pixel-level helpers shared by the liveness
// scorer and the streaming preview: decoding, face crops, grayscale
// conversion and scaling.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

// Decode parses snapshot bytes into an image. JPEG, PNG and BMP are
// registered; anything else maps to ErrDecodeFailed.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, domain.ErrDecodeFailed
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.ErrDecodeFailed.WithError(err)
	}
	return img, nil
}

// CropPad extracts the rectangle expanded by pad pixels on every side,
// clamped to the image bounds.
func CropPad(img image.Image, r image.Rectangle, pad int) image.Image {
	bounds := img.Bounds()
	r = image.Rect(r.Min.X-pad, r.Min.Y-pad, r.Max.X+pad, r.Max.Y+pad).Intersect(bounds)
	if r.Empty() {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}

	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Copy(out, image.Point{}, img, r, draw.Src, nil)
	return out
}

// Grayscale converts any image to 8-bit grayscale.
func Grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Copy(gray, image.Point{}, img, bounds, draw.Src, nil)
	return gray
}

// Resize scales an image to exactly width x height using CatmullRom
// interpolation.
func Resize(img image.Image, width, height int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(out, out.Bounds(), img, img.Bounds(), draw.Over, nil)
	return out
}

// ResizeGray scales a grayscale image to exactly width x height.
func ResizeGray(img *image.Gray, width, height int) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(out, out.Bounds(), img, img.Bounds(), draw.Src, nil)
	return out
}

// EncodeJPEG re-encodes an image as JPEG at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
