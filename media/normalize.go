package media

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

const (
	ThumbnailSize        = 300
	ThumbnailJpegQuality = 80

	AvatarSize        = 200
	AvatarJpegQuality = 85
)

// readOrientation returns the EXIF orientation (1-8) found in r, or 0.
func readOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 0
	}
	if o := readOrientationFrom(x); o >= 1 && o <= 8 {
		return o
	}
	return 0
}

// applyOrientation turns img upright according to an EXIF orientation value.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// decodeUpright decodes an encoded image and corrects its orientation. The
// blob's own orientation tag wins when it asks for a transform; otherwise
// the orientation of the container it was pulled from is used.
func decodeUpright(data []byte, containerOrientation int) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", b.Dx(), b.Dy())
	}

	orientation := readOrientation(bytes.NewReader(data))
	if orientation <= 1 {
		orientation = containerOrientation
	}
	return applyOrientation(img, orientation), nil
}

// coverJPEG scales img to fill a size x size square, crops the overflow
// from the center and encodes the result as JPEG.
func coverJPEG(img image.Image, size, quality int) ([]byte, error) {
	square := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, square, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// normalizeThumbnail is the single normalize step every strategy output
// goes through: upright, 300x300 cover crop, JPEG quality 80.
func normalizeThumbnail(data []byte, containerOrientation int) ([]byte, error) {
	img, err := decodeUpright(data, containerOrientation)
	if err != nil {
		return nil, err
	}
	return coverJPEG(img, ThumbnailSize, ThumbnailJpegQuality)
}
