package image

import (
	"errors"
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/xerrors"
)

const bytesPerPixel = 4

var RasterizationError = errors.New("rasterization failed")

// FromBuffer wraps a raw premultiplied RGBA buffer produced by an external image source.
func FromBuffer(width int, height int, stride int, pix []byte) (*image.RGBA, error) {
	if err := checkLayout(width, height, stride); err != nil {
		return nil, err
	}
	if len(pix) < stride*height {
		return nil, xerrors.Errorf("buffer of %d bytes is shorter than %d rows of %d bytes: %w", len(pix), height, stride, RasterizationError)
	}

	return &image.RGBA{
		Pix:    pix[:stride*height],
		Stride: stride,
		Rect:   image.Rect(0, 0, width, height),
	}, nil
}

// SourceStride reports the bytes per row the image occupies in its own buffer.
// Images that are not stored as 4 bytes per pixel report the packed canonical stride.
func SourceStride(img image.Image) int {
	switch i := img.(type) {
	case *image.RGBA:
		return i.Stride
	case *image.NRGBA:
		return i.Stride
	default:
		return img.Bounds().Dx() * bytesPerPixel
	}
}

// Rasterize renders img at the origin of a freshly allocated premultiplied RGBA buffer
// of exactly stride*height bytes. Bytes past width*4 in each row stay zero.
func Rasterize(img image.Image, stride int) (*image.RGBA, error) {
	if img == nil {
		return nil, xerrors.Errorf("no image to draw: %w", RasterizationError)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if err := checkLayout(width, height, stride); err != nil {
		return nil, err
	}

	dst := &image.RGBA{
		Pix:    make([]byte, stride*height),
		Stride: stride,
		Rect:   image.Rect(0, 0, width, height),
	}
	draw.Draw(dst, dst.Rect, img, bounds.Min, draw.Src)

	return dst, nil
}

func checkLayout(width int, height int, stride int) error {
	if width < 0 || height < 0 {
		return xerrors.Errorf("negative dimensions %dx%d: %w", width, height, RasterizationError)
	}
	if stride < width*bytesPerPixel {
		return xerrors.Errorf("stride %d cannot hold %d pixels: %w", stride, width, RasterizationError)
	}
	return nil
}
