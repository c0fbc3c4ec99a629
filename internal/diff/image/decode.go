package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var DecodeError = errors.New("failed to decode image")

// Decode reads any registered format: PNG, JPEG, GIF, BMP, TIFF or WebP.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", DecodeError, err)
	}
	return img, format, nil
}

// DecodeConfig reads only the dimensions and color model of the encoded image.
func DecodeConfig(data []byte) (image.Config, string, error) {
	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("%w: %w", DecodeError, err)
	}
	return config, format, nil
}
