package image

import "image"

type DiffResult struct {
	Image      image.Image
	DiffAmount float64
}

// Differ produces a human readable visualization of the differences between two images.
type Differ interface {
	Calculate(baseline image.Image, target image.Image) *DiffResult
}

// Matcher decides whether two images are the same under its configured tolerance.
type Matcher interface {
	Match(baseline image.Image, target image.Image) (bool, error)
	MatchEncoded(baseline []byte, target []byte) (bool, error)
}
