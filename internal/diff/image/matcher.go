package image

import (
	"bytes"
	"image"

	"golang.org/x/xerrors"
)

// ToleranceMatcher compares images byte by byte after normalizing both to the same
// premultiplied RGBA layout. It keeps no state between calls and is safe for concurrent use.
type ToleranceMatcher struct {
	tolerance Tolerance
}

func NewToleranceMatcher(tolerance Tolerance) (*ToleranceMatcher, error) {
	if err := tolerance.Validate(); err != nil {
		return nil, err
	}
	return &ToleranceMatcher{
		tolerance: tolerance,
	}, nil
}

func (m *ToleranceMatcher) Tolerance() Tolerance {
	return m.tolerance
}

// MatchEncoded compares two encoded images. Identical encodings match without being decoded
// and images of different dimensions never match.
func (m *ToleranceMatcher) MatchEncoded(baseline []byte, target []byte) (bool, error) {
	if bytes.Equal(baseline, target) {
		return true, nil
	}

	baselineConfig, _, err := DecodeConfig(baseline)
	if err != nil {
		return false, xerrors.Errorf("failed to read baseline dimensions: %w", err)
	}
	targetConfig, _, err := DecodeConfig(target)
	if err != nil {
		return false, xerrors.Errorf("failed to read target dimensions: %w", err)
	}
	if baselineConfig.Width != targetConfig.Width || baselineConfig.Height != targetConfig.Height {
		return false, nil
	}

	baselineImage, _, err := Decode(baseline)
	if err != nil {
		return false, xerrors.Errorf("failed to decode baseline image: %w", err)
	}
	targetImage, _, err := Decode(target)
	if err != nil {
		return false, xerrors.Errorf("failed to decode target image: %w", err)
	}

	return m.Match(baselineImage, targetImage)
}

// Match compares two decoded images. A RasterizationError is returned instead of a result
// when either image cannot be normalized.
func (m *ToleranceMatcher) Match(baseline image.Image, target image.Image) (bool, error) {
	baselineBounds := baseline.Bounds()
	targetBounds := target.Bounds()
	if baselineBounds.Dx() != targetBounds.Dx() || baselineBounds.Dy() != targetBounds.Dy() {
		return false, nil
	}

	stride := min(SourceStride(baseline), SourceStride(target))

	baselineRaster, err := Rasterize(baseline, stride)
	if err != nil {
		return false, xerrors.Errorf("failed to rasterize baseline image: %w", err)
	}
	targetRaster, err := Rasterize(target, stride)
	if err != nil {
		return false, xerrors.Errorf("failed to rasterize target image: %w", err)
	}

	if bytes.Equal(baselineRaster.Pix, targetRaster.Pix) {
		return true, nil
	}

	return withinTolerance(baselineRaster.Pix, targetRaster.Pix, m.tolerance), nil
}

// withinTolerance stops scanning as soon as the mismatch budget is exceeded.
func withinTolerance(baseline []byte, target []byte, tolerance Tolerance) bool {
	if len(baseline) != len(target) {
		return false
	}

	limit := tolerance.PixelDeltaLimit()
	budget := tolerance.MismatchBudget(len(baseline))

	mismatches := 0
	for i := range baseline {
		if channelMatches(baseline[i], target[i], limit) {
			continue
		}
		mismatches++
		if mismatches > budget {
			return false
		}
	}

	return true
}

func channelMatches(l byte, r byte, limit int) bool {
	if l == r {
		return true
	}
	if limit == 0 {
		return false
	}

	delta := int(l) - int(r)
	return delta <= limit && delta >= -limit
}
