package image

import (
	"errors"
	"math"

	"golang.org/x/xerrors"
)

var InvalidToleranceError = errors.New("invalid tolerance")

// Tolerance holds both thresholds as fractions in [0, 1].
//
// PerPixel is the allowed absolute difference of a single channel byte relative to 255.
// Overall is the share of compared bytes that may exceed PerPixel before two images
// are declared different.
type Tolerance struct {
	PerPixel float64
	Overall  float64
}

// DefaultTolerance absorbs the rounding noise of off-screen renderers without
// hiding real layout changes.
var DefaultTolerance = Tolerance{
	PerPixel: 0.004,
	Overall:  0.00001,
}

func NewTolerance(perPixel float64, overall float64) (Tolerance, error) {
	t := Tolerance{
		PerPixel: perPixel,
		Overall:  overall,
	}
	if err := t.Validate(); err != nil {
		return Tolerance{}, err
	}
	return t, nil
}

func (t Tolerance) Validate() error {
	if !isFraction(t.PerPixel) {
		return xerrors.Errorf("per pixel tolerance %v is not within [0, 1]: %w", t.PerPixel, InvalidToleranceError)
	}
	if !isFraction(t.Overall) {
		return xerrors.Errorf("overall tolerance %v is not within [0, 1]: %w", t.Overall, InvalidToleranceError)
	}
	return nil
}

// PixelDeltaLimit is the largest channel difference that still counts as equal.
func (t Tolerance) PixelDeltaLimit() int {
	return int(math.Floor(t.PerPixel * 255))
}

// MismatchBudget is the number of out-of-tolerance bytes allowed among total compared bytes.
func (t Tolerance) MismatchBudget(total int) int {
	return int(math.Floor(t.Overall * float64(total)))
}

func isFraction(f float64) bool {
	return !math.IsNaN(f) && f >= 0 && f <= 1
}
