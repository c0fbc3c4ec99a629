package image

import (
	"image"
	"image/color"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/image/draw"
)

var (
	addedColor   = color.RGBA{R: 255, A: 255}
	removedColor = color.RGBA{B: 255, A: 255}
)

// PixelDiff paints every pixel that has a channel beyond the per pixel tolerance.
// Pixels that got brighter or only exist in the target are red, the others blue.
// Unchanged pixels are kept as a faded copy of the target so the changes stand out.
type PixelDiff struct {
	tolerance Tolerance
}

func NewPixelDiff(tolerance Tolerance) *PixelDiff {
	return &PixelDiff{
		tolerance,
	}
}

func (p *PixelDiff) Calculate(baseline image.Image, target image.Image) *DiffResult {
	baselineRGBA := p.normalize(baseline)
	targetRGBA := p.normalize(target)

	bounds := baselineRGBA.Rect.Union(targetRGBA.Rect)
	diff := image.NewRGBA(bounds)

	var changedPixelCount int64
	totalPixelCount := int64(bounds.Dx() * bounds.Dy())

	// Use GOMAXPROCS instead of runtime.NumCPU() to consider cgroup.
	// https://tip.golang.org/doc/go1.25#container-aware-gomaxprocs
	numWorkers := runtime.GOMAXPROCS(0)

	height := bounds.Dy()
	rowsPerWorker := height / numWorkers

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for i := 0; i < numWorkers; i++ {
		startY := bounds.Min.Y + i*rowsPerWorker
		endY := startY + rowsPerWorker
		if i == numWorkers-1 {
			endY = bounds.Max.Y
		}

		go func(startY int, endY int) {
			defer wg.Done()
			p.process(baselineRGBA, targetRGBA, diff, startY, endY, &changedPixelCount)
		}(startY, endY)
	}

	wg.Wait()

	diffAmount := 0.0
	if totalPixelCount > 0 {
		diffAmount = float64(changedPixelCount) / float64(totalPixelCount)
	}

	return &DiffResult{
		Image:      diff,
		DiffAmount: diffAmount,
	}
}

func (p *PixelDiff) process(baseline *image.RGBA, target *image.RGBA, diff *image.RGBA, startY int, endY int, changedCount *int64) {
	var localChanged int64
	limit := p.tolerance.PixelDeltaLimit()

	for y := startY; y < endY; y++ {
		for x := diff.Rect.Min.X; x < diff.Rect.Max.X; x++ {
			point := image.Point{X: x, Y: y}
			inBaseline := point.In(baseline.Rect)
			inTarget := point.In(target.Rect)

			switch {
			case inBaseline && inTarget:
				b := baseline.RGBAAt(x, y)
				t := target.RGBAAt(x, y)
				if channelMatches(b.R, t.R, limit) && channelMatches(b.G, t.G, limit) &&
					channelMatches(b.B, t.B, limit) && channelMatches(b.A, t.A, limit) {
					diff.SetRGBA(x, y, fade(t))
					continue
				}
				if brightness(t) > brightness(b) {
					diff.SetRGBA(x, y, addedColor)
				} else {
					diff.SetRGBA(x, y, removedColor)
				}
			case inTarget:
				diff.SetRGBA(x, y, addedColor)
			default:
				diff.SetRGBA(x, y, removedColor)
			}
			localChanged++
		}
	}

	atomic.AddInt64(changedCount, localChanged)
}

// normalize moves img to the origin in the canonical premultiplied layout.
func (p *PixelDiff) normalize(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Rect, img, bounds.Min, draw.Src)
	return rgba
}

func brightness(c color.RGBA) int {
	return int(c.R) + int(c.G) + int(c.B)
}

func fade(c color.RGBA) color.RGBA {
	return color.RGBA{
		R: 255 - (255-c.R)/4,
		G: 255 - (255-c.G)/4,
		B: 255 - (255-c.B)/4,
		A: 255,
	}
}
