package snapshottest_test

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	diffimage "snapshot-matcher/internal/diff/image"
	"snapshot-matcher/internal/snapshottest"
	"strings"
	"testing"
)

// recorder collects reported failures instead of failing the surrounding test.
type recorder struct {
	testing.TB
	errors []string
}

func (r *recorder) Helper() {}

func (r *recorder) Error(args ...any) {
	r.errors = append(r.errors, fmt.Sprint(args...))
}

func (r *recorder) Errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *recorder) Fatalf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func options(t *testing.T) (string, []snapshottest.Option) {
	directory := t.TempDir()
	return directory, []snapshottest.Option{
		snapshottest.WithDirectory(directory),
		snapshottest.WithScratchDirectory(t.TempDir()),
		snapshottest.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
}

func TestAssert(t *testing.T) {
	t.Setenv("SNAPSHOT_RECORD", "false")

	t.Run("MissingReference", func(t *testing.T) {
		_, opts := options(t)
		r := &recorder{TB: t}

		snapshottest.Assert(r, createTestImage(2, 2, color.White), "missing", opts...)

		if len(r.errors) != 1 || !strings.Contains(r.errors[0], "failed to load stored snapshot") {
			t.Errorf("Expected a missing reference failure, got %v", r.errors)
		}
	})

	t.Run("RecordThenAssert", func(t *testing.T) {
		directory, opts := options(t)
		r := &recorder{TB: t}

		snapshottest.Record(r, createTestImage(2, 2, color.White), "white", opts...)
		_, _, line, _ := runtime.Caller(0)

		if len(r.errors) != 1 || !strings.Contains(r.errors[0], "record succeeded") {
			t.Fatalf("Expected record to fail the test, got %v", r.errors)
		}
		if want := fmt.Sprintf("snapshottest_test.go:%d", line-1); !strings.Contains(r.errors[0], want) {
			t.Errorf("Expected failure to point at %s, got %s", want, r.errors[0])
		}
		if _, err := os.Stat(filepath.Join(directory, "white.png")); err != nil {
			t.Errorf("Expected reference to be written: %v", err)
		}

		r.errors = nil
		snapshottest.Assert(r, createTestImage(2, 2, color.White), "white", opts...)
		if len(r.errors) != 0 {
			t.Errorf("Expected no failures, got %v", r.errors)
		}
	})

	t.Run("Mismatch", func(t *testing.T) {
		_, opts := options(t)
		r := &recorder{TB: t}

		snapshottest.Record(r, createTestImage(2, 2, color.White), "flip", opts...)
		r.errors = nil

		snapshottest.Assert(r, createTestImage(2, 2, color.Black), "flip", opts...)
		if len(r.errors) != 1 || !strings.Contains(r.errors[0], "does not match") {
			t.Errorf("Expected a mismatch failure, got %v", r.errors)
		}
	})

	t.Run("RecordModeFromEnvironment", func(t *testing.T) {
		t.Setenv("SNAPSHOT_RECORD", "true")
		directory, opts := options(t)
		r := &recorder{TB: t}

		snapshottest.Assert(r, createTestImage(2, 2, color.White), "env", opts...)

		if len(r.errors) != 1 || !strings.Contains(r.errors[0], "record succeeded") {
			t.Errorf("Expected Assert to record, got %v", r.errors)
		}
		if _, err := os.Stat(filepath.Join(directory, "env.png")); err != nil {
			t.Errorf("Expected reference to be written: %v", err)
		}
	})

	t.Run("InvalidTolerance", func(t *testing.T) {
		_, opts := options(t)
		r := &recorder{TB: t}

		opts = append(opts, snapshottest.WithTolerance(diffimage.Tolerance{PerPixel: 3}))
		snapshottest.Assert(r, createTestImage(2, 2, color.White), "invalid", opts...)

		if len(r.errors) != 1 || !strings.Contains(r.errors[0], "failed to set up snapshot harness") {
			t.Errorf("Expected a setup failure, got %v", r.errors)
		}
	})
}
