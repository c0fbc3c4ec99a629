// Package snapshottest asserts images against recorded references from Go tests.
//
//	func TestContainer(t *testing.T) {
//		snapshottest.Assert(t, render(), "safe_area_insets_singleline--iPSE3")
//	}
//
// References live in a snapshots directory next to the test file. Run the tests with
// SNAPSHOT_RECORD=true once to record them; recording always fails the test.
package snapshottest

import (
	"context"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	diffimage "snapshot-matcher/internal/diff/image"
	"snapshot-matcher/internal/env"
	"snapshot-matcher/internal/snapshot"
	"snapshot-matcher/internal/storage"
	"testing"
)

type config struct {
	directory string
	scratch   string
	record    bool
	tolerance diffimage.Tolerance
	logger    *slog.Logger
}

type Option func(*config)

// WithDirectory stores references in directory instead of next to the test file.
func WithDirectory(directory string) Option {
	return func(c *config) {
		c.directory = directory
	}
}

// WithScratchDirectory changes where mismatching snapshots are written for inspection.
func WithScratchDirectory(directory string) Option {
	return func(c *config) {
		c.scratch = directory
	}
}

func WithTolerance(t diffimage.Tolerance) Option {
	return func(c *config) {
		c.tolerance = t
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

func newConfig(opts []Option) *config {
	c := &config{
		scratch: os.TempDir(),
		record:  env.OrDefault("SNAPSHOT_RECORD", false),
		tolerance: diffimage.Tolerance{
			PerPixel: env.OrDefault("SNAPSHOT_PER_PIXEL_TOLERANCE", diffimage.DefaultTolerance.PerPixel),
			Overall:  env.OrDefault("SNAPSHOT_OVERALL_TOLERANCE", diffimage.DefaultTolerance.Overall),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Assert fails t unless snapshot matches the reference called name.
// With SNAPSHOT_RECORD=true it records instead.
func Assert(t testing.TB, snapshot image.Image, name string, opts ...Option) {
	t.Helper()

	c := newConfig(opts)
	run(t, c, c.record, snapshot, name, caller())
}

// Record stores snapshot as the reference called name and fails t.
func Record(t testing.TB, snapshot image.Image, name string, opts ...Option) {
	t.Helper()

	run(t, newConfig(opts), true, snapshot, name, caller())
}

func run(t testing.TB, c *config, record bool, img image.Image, name string, loc snapshot.Location) {
	t.Helper()

	ctx := context.Background()
	harness, err := c.harness(ctx)
	if err != nil {
		t.Fatalf("failed to set up snapshot harness: %v", err)
		return
	}

	if record {
		err = harness.Record(ctx, img, name, loc)
	} else {
		err = harness.Assert(ctx, img, name, loc)
	}
	if err != nil {
		t.Error(err)
	}
}

func (c *config) harness(ctx context.Context) (*snapshot.Harness, error) {
	references, err := storage.NewFileStorage(ctx, storage.FileConfig{})
	if err != nil {
		return nil, err
	}
	scratch, err := storage.NewFileStorage(ctx, storage.FileConfig{
		Directory: c.scratch,
	})
	if err != nil {
		return nil, err
	}

	opts := []snapshot.Option{
		snapshot.WithTolerance(c.tolerance),
		snapshot.WithLogger(c.logger),
	}
	if c.directory != "" {
		directory := c.directory
		opts = append(opts, snapshot.WithKeyFunc(func(loc snapshot.Location, name string) string {
			return filepath.Join(directory, name+".png")
		}))
	}

	return snapshot.NewHarness(references, scratch, opts...)
}

// caller reports the position of the Assert or Record call in the test file.
func caller() snapshot.Location {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return snapshot.Location{}
	}
	return snapshot.Location{File: file, Line: line}
}
