package snapshot

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"log/slog"
	"path/filepath"
	diffimage "snapshot-matcher/internal/diff/image"
	"snapshot-matcher/internal/storage"
	"strings"

	"golang.org/x/xerrors"
)

// Harness asserts rendered snapshots against recorded references.
// Every call is independent: a failure never affects the next assertion.
type Harness struct {
	references storage.Storage
	scratch    storage.Storage
	matcher    *diffimage.ToleranceMatcher
	differ     diffimage.Differ
	keyFunc    KeyFunc
	tolerance  diffimage.Tolerance
	diffImages bool
	logger     *slog.Logger
}

type Option func(*Harness)

func WithTolerance(t diffimage.Tolerance) Option {
	return func(h *Harness) {
		h.tolerance = t
	}
}

func WithKeyFunc(f KeyFunc) Option {
	return func(h *Harness) {
		h.keyFunc = f
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// WithDiffImages controls whether a visual diff is written next to a mismatching snapshot.
func WithDiffImages(enabled bool) Option {
	return func(h *Harness) {
		h.diffImages = enabled
	}
}

// NewHarness reads references from references and writes mismatching snapshots to scratch.
func NewHarness(references storage.Storage, scratch storage.Storage, opts ...Option) (*Harness, error) {
	h := &Harness{
		references: references,
		scratch:    scratch,
		keyFunc:    SiblingKey,
		tolerance:  diffimage.DefaultTolerance,
		diffImages: true,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}

	matcher, err := diffimage.NewToleranceMatcher(h.tolerance)
	if err != nil {
		return nil, xerrors.Errorf("failed to create matcher: %w", err)
	}
	h.matcher = matcher
	h.differ = diffimage.NewPixelDiff(h.tolerance)

	return h, nil
}

func (h *Harness) Assert(ctx context.Context, snapshot image.Image, name string, loc Location) error {
	data, err := encode(snapshot)
	if err != nil {
		return &Failure{Reason: EncodingFailure, Name: name, Location: loc, Err: err}
	}
	return h.AssertData(ctx, data, name, loc)
}

// AssertData asserts an already encoded snapshot, so byte identical captures skip decoding.
func (h *Harness) AssertData(ctx context.Context, data []byte, name string, loc Location) error {
	key := h.keyFunc(loc, name)
	reference := h.references.URL(key)

	stored, err := h.references.Get(ctx, key)
	if errors.Is(err, storage.NotFoundError) {
		return &Failure{Reason: MissingReference, Name: name, Location: loc, ReferencePath: reference, Err: err}
	}
	if err != nil {
		return &Failure{Reason: StorageFailure, Name: name, Location: loc, ReferencePath: reference, Err: err}
	}

	match, err := h.matcher.MatchEncoded(stored, data)
	if errors.Is(err, diffimage.RasterizationError) {
		return &Failure{Reason: RasterizationFailure, Name: name, Location: loc, ReferencePath: reference, Err: err}
	}
	if err != nil {
		return &Failure{Reason: DecodingFailure, Name: name, Location: loc, ReferencePath: reference, Err: err}
	}
	if match {
		h.logger.DebugContext(ctx, "snapshot matches", "name", name, "reference", reference)
		return nil
	}

	failure := &Failure{
		Reason:        ToleranceMismatch,
		Name:          name,
		Location:      loc,
		ReferencePath: reference,
	}

	base := filepath.Base(key)
	if path, err := h.scratch.Put(ctx, base, data); err != nil {
		h.logger.WarnContext(ctx, "failed to write new snapshot", "name", name, "error", err)
	} else {
		failure.NewPath = path
	}

	if h.diffImages {
		path, amount, err := h.writeDiff(ctx, stored, data, strings.TrimSuffix(base, filepath.Ext(base))+".diff.png")
		if err != nil {
			h.logger.WarnContext(ctx, "failed to write diff image", "name", name, "error", err)
		} else {
			failure.DiffPath = path
			failure.DiffAmount = amount
		}
	}

	h.logger.InfoContext(ctx, "snapshot mismatch", "name", name, "reference", reference, "new", failure.NewPath, "diff", failure.DiffPath)
	return failure
}

// Record stores snapshot as the new reference. It always returns a Failure so a freshly
// recorded run can never pass by comparing a snapshot with itself.
func (h *Harness) Record(ctx context.Context, snapshot image.Image, name string, loc Location) error {
	data, err := encode(snapshot)
	if err != nil {
		return &Failure{Reason: EncodingFailure, Name: name, Location: loc, Err: err}
	}
	return h.RecordData(ctx, data, name, loc)
}

func (h *Harness) RecordData(ctx context.Context, data []byte, name string, loc Location) error {
	key := h.keyFunc(loc, name)

	url, err := h.references.Put(ctx, key, data)
	if err != nil {
		return &Failure{Reason: StorageFailure, Name: name, Location: loc, ReferencePath: h.references.URL(key), Err: err}
	}

	h.logger.InfoContext(ctx, "recorded snapshot", "name", name, "reference", url)
	return &Failure{Reason: RecordSucceeded, Name: name, Location: loc, ReferencePath: url}
}

func (h *Harness) writeDiff(ctx context.Context, stored []byte, data []byte, key string) (string, float64, error) {
	storedImage, _, err := diffimage.Decode(stored)
	if err != nil {
		return "", 0, err
	}
	newImage, _, err := diffimage.Decode(data)
	if err != nil {
		return "", 0, err
	}

	result := h.differ.Calculate(storedImage, newImage)
	diff, err := encode(result.Image)
	if err != nil {
		return "", 0, err
	}
	path, err := h.scratch.Put(ctx, key, diff)
	if err != nil {
		return "", 0, err
	}
	return path, result.DiffAmount, nil
}

func encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, xerrors.New("no snapshot image")
	}

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		return nil, xerrors.Errorf("failed to encode png: %w", err)
	}
	return buffer.Bytes(), nil
}
