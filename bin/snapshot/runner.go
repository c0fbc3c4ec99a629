package main

import (
	"context"
	"errors"
	"log/slog"
	"snapshot-matcher/internal/capture"
	"snapshot-matcher/internal/report"
	"snapshot-matcher/internal/snapshot"
	"snapshot-matcher/internal/storage"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

const (
	outcomeMatch    = "match"
	outcomeMismatch = "mismatch"
	outcomeRecorded = "recorded"
	outcomeFailed   = "failed"
)

type Runner struct {
	Capturer    capture.Capturer
	References  storage.Storage
	Scratch     storage.Storage
	KeyFunc     snapshot.KeyFunc
	Record      bool
	Concurrency int
	Logger      *slog.Logger
}

// Run captures and checks every case. Cases never affect each other, a failing
// case is reported and the rest still run. Only context cancellation aborts.
func (r *Runner) Run(ctx context.Context, manifest string, cases []Case) (*report.Summary, error) {
	results := make([]report.CaseResult, len(cases))

	eg, ctx := errgroup.WithContext(ctx)
	if r.Concurrency > 0 {
		eg.SetLimit(r.Concurrency)
	}
	for i, c := range cases {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = r.runCase(ctx, c)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, xerrors.Errorf("snapshot run aborted: %w", err)
	}

	summary := &report.Summary{Manifest: manifest, Cases: results}
	for _, result := range results {
		switch result.Outcome {
		case outcomeMatch:
			summary.Passed++
		case outcomeRecorded:
			summary.Recorded++
		default:
			summary.Failed++
		}
	}
	return summary, nil
}

func (r *Runner) runCase(ctx context.Context, c Case) report.CaseResult {
	result := report.CaseResult{
		Name:     c.Name,
		Location: c.Location.String(),
		Device:   c.Device.String(),
		PerPixel: c.Tolerance.PerPixel,
		Overall:  c.Tolerance.Overall,
	}
	logger := r.logger().With("name", c.Name, "device", result.Device, "location", result.Location)

	harness, err := snapshot.NewHarness(r.References, r.Scratch,
		snapshot.WithTolerance(c.Tolerance),
		snapshot.WithKeyFunc(r.keyFunc()),
		snapshot.WithLogger(logger),
	)
	if err != nil {
		return failed(result, logger, err)
	}

	data, err := r.Capturer.Capture(ctx, c.Request())
	if err != nil {
		return failed(result, logger, xerrors.Errorf("%s: failed to capture %s: %w", c.Location, c.URL, err))
	}

	if r.Record {
		err = harness.RecordData(ctx, data, c.SnapshotName(), c.Location)
	} else {
		err = harness.AssertData(ctx, data, c.SnapshotName(), c.Location)
	}

	var failure *snapshot.Failure
	switch {
	case err == nil:
		result.Outcome = outcomeMatch
		logger.Info("snapshot matches")
		return result
	case errors.As(err, &failure):
		result.ReferenceURL = failure.ReferencePath
		result.CandidateURL = failure.NewPath
		result.DiffURL = failure.DiffPath
		result.DiffAmount = failure.DiffAmount
	}

	switch {
	case errors.Is(err, snapshot.RecordSucceeded):
		result.Outcome = outcomeRecorded
		result.Message = err.Error()
		logger.Warn(result.Message)
		return result
	case errors.Is(err, snapshot.ToleranceMismatch):
		result.Outcome = outcomeMismatch
		result.Message = err.Error()
		logger.Error(result.Message)
		return result
	default:
		return failed(result, logger, err)
	}
}

func failed(result report.CaseResult, logger *slog.Logger, err error) report.CaseResult {
	result.Outcome = outcomeFailed
	result.Message = err.Error()
	logger.Error(result.Message)
	return result
}

func (r *Runner) keyFunc() snapshot.KeyFunc {
	if r.KeyFunc != nil {
		return r.KeyFunc
	}
	return snapshot.PrefixKey("")
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
