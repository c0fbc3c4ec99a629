package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"path/filepath"
	"snapshot-matcher/internal/capture"
	"snapshot-matcher/internal/report"
	"snapshot-matcher/internal/storage"
	"sync"
	"testing"
	"time"
)

type fakeCapturer struct {
	mu       sync.Mutex
	pages    map[string]color.Color
	called   []string
	requests []capture.Request
}

func (f *fakeCapturer) Capture(ctx context.Context, r capture.Request) ([]byte, error) {
	f.mu.Lock()
	f.called = append(f.called, r.URL)
	f.requests = append(f.requests, r)
	c, ok := f.pages[r.URL]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("page not found")
	}

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func newRunner(t *testing.T, capturer capture.Capturer, record bool) *Runner {
	t.Helper()

	ctx := context.Background()
	references, err := storage.NewFileStorage(ctx, storage.FileConfig{Directory: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	scratch, err := storage.NewFileStorage(ctx, storage.FileConfig{Directory: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	return &Runner{
		Capturer:    capturer,
		References:  references,
		Scratch:     scratch,
		Record:      record,
		Concurrency: 2,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func outcomes(summary *report.Summary) map[string]string {
	got := map[string]string{}
	for _, c := range summary.Cases {
		got[c.Name+"/"+c.Device] = c.Outcome
	}
	return got
}

func TestRunnerRecordThenAssert(t *testing.T) {
	cases, err := ParseManifest("snapshots.yaml", []byte(manifest))
	if err != nil {
		t.Fatal(err)
	}
	capturer := &fakeCapturer{pages: map[string]color.Color{
		"https://example.com/":      color.White,
		"https://example.com/login": color.Black,
	}}
	runner := newRunner(t, capturer, true)
	ctx := context.Background()

	recorded, err := runner.Run(ctx, "snapshots.yaml", cases)
	if err != nil {
		t.Fatal(err)
	}
	if recorded.Recorded != 3 || recorded.Passed != 0 || recorded.Failed != 0 {
		t.Errorf("unexpected record summary %+v", recorded)
	}

	runner.Record = false
	asserted, err := runner.Run(ctx, "snapshots.yaml", cases)
	if err != nil {
		t.Fatal(err)
	}
	if asserted.Passed != 3 {
		t.Errorf("unexpected assert summary %+v", outcomes(asserted))
	}

	capturer.mu.Lock()
	capturer.pages["https://example.com/login"] = color.White
	capturer.mu.Unlock()

	changed, err := runner.Run(ctx, "snapshots.yaml", cases)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"home/iphone-se3":     outcomeMatch,
		"login/iphone14":      outcomeMismatch,
		"login/iphone14-dark": outcomeMismatch,
	}
	got := outcomes(changed)
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s: outcome = %s, want %s", k, got[k], v)
		}
	}
	for _, c := range changed.Cases {
		if c.Outcome != outcomeMismatch {
			continue
		}
		if c.CandidateURL == "" || c.DiffURL == "" || c.DiffAmount != 1 {
			t.Errorf("%s/%s: mismatch lacks artifacts: %+v", c.Name, c.Device, c)
		}
		if !filepath.IsAbs(c.ReferenceURL) {
			t.Errorf("%s/%s: reference URL %q is not a resolved path", c.Name, c.Device, c.ReferenceURL)
		}
		if c.Location != "snapshots.yaml:9" {
			t.Errorf("%s/%s: location = %s", c.Name, c.Device, c.Location)
		}
	}
}

func TestRunnerReportsEveryCase(t *testing.T) {
	cases, err := ParseManifest("snapshots.yaml", []byte(manifest))
	if err != nil {
		t.Fatal(err)
	}
	capturer := &fakeCapturer{pages: map[string]color.Color{
		"https://example.com/": color.White,
	}}
	runner := newRunner(t, capturer, false)

	summary, err := runner.Run(context.Background(), "snapshots.yaml", cases)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 3 || len(summary.Cases) != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	for _, c := range summary.Cases {
		if c.Outcome != outcomeFailed || c.Message == "" {
			t.Errorf("%s/%s: outcome = %s, message = %q", c.Name, c.Device, c.Outcome, c.Message)
		}
	}
	if len(capturer.called) != 3 {
		t.Errorf("captured %d pages, want 3", len(capturer.called))
	}
}

func TestRunnerStopsOnCancellation(t *testing.T) {
	cases, err := ParseManifest("snapshots.yaml", []byte(manifest))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := newRunner(t, &fakeCapturer{}, false)
	if _, err := runner.Run(ctx, "snapshots.yaml", cases); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunnerPassesCaptureOptions(t *testing.T) {
	cases, err := ParseManifest("snapshots.yaml", []byte(captureManifest))
	if err != nil {
		t.Fatal(err)
	}
	capturer := &fakeCapturer{pages: map[string]color.Color{
		"https://example.com/feed": color.White,
	}}
	runner := newRunner(t, capturer, true)

	if _, err := runner.Run(context.Background(), "snapshots.yaml", cases); err != nil {
		t.Fatal(err)
	}
	if len(capturer.requests) != 1 {
		t.Fatalf("captured %d pages, want 1", len(capturer.requests))
	}
	got := capturer.requests[0]
	if !got.FullPage || got.Delay != 250*time.Millisecond || len(got.Mask) != 2 {
		t.Errorf("unexpected capture request %+v", got)
	}
}
