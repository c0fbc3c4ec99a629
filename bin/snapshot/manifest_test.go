package main

import (
	"snapshot-matcher/internal/capture"
	diffimage "snapshot-matcher/internal/diff/image"
	"snapshot-matcher/internal/snapshot"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const manifest = `defaults:
  device: iphone-se3
  overallTolerance: 0.001

cases:
  - name: home
    url: https://example.com/

  - name: login
    url: https://example.com/login
    devices: [iphone14, "iphone14:dark"]
    perPixelTolerance: 0.02
`

const captureManifest = `defaults:
  mask: [".clock"]
  delay: 1s

cases:
  - name: feed
    url: https://example.com/feed
    device: desktop
    fullPage: true
    delay: 250ms
    mask: ["#avatar"]
`

func TestParseManifestCaptureOptions(t *testing.T) {
	got, err := ParseManifest("snapshots.yaml", []byte(captureManifest))
	if err != nil {
		t.Fatal(err)
	}

	want := []Case{
		{
			Name:      "feed",
			URL:       "https://example.com/feed",
			Device:    capture.Desktop(capture.StyleLight),
			FullPage:  true,
			Delay:     250 * time.Millisecond,
			Mask:      []string{".clock", "#avatar"},
			Tolerance: diffimage.DefaultTolerance,
			Location:  snapshot.Location{File: "snapshots.yaml", Line: 6},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	request := got[0].Request()
	if request.URL != want[0].URL || !request.FullPage || request.Delay != want[0].Delay || len(request.Mask) != 2 {
		t.Errorf("unexpected capture request %+v", request)
	}
}

func TestParseManifest(t *testing.T) {
	got, err := ParseManifest("snapshots.yaml", []byte(manifest))
	if err != nil {
		t.Fatal(err)
	}

	want := []Case{
		{
			Name:      "home",
			URL:       "https://example.com/",
			Device:    capture.IPhoneSE3(capture.StyleLight),
			Tolerance: diffimage.Tolerance{PerPixel: diffimage.DefaultTolerance.PerPixel, Overall: 0.001},
			Location:  snapshot.Location{File: "snapshots.yaml", Line: 6},
		},
		{
			Name:      "login",
			URL:       "https://example.com/login",
			Device:    capture.IPhone14(capture.StyleLight),
			Tolerance: diffimage.Tolerance{PerPixel: 0.02, Overall: 0.001},
			Location:  snapshot.Location{File: "snapshots.yaml", Line: 9},
		},
		{
			Name:      "login",
			URL:       "https://example.com/login",
			Device:    capture.IPhone14(capture.StyleDark),
			Tolerance: diffimage.Tolerance{PerPixel: 0.02, Overall: 0.001},
			Location:  snapshot.Location{File: "snapshots.yaml", Line: 9},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	names := []string{got[0].SnapshotName(), got[1].SnapshotName(), got[2].SnapshotName()}
	if diff := cmp.Diff([]string{"home_iphone-se3", "login_iphone14", "login_iphone14-dark"}, names); diff != "" {
		t.Errorf("snapshot names (-want +got):\n%s", diff)
	}
}

func TestParseManifestErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		want     string
	}{
		{"NotAList", "cases: {}\n", "cases must be a list"},
		{"MissingURL", "cases:\n  - name: home\n", "snapshots.yaml:2: name and url are required"},
		{"UnknownDevice", "cases:\n  - name: home\n    url: https://example.com/\n    device: pager\n", "unknown device"},
		{"InvalidTolerance", "cases:\n  - name: home\n    url: https://example.com/\n    overallTolerance: 1.5\n", "invalid tolerance"},
		{"Duplicate", "cases:\n  - name: home\n    url: https://example.com/\n  - name: home\n    url: https://example.com/other\n", "duplicate snapshot home_iphone14"},
		{"Malformed", "cases: [\n", "failed to parse manifest"},
		{"NegativeDelay", "cases:\n  - name: home\n    url: https://example.com/\n    delay: -1s\n", "delay must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest("snapshots.yaml", []byte(tt.manifest))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}
