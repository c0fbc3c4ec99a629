package capture_test

import (
	"snapshot-matcher/internal/capture"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLookupDevice(t *testing.T) {
	tests := []struct {
		name    string
		want    capture.Device
		wantErr bool
	}{
		{"iphone-se3", capture.IPhoneSE3(capture.StyleLight), false},
		{"iphone14:dark", capture.IPhone14(capture.StyleDark), false},
		{"iphone14-zoomed:light", capture.IPhone14Zoomed(capture.StyleLight), false},
		{"desktop", capture.Desktop(capture.StyleLight), false},
		{"pixel7", capture.Device{}, true},
		{"iphone14:sepia", capture.Device{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := capture.LookupDevice(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LookupDevice() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestDevice_String(t *testing.T) {
	if got := capture.IPhoneSE3(capture.StyleLight).String(); got != "iphone-se3" {
		t.Errorf("String() = %s, want iphone-se3", got)
	}
	if got := capture.IPhone14(capture.StyleDark).String(); got != "iphone14-dark" {
		t.Errorf("String() = %s, want iphone14-dark", got)
	}
}
