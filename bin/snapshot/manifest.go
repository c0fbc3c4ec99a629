package main

import (
	"os"
	"snapshot-matcher/internal/capture"
	diffimage "snapshot-matcher/internal/diff/image"
	"snapshot-matcher/internal/snapshot"
	"time"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

type caseSpec struct {
	Name              string         `yaml:"name"`
	URL               string         `yaml:"url"`
	Device            string         `yaml:"device"`
	Devices           []string       `yaml:"devices"`
	PerPixelTolerance *float64       `yaml:"perPixelTolerance"`
	OverallTolerance  *float64       `yaml:"overallTolerance"`
	FullPage          *bool          `yaml:"fullPage"`
	Delay             *time.Duration `yaml:"delay"`
	Mask              []string       `yaml:"mask"`
}

type manifestSpec struct {
	Defaults caseSpec  `yaml:"defaults"`
	Cases    yaml.Node `yaml:"cases"`
}

// Case is one snapshot to capture. Location points at the case in the manifest
// so failures read like test failures.
type Case struct {
	Name      string
	URL       string
	Device    capture.Device
	FullPage  bool
	Delay     time.Duration
	Mask      []string
	Tolerance diffimage.Tolerance
	Location  snapshot.Location
}

func (c Case) Request() capture.Request {
	return capture.Request{
		URL:      c.URL,
		Device:   c.Device,
		FullPage: c.FullPage,
		Delay:    c.Delay,
		Mask:     c.Mask,
	}
}

// SnapshotName is unique per device so references of the same page never collide.
func (c Case) SnapshotName() string {
	return c.Name + "_" + c.Device.String()
}

func LoadManifest(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(path, data)
}

// ParseManifest expands every case into one Case per device. Unset fields fall
// back to defaults and then to the built in defaults.
func ParseManifest(path string, data []byte) ([]Case, error) {
	var m manifestSpec
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, xerrors.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if m.Cases.Kind != yaml.SequenceNode {
		return nil, xerrors.Errorf("%s: cases must be a list", path)
	}

	var cases []Case
	seen := map[string]snapshot.Location{}
	for _, node := range m.Cases.Content {
		loc := snapshot.Location{File: path, Line: node.Line}

		var c caseSpec
		if err := node.Decode(&c); err != nil {
			return nil, xerrors.Errorf("%s: %w", loc, err)
		}
		if c.Name == "" || c.URL == "" {
			return nil, xerrors.Errorf("%s: name and url are required", loc)
		}
		if c.Delay != nil && *c.Delay < 0 {
			return nil, xerrors.Errorf("%s: delay must not be negative", loc)
		}

		tolerance, err := resolveTolerance(c, m.Defaults)
		if err != nil {
			return nil, xerrors.Errorf("%s: %w", loc, err)
		}

		for _, name := range deviceNames(c, m.Defaults) {
			device, err := capture.LookupDevice(name)
			if err != nil {
				return nil, xerrors.Errorf("%s: %w", loc, err)
			}

			resolved := Case{
				Name:      c.Name,
				URL:       c.URL,
				Device:    device,
				FullPage:  resolveValue(c.FullPage, m.Defaults.FullPage, false),
				Delay:     resolveValue(c.Delay, m.Defaults.Delay, 0),
				Mask:      append(append([]string(nil), m.Defaults.Mask...), c.Mask...),
				Tolerance: tolerance,
				Location:  loc,
			}
			if previous, ok := seen[resolved.SnapshotName()]; ok {
				return nil, xerrors.Errorf("%s: duplicate snapshot %s, first declared at %s", loc, resolved.SnapshotName(), previous)
			}
			seen[resolved.SnapshotName()] = loc
			cases = append(cases, resolved)
		}
	}
	return cases, nil
}

func deviceNames(c caseSpec, defaults caseSpec) []string {
	switch {
	case len(c.Devices) > 0:
		return c.Devices
	case c.Device != "":
		return []string{c.Device}
	case len(defaults.Devices) > 0:
		return defaults.Devices
	case defaults.Device != "":
		return []string{defaults.Device}
	default:
		return []string{"iphone14"}
	}
}

func resolveValue[T any](value *T, fallback *T, builtin T) T {
	switch {
	case value != nil:
		return *value
	case fallback != nil:
		return *fallback
	default:
		return builtin
	}
}

func resolveTolerance(c caseSpec, defaults caseSpec) (diffimage.Tolerance, error) {
	tolerance := diffimage.DefaultTolerance
	for _, v := range []*float64{defaults.PerPixelTolerance, c.PerPixelTolerance} {
		if v != nil {
			tolerance.PerPixel = *v
		}
	}
	for _, v := range []*float64{defaults.OverallTolerance, c.OverallTolerance} {
		if v != nil {
			tolerance.Overall = *v
		}
	}
	return tolerance, tolerance.Validate()
}
