package capture

import (
	"fmt"
	"sort"
	"strings"
)

type Style string

const (
	StyleLight Style = "light"
	StyleDark  Style = "dark"
)

// Device describes the screen a snapshot is rendered for. Width and Height are in points,
// the captured image is Scale times larger.
type Device struct {
	Name   string
	Width  int
	Height int
	Scale  float64
	Mobile bool
	Style  Style
}

func IPhone14(style Style) Device {
	return Device{
		Name:   "iphone14",
		Width:  390,
		Height: 844,
		Scale:  3,
		Mobile: true,
		Style:  style,
	}
}

func IPhone14Zoomed(style Style) Device {
	return Device{
		Name:   "iphone14-zoomed",
		Width:  320,
		Height: 693,
		Scale:  3,
		Mobile: true,
		Style:  style,
	}
}

func IPhoneSE3(style Style) Device {
	return Device{
		Name:   "iphone-se3",
		Width:  375,
		Height: 667,
		Scale:  2,
		Mobile: true,
		Style:  style,
	}
}

func Desktop(style Style) Device {
	return Device{
		Name:   "desktop",
		Width:  1920,
		Height: 1080,
		Scale:  1,
		Style:  style,
	}
}

var devices = map[string]func(Style) Device{
	"iphone14":        IPhone14,
	"iphone14-zoomed": IPhone14Zoomed,
	"iphone-se3":      IPhoneSE3,
	"desktop":         Desktop,
}

// LookupDevice resolves names like "iphone-se3" or "iphone14:dark".
func LookupDevice(name string) (Device, error) {
	deviceName, style, found := strings.Cut(name, ":")
	if !found {
		style = string(StyleLight)
	}

	newDevice, ok := devices[deviceName]
	if !ok {
		return Device{}, fmt.Errorf("unknown device %q, expected one of %s", deviceName, strings.Join(DeviceNames(), ", "))
	}

	switch Style(style) {
	case StyleLight, StyleDark:
		return newDevice(Style(style)), nil
	default:
		return Device{}, fmt.Errorf("unknown style %q, expected light or dark", style)
	}
}

func DeviceNames() []string {
	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String is the suffix snapshot names carry, e.g. "iphone-se3" or "iphone14-dark".
func (d Device) String() string {
	if d.Style == StyleDark {
		return d.Name + "-dark"
	}
	return d.Name
}
