package snapshot

import (
	"path"
	"path/filepath"
)

// KeyFunc maps a named snapshot asserted at loc to its reference storage key.
type KeyFunc func(loc Location, name string) string

// SiblingKey stores references next to the asserting source file:
// <dir of file>/snapshots/<name>.png
func SiblingKey(loc Location, name string) string {
	return filepath.Join(filepath.Dir(loc.File), "snapshots", name+".png")
}

// PrefixKey stores references flat under prefix, which suits object stores.
func PrefixKey(prefix string) KeyFunc {
	return func(loc Location, name string) string {
		return path.Join(prefix, name+".png")
	}
}
