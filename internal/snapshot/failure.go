package snapshot

import (
	"errors"
	"fmt"
	"strings"
)

// Reasons a snapshot assertion or recording fails. Match them with errors.Is.
var (
	EncodingFailure      = errors.New("failed to generate PNG data representation from snapshot")
	MissingReference     = errors.New("failed to load stored snapshot")
	DecodingFailure      = errors.New("failed to decode stored snapshot")
	RasterizationFailure = errors.New("failed to normalize snapshots for comparison")
	ToleranceMismatch    = errors.New("new snapshot does not match stored snapshot")
	StorageFailure       = errors.New("failed to access snapshot storage")
	RecordSucceeded      = errors.New("record succeeded")
)

// Location is the source position of the assertion.
type Location struct {
	File string
	Line int
}

func (l Location) String() string {
	if l.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

type Failure struct {
	Reason   error
	Name     string
	Location Location

	// ReferencePath is where the stored snapshot lives or was recorded to.
	ReferencePath string
	// NewPath, DiffPath and DiffAmount are only set on ToleranceMismatch.
	NewPath    string
	DiffPath   string
	DiffAmount float64

	Err error
}

func (f *Failure) Error() string {
	var b strings.Builder
	if loc := f.Location.String(); loc != "" {
		b.WriteString(loc)
		b.WriteString(": ")
	}
	b.WriteString(f.Reason.Error())

	switch {
	case errors.Is(f.Reason, MissingReference):
		fmt.Fprintf(&b, " at %s. Use the record mode to store a snapshot before asserting.", f.ReferencePath)
	case errors.Is(f.Reason, ToleranceMismatch):
		fmt.Fprintf(&b, ". New snapshot URL: %s, Stored snapshot URL: %s", f.NewPath, f.ReferencePath)
		if f.DiffPath != "" {
			fmt.Fprintf(&b, ", Diff URL: %s", f.DiffPath)
		}
	case errors.Is(f.Reason, RecordSucceeded):
		fmt.Fprintf(&b, " - %s stored at %s, assert the snapshot from now on.", f.Name, f.ReferencePath)
	default:
		fmt.Fprintf(&b, " %q", f.Name)
	}

	if f.Err != nil {
		fmt.Fprintf(&b, ": %v", f.Err)
	}
	return b.String()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func (f *Failure) Is(target error) bool {
	return target == f.Reason
}
