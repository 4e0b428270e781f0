package elevation

import (
	"errors"
	"fmt"
)

var (
	errEmptyAxis     = errors.New("empty axis")
	errGridShape     = errors.New("grid shape does not match axes")
	errTupleArity    = errors.New("tuple must contain exactly two values")
	errNonFinite     = errors.New("coordinate must be finite")
	errMissingFile   = errors.New("missing file")
	errCoordsArity   = errors.New("coords must contain exactly four values")
	errInvertedBound = errors.New("minimum exceeds maximum")
)

// A ManifestError is returned when a manifest cannot be read or contains a
// malformed record.
type ManifestError struct {
	Name   string
	Record int // Index of the malformed record, or -1.
	Err    error
}

func (e *ManifestError) Error() string {
	switch {
	case e.Name != "" && e.Record >= 0:
		return fmt.Sprintf("%s: record %d: %v", e.Name, e.Record, e.Err)
	case e.Record >= 0:
		return fmt.Sprintf("manifest: record %d: %v", e.Record, e.Err)
	case e.Name != "":
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	default:
		return fmt.Sprintf("manifest: %v", e.Err)
	}
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// A TileLoadError is returned when a tile cannot be decoded.
type TileLoadError struct {
	Locator string
	Err     error
}

func (e *TileLoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Locator, e.Err)
}

func (e *TileLoadError) Unwrap() error {
	return e.Err
}

// A PointParseError is returned when a query string cannot be parsed into
// points.
type PointParseError struct {
	Input string
	Err   error
}

func (e *PointParseError) Error() string {
	return fmt.Sprintf("%q: %v", e.Input, e.Err)
}

func (e *PointParseError) Unwrap() error {
	return e.Err
}

// A CapacityError is returned when a batch contains more points than
// allowed.
type CapacityError struct {
	N   int
	Max int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%d points requested, maximum is %d", e.N, e.Max)
}
