package elevation

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/ctessum/cdf"
)

// NetCDF variable names.
const (
	netCDFBand         = "Band1"
	netCDFFillValueKey = "_FillValue"
)

var (
	netCDFLatNames = []string{"y", "lat"}
	netCDFLonNames = []string{"x", "lon"}

	errMissingVariable = errors.New("missing variable")
)

// readOnly adapts an io.ReaderAt to a cdf.ReaderWriterAt.
type readOnly struct {
	io.ReaderAt
}

func (readOnly) WriteAt([]byte, int64) (int, error) {
	return 0, errors.ErrUnsupported
}

// DecodeNetCDF decodes a NetCDF classic tile. The latitude axis is the
// variable y or lat, the longitude axis is x or lon, and the elevations are
// the variable Band1 with dimensions (latitude, longitude).
func DecodeNetCDF(r *io.SectionReader) (*RasterTile, error) {
	f, err := cdf.Open(readOnly{ReaderAt: r})
	if err != nil {
		return nil, err
	}
	variables := f.Header.Variables()

	latName, err := findVariable(variables, netCDFLatNames)
	if err != nil {
		return nil, err
	}
	lats, err := readNetCDFVariable(f, latName)
	if err != nil {
		return nil, err
	}

	lonName, err := findVariable(variables, netCDFLonNames)
	if err != nil {
		return nil, err
	}
	lons, err := readNetCDFVariable(f, lonName)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(variables, netCDFBand) {
		return nil, fmt.Errorf("%s: %w", netCDFBand, errMissingVariable)
	}
	if lengths := f.Header.Lengths(netCDFBand); len(lengths) < 2 ||
		lengths[len(lengths)-2] != len(lats) || lengths[len(lengths)-1] != len(lons) {
		return nil, fmt.Errorf("%s: dimensions %v: %w", netCDFBand, lengths, errGridShape)
	}
	samples, err := readNetCDFVariable(f, netCDFBand)
	if err != nil {
		return nil, err
	}

	var options []RasterTileOption
	if fillValue, ok := netCDFFillValue(f, netCDFBand); ok {
		options = append(options, WithFillValue(fillValue))
	}
	return newRasterTile(lats, lons, samples, options...)
}

// findVariable returns the first of names present in variables.
func findVariable(variables, names []string) (string, error) {
	for _, name := range names {
		if slices.Contains(variables, name) {
			return name, nil
		}
	}
	return "", fmt.Errorf("%s: %w", names[len(names)-1], errMissingVariable)
}

// readNetCDFVariable reads all values of the variable name as float64s.
func readNetCDFVariable(f *cdf.File, name string) ([]float64, error) {
	n := 1
	for _, length := range f.Header.Lengths(name) {
		n *= length
	}
	values := f.Header.ZeroValue(name, n)
	if values == nil {
		return nil, fmt.Errorf("%s: %w", name, errors.ErrUnsupported)
	}
	switch read, err := f.Reader(name, nil, nil).Read(values); {
	case err != nil && !(errors.Is(err, io.EOF) && read == n):
		return nil, fmt.Errorf("%s: %w", name, err)
	case read != n:
		return nil, fmt.Errorf("%s: %w", name, errShortRead)
	}
	float64s, ok := toFloat64s(values)
	if !ok {
		return nil, fmt.Errorf("%s: %T: %w", name, values, errors.ErrUnsupported)
	}
	return float64s, nil
}

// netCDFFillValue returns the fill value of the variable name, if any.
func netCDFFillValue(f *cdf.File, name string) (float64, bool) {
	float64s, ok := toFloat64s(f.Header.GetAttribute(name, netCDFFillValueKey))
	if !ok || len(float64s) == 0 {
		return 0, false
	}
	return float64s[0], true
}

// toFloat64s converts a slice of numeric values to float64s.
func toFloat64s(values any) ([]float64, bool) {
	switch values := values.(type) {
	case []float64:
		return values, true
	case []float32:
		return convertSlice(values), true
	case []int32:
		return convertSlice(values), true
	case []int16:
		return convertSlice(values), true
	case []int8:
		return convertSlice(values), true
	case []uint8:
		return convertSlice(values), true
	default:
		return nil, false
	}
}

func convertSlice[T float32 | int32 | int16 | int8 | uint8](values []T) []float64 {
	result := make([]float64, len(values))
	for i, value := range values {
		result[i] = float64(value)
	}
	return result
}
