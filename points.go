package elevation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParsePoints parses a list of (lat,lon) tuples, for example
// "(48.35,5.3),(48.43,5.23)". Tuples may be concatenated without separators.
// Either all tuples are parsed or a *PointParseError is returned.
func ParsePoints(s string) ([]Point, error) {
	var points []Point
	for _, tuple := range strings.Split(s, "(") {
		tuple = strings.TrimSpace(tuple)
		if tuple == "" {
			continue
		}
		tuple = strings.Trim(tuple, "), ")
		values := strings.Split(tuple, ",")
		if len(values) != 2 {
			return nil, &PointParseError{Input: s, Err: errTupleArity}
		}
		lat, err := parseCoordinate(values[0])
		if err != nil {
			return nil, &PointParseError{Input: s, Err: err}
		}
		lon, err := parseCoordinate(values[1])
		if err != nil {
			return nil, &PointParseError{Input: s, Err: err}
		}
		points = append(points, Point{Lat: lat, Lon: lon})
	}
	return points, nil
}

// parseCoordinate parses a single finite coordinate.
func parseCoordinate(s string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%s: %w", strings.TrimSpace(s), errNonFinite)
	}
	return value, nil
}

// CheckCapacity returns a *CapacityError if n exceeds max.
func CheckCapacity(n, max int) error {
	if n > max {
		return &CapacityError{N: n, Max: max}
	}
	return nil
}
