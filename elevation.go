// Package elevation resolves ground elevations from a manifest of raster
// tiles by returning the nearest grid sample of the first tile covering each
// point.
package elevation

import (
	"encoding/json"
	"math"
)

// NoData is the elevation reported for points that no tile covers, and for
// samples equal to a tile's fill value.
const NoData = -9999.0

// MaxPoints is the default maximum number of points in a single request.
const MaxPoints = 50

// A Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// An Elevation is the resolved elevation of a point. Err is non-nil if the
// tile covering the point could not be loaded, in which case Value is NoData.
type Elevation struct {
	Lat   float64
	Lon   float64
	Value float64
	Err   error
}

type elevationJSON struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Elevation float64 `json:"elevation"`
	Error     string  `json:"error,omitempty"`
}

// MarshalJSON implements encoding/json.Marshaler.
func (e Elevation) MarshalJSON() ([]byte, error) {
	ej := elevationJSON{
		Lat:       e.Lat,
		Lon:       e.Lon,
		Elevation: e.Value,
	}
	if math.IsNaN(ej.Elevation) || math.IsInf(ej.Elevation, 0) {
		ej.Elevation = NoData
	}
	if e.Err != nil {
		ej.Error = e.Err.Error()
	}
	return json.Marshal(ej)
}

// Found returns whether e is a real sample.
func (e Elevation) Found() bool {
	return e.Err == nil && e.Value != NoData
}
