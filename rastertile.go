package elevation

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// A Projection converts between geographic coordinates and a tile's native
// coordinates.
type Projection interface {
	Forward(p Point) (x, y float64, err error)
	Inverse(x, y float64) (Point, error)
}

// A RasterTile is a decoded tile: a latitude axis, a longitude axis, and a
// grid of samples indexed by [latIndex][lonIndex]. A RasterTile is immutable
// and safe for concurrent use.
type RasterTile struct {
	lats       axis
	lons       axis
	samples    []float64 // Row major, len(lats.values) rows.
	latMin     float64
	latMax     float64
	lonMin     float64
	lonMax     float64
	fillValue  float64
	hasFill    bool
	projection Projection
}

// A RasterTileOption sets an option on a RasterTile.
type RasterTileOption func(*RasterTile)

// WithFillValue sets the sample value that is reported as NoData.
func WithFillValue(fillValue float64) RasterTileOption {
	return func(t *RasterTile) {
		t.fillValue = fillValue
		t.hasFill = true
	}
}

// WithProjection sets the projection of the tile's axes. Without a
// projection the axes are latitudes and longitudes.
func WithProjection(projection Projection) RasterTileOption {
	return func(t *RasterTile) {
		t.projection = projection
	}
}

// NewRasterTile returns a new RasterTile. grid must have len(lats) rows of
// len(lons) samples.
func NewRasterTile(lats, lons []float64, grid [][]float64, options ...RasterTileOption) (*RasterTile, error) {
	if len(grid) != len(lats) {
		return nil, errGridShape
	}
	samples := make([]float64, 0, len(lats)*len(lons))
	for _, row := range grid {
		if len(row) != len(lons) {
			return nil, errGridShape
		}
		samples = append(samples, row...)
	}
	return newRasterTile(lats, lons, samples, options...)
}

// newRasterTile returns a new RasterTile from row-major samples. It takes
// ownership of its arguments.
func newRasterTile(lats, lons, samples []float64, options ...RasterTileOption) (*RasterTile, error) {
	if len(lats) == 0 || len(lons) == 0 {
		return nil, errEmptyAxis
	}
	if len(samples) != len(lats)*len(lons) {
		return nil, errGridShape
	}
	t := &RasterTile{
		lats:    newAxis(lats),
		lons:    newAxis(lons),
		samples: samples,
	}
	t.latMin, t.latMax = minMax(lats)
	t.lonMin, t.lonMax = minMax(lons)
	for _, option := range options {
		option(t)
	}
	return t, nil
}

// ElevationAt returns the sample nearest to lat and lon in the tile's native
// coordinates. Coordinates outside the tile return the nearest edge sample.
func (t *RasterTile) ElevationAt(lat, lon float64) float64 {
	latIndex := t.lats.nearest(lat)
	lonIndex := t.lons.nearest(lon)
	sample := t.samples[latIndex*len(t.lons.values)+lonIndex]
	if math.IsNaN(sample) || t.hasFill && sample == t.fillValue {
		return NoData
	}
	return sample
}

// Sample returns the sample nearest to p, projecting p into the tile's native
// coordinates if needed.
func (t *RasterTile) Sample(p Point) (float64, error) {
	if t.projection == nil {
		return t.ElevationAt(p.Lat, p.Lon), nil
	}
	x, y, err := t.projection.Forward(p)
	if err != nil {
		return NoData, err
	}
	return t.ElevationAt(y, x), nil
}

// Size returns the number of rows and columns in t.
func (t *RasterTile) Size() (int, int) {
	return len(t.lats.values), len(t.lons.values)
}

// Bound returns the geographic extent of t's sample coordinates.
func (t *RasterTile) Bound() (orb.Bound, error) {
	if t.projection == nil {
		return orb.Bound{
			Min: orb.Point{t.lonMin, t.latMin},
			Max: orb.Point{t.lonMax, t.latMax},
		}, nil
	}

	// Inverse project the corners and edge midpoints.
	xMid := (t.lonMin + t.lonMax) / 2
	yMid := (t.latMin + t.latMax) / 2
	var bound orb.Bound
	for i, xy := range [][2]float64{
		{t.lonMin, t.latMin},
		{t.lonMin, t.latMax},
		{t.lonMax, t.latMin},
		{t.lonMax, t.latMax},
		{xMid, t.latMin},
		{xMid, t.latMax},
		{t.lonMin, yMid},
		{t.lonMax, yMid},
	} {
		p, err := t.projection.Inverse(xy[0], xy[1])
		if err != nil {
			return orb.Bound{}, err
		}
		if i == 0 {
			bound = orb.Point{p.Lon, p.Lat}.Bound()
		} else {
			bound = bound.Extend(orb.Point{p.Lon, p.Lat})
		}
	}
	return bound, nil
}

// NearestIndex returns the index of the element of values closest to target.
// If several elements are equally close, the lowest index is returned. values
// need not be sorted. It returns -1 if values is empty.
func NearestIndex(values []float64, target float64) int {
	if len(values) == 0 {
		return -1
	}
	minDiff := math.MaxFloat64
	minIndex := 0
	for i, value := range values {
		if diff := math.Abs(target - value); diff < minDiff {
			minDiff = diff
			minIndex = i
		}
	}
	return minIndex
}

// An axis is a coordinate axis. Strictly monotonic axes of finite values are
// searched with binary search, all others are scanned linearly. Both return
// the same index.
type axis struct {
	values []float64
	order  int // 1 if strictly increasing, -1 if strictly decreasing, 0 otherwise.
}

func newAxis(values []float64) axis {
	return axis{
		values: values,
		order:  monotonicity(values),
	}
}

func (a axis) nearest(target float64) int {
	if a.order == 0 || len(a.values) < 2 || math.IsNaN(target) || math.IsInf(target, 0) {
		return NearestIndex(a.values, target)
	}

	n := len(a.values)
	var i int
	if a.order > 0 {
		i = sort.Search(n, func(i int) bool { return a.values[i] >= target })
	} else {
		i = sort.Search(n, func(i int) bool { return a.values[i] <= target })
	}
	switch {
	case i == 0:
		return 0
	case i == n:
		return a.plateauStart(n-1, target)
	}
	lo, hi := i-1, i
	if math.Abs(target-a.values[lo]) <= math.Abs(target-a.values[hi]) {
		return a.plateauStart(lo, target)
	}
	return hi
}

// plateauStart returns the lowest index whose distance to target equals that
// of index i. Rounding can make distances of adjacent values equal even on a
// strictly monotonic axis.
func (a axis) plateauStart(i int, target float64) int {
	diff := math.Abs(target - a.values[i])
	for i > 0 && math.Abs(target-a.values[i-1]) == diff {
		i--
	}
	return i
}

func monotonicity(values []float64) int {
	for _, value := range values {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return 0
		}
	}
	if len(values) < 2 {
		return 0
	}
	increasing, decreasing := true, true
	for i := 1; i < len(values); i++ {
		if values[i] <= values[i-1] {
			increasing = false
		}
		if values[i] >= values[i-1] {
			decreasing = false
		}
	}
	switch {
	case increasing:
		return 1
	case decreasing:
		return -1
	default:
		return 0
	}
}

// minMax returns the extrema of values, ignoring NaNs.
func minMax(values []float64) (float64, float64) {
	minValue, maxValue := math.Inf(1), math.Inf(-1)
	for _, value := range values {
		if value < minValue {
			minValue = value
		}
		if value > maxValue {
			maxValue = value
		}
	}
	return minValue, maxValue
}
