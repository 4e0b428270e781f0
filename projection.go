package elevation

import (
	"strconv"

	"github.com/twpayne/go-proj/v10"
)

// An epsgProjection projects between EPSG:4326 and an EPSG projected CRS with
// longitude/easting first axis order.
type epsgProjection struct {
	pj *proj.PJ
}

// NewEPSGProjection returns a Projection from EPSG:4326 to the CRS with the
// given EPSG code.
func NewEPSGProjection(code int) (Projection, error) {
	pj, err := proj.NewCRSToCRS("epsg:4326", "epsg:"+strconv.Itoa(code), nil)
	if err != nil {
		return nil, err
	}
	normalizedPJ, err := pj.NormalizeForVisualization()
	if err != nil {
		return nil, err
	}
	return &epsgProjection{
		pj: normalizedPJ,
	}, nil
}

// Forward implements Projection.Forward.
func (p *epsgProjection) Forward(point Point) (float64, float64, error) {
	coord, err := p.pj.Forward(proj.NewCoord(point.Lon, point.Lat, 0, 0))
	if err != nil {
		return 0, 0, err
	}
	return coord.X(), coord.Y(), nil
}

// Inverse implements Projection.Inverse.
func (p *epsgProjection) Inverse(x, y float64) (Point, error) {
	coord, err := p.pj.Inverse(proj.NewCoord(x, y, 0, 0))
	if err != nil {
		return Point{}, err
	}
	return Point{Lat: coord.Y(), Lon: coord.X()}, nil
}
