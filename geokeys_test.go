package elevation

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestParseGeoKeys(t *testing.T) {
	directory := []uint16{
		1, 1, 0, 6,
		1024, 0, 1, 1,
		1025, 0, 1, 2,
		1026, 34737, 25, 0,
		2054, 0, 1, 9102,
		3072, 0, 1, 32632,
		3076, 0, 1, 9001,
	}
	asciiParams := []byte("WGS 84 / UTM zone 32N|GDA")

	actual, err := ParseGeoKeys(directory, nil, asciiParams)
	assert.NoError(t, err)
	assert.Equal(t, &ParsedGeoKeys{
		Params: map[GeoKey]int{
			GeoKeyGTModelType:  1,
			GeoKeyGTRasterType: 2,
			GeoKeyAngularUnits: 9102,
			GeoKeyProjectedCRS: 32632,
			GeoKeyLinearUnits2: 9001,
		},
		DoubleParams: map[GeoKey]float64{},
		ASCIIParams: map[GeoKey]string{
			GeoKeyGTCitation: "WGS 84 / UTM zone 32N|GDA",
		},
	}, actual)
	assert.Equal(t, rasterPixelIsPoint, actual.RasterType())
	code, err := actual.ProjectedCRS()
	assert.NoError(t, err)
	assert.Equal(t, 32632, code)
}

func TestParseGeoKeysErrors(t *testing.T) {
	for _, tc := range []struct {
		name         string
		directory    []uint16
		doubleParams []float64
		asciiParams  []byte
		expectedErr  error
	}{
		{
			name:        "short",
			directory:   []uint16{1, 1, 0},
			expectedErr: errParse,
		},
		{
			name:        "version",
			directory:   []uint16{2, 1, 0, 0},
			expectedErr: errParse,
		},
		{
			name:        "number_of_keys",
			directory:   []uint16{1, 1, 0, 2, 1024, 0, 1, 1},
			expectedErr: errParse,
		},
		{
			name:        "double_index_out_of_range",
			directory:   []uint16{1, 1, 0, 1, 2057, 34736, 1, 3},
			expectedErr: errParse,
		},
		{
			name:        "ascii_out_of_range",
			directory:   []uint16{1, 1, 0, 1, 1026, 34737, 10, 0},
			asciiParams: []byte("short|"),
			expectedErr: errParse,
		},
		{
			name:        "unknown_location",
			directory:   []uint16{1, 1, 0, 1, 1024, 1234, 1, 0},
			expectedErr: errors.ErrUnsupported,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseGeoKeys(tc.directory, tc.doubleParams, tc.asciiParams)
			assert.IsError(t, err, tc.expectedErr)
		})
	}
}

func TestParsedGeoKeysProjectedCRS(t *testing.T) {
	for _, tc := range []struct {
		name        string
		params      map[GeoKey]int
		expected    int
		expectedErr error
	}{
		{
			name: "empty",
		},
		{
			name:   "geographic",
			params: map[GeoKey]int{GeoKeyGTModelType: 2, GeoKeyGeodeticCRS: 4326},
		},
		{
			name:     "projected",
			params:   map[GeoKey]int{GeoKeyGTModelType: 1, GeoKeyProjectedCRS: 3035},
			expected: 3035,
		},
		{
			name:        "user_defined",
			params:      map[GeoKey]int{GeoKeyGTModelType: 1, GeoKeyProjectedCRS: 32767},
			expectedErr: errors.ErrUnsupported,
		},
		{
			name:        "geocentric",
			params:      map[GeoKey]int{GeoKeyGTModelType: 3},
			expectedErr: errors.ErrUnsupported,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			parsedGeoKeys := &ParsedGeoKeys{Params: tc.params}
			actual, err := parsedGeoKeys.ProjectedCRS()
			if tc.expectedErr != nil {
				assert.IsError(t, err, tc.expectedErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
			assert.Equal(t, rasterPixelIsArea, parsedGeoKeys.RasterType())
		})
	}
}
