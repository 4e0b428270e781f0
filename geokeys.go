package elevation

import (
	"errors"
	"fmt"
)

var errParse = errors.New("parse error")

// TIFF tags referenced by GeoKey directory entries.
const (
	tagGeoDoubleParams = 34736
	tagGeoASCIIParams  = 34737
)

// GeoKey values, see https://docs.ogc.org/is/19-008r4/19-008r4.html.
const (
	modelTypeProjected  = 1
	modelTypeGeographic = 2

	rasterPixelIsArea  = 1
	rasterPixelIsPoint = 2

	userDefined = 32767
)

type GeoKey uint16

const (
	GeoKeyGTModelType  GeoKey = 1024
	GeoKeyGTRasterType GeoKey = 1025
	GeoKeyGTCitation   GeoKey = 1026

	GeoKeyGeodeticCRS   GeoKey = 2048
	GeoKeyGeogCitation  GeoKey = 2049
	GeoKeyGeodeticDatum GeoKey = 2050
	GeoKeyAngularUnits  GeoKey = 2054

	GeoKeyProjectedCRS GeoKey = 3072
	GeoKeyPCSCitation  GeoKey = 3073
	GeoKeyProjection   GeoKey = 3074
	GeoKeyLinearUnits2 GeoKey = 3076

	GeoKeyVertical      GeoKey = 4096
	GeoKeyVerticalUnits GeoKey = 4099
)

type ParsedGeoKeys struct {
	Params       map[GeoKey]int
	DoubleParams map[GeoKey]float64
	ASCIIParams  map[GeoKey]string
}

func ParseGeoKeys(directory []uint16, doubleParams []float64, asciiParams []byte) (*ParsedGeoKeys, error) {
	if len(directory) < 4 {
		return nil, errParse
	}

	if keyDirectoryVersion := int(directory[0]); keyDirectoryVersion != 1 {
		return nil, errParse
	}
	if keyRevision := int(directory[1]); keyRevision != 1 {
		return nil, errParse
	}
	if minorRevision := int(directory[2]); minorRevision != 0 && minorRevision != 1 {
		return nil, errParse
	}
	numberOfKeys := int(directory[3])
	if len(directory) != 4+4*numberOfKeys {
		return nil, errParse
	}

	parsedGeoKeys := &ParsedGeoKeys{
		Params:       make(map[GeoKey]int),
		DoubleParams: make(map[GeoKey]float64),
		ASCIIParams:  make(map[GeoKey]string),
	}
	for i := range numberOfKeys {
		keyValues := directory[4+4*i : 4+4*(i+1)]
		key := GeoKey(keyValues[0])
		tiffTagLocation := int(keyValues[1])
		numberOfValues := int(keyValues[2])
		index := int(keyValues[3])
		switch tiffTagLocation {
		case 0:
			if numberOfValues != 1 {
				return nil, errParse
			}
			parsedGeoKeys.Params[key] = index
		case tagGeoDoubleParams:
			if numberOfValues != 1 {
				return nil, errors.ErrUnsupported
			}
			if index >= len(doubleParams) {
				return nil, fmt.Errorf("key %d: %w", key, errParse)
			}
			parsedGeoKeys.DoubleParams[key] = doubleParams[index]
		case tagGeoASCIIParams:
			if index+numberOfValues > len(asciiParams) {
				return nil, fmt.Errorf("key %d: %w", key, errParse)
			}
			parsedGeoKeys.ASCIIParams[key] = string(asciiParams[index : index+numberOfValues])
		default:
			return nil, errors.ErrUnsupported
		}
	}
	return parsedGeoKeys, nil
}

// RasterType returns the raster type, defaulting to PixelIsArea.
func (k *ParsedGeoKeys) RasterType() int {
	if rasterType, ok := k.Params[GeoKeyGTRasterType]; ok {
		return rasterType
	}
	return rasterPixelIsArea
}

// ProjectedCRS returns the EPSG code of the projected CRS, or zero if the
// model is geographic. User defined projected CRSs are not supported.
func (k *ParsedGeoKeys) ProjectedCRS() (int, error) {
	switch modelType := k.Params[GeoKeyGTModelType]; modelType {
	case 0, modelTypeGeographic:
		return 0, nil
	case modelTypeProjected:
		code, ok := k.Params[GeoKeyProjectedCRS]
		if !ok || code == 0 || code == userDefined {
			return 0, fmt.Errorf("projected CRS %d: %w", code, errors.ErrUnsupported)
		}
		return code, nil
	default:
		return 0, fmt.Errorf("model type %d: %w", modelType, errors.ErrUnsupported)
	}
}
