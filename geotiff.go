package elevation

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	_ "github.com/google/tiff/geotiff"
	"golang.org/x/image/tiff/lzw"
)

// TIFF constants.
const (
	compressionNone = 1
	compressionLZW  = 5

	predictorNone       = 1
	predictorHorizontal = 2

	sampleFormatInt   = 2
	sampleFormatFloat = 3
)

var errShortRead = errors.New("short read")

// A geoTIFFIFD is a struct into which github.com/google/tiff can unmarshal an
// IFD.
type geoTIFFIFD struct {
	ImageWidth                uint16    `tiff:"field,tag=256"`
	ImageLength               uint16    `tiff:"field,tag=257"`
	BitsPerSample             uint16    `tiff:"field,tag=258"`
	Compression               uint16    `tiff:"field,tag=259"`
	PhotometricInterpretation uint16    `tiff:"field,tag=262"`
	StripOffsets              []uint64  `tiff:"field,tag=273"`
	SamplesPerPixel           uint16    `tiff:"field,tag=277"`
	RowsPerStrip              uint32    `tiff:"field,tag=278"`
	StripByteCounts           []uint64  `tiff:"field,tag=279"`
	PlanarConfiguration       uint16    `tiff:"field,tag=284"`
	Predictor                 uint16    `tiff:"field,tag=317"`
	TileWidth                 uint16    `tiff:"field,tag=322"`
	TileLength                uint16    `tiff:"field,tag=323"`
	TileOffsets               []uint64  `tiff:"field,tag=324"`
	TileByteCounts            []uint64  `tiff:"field,tag=325"`
	SampleFormat              uint16    `tiff:"field,tag=339"`
	ModelPixelScaleTag        []float64 `tiff:"field,tag=33550"`
	ModelTiepointTag          []float64 `tiff:"field,tag=33922"`
	GeoKeyDirectoryTag        []uint16  `tiff:"field,tag=34735"`
	GeoDoubleParamsTag        []float64 `tiff:"field,tag=34736"`
	GeoASCIIParamsTag         string    `tiff:"field,tag=34737"`
	GDALNoData                string    `tiff:"field,tag=42113"`
}

// A geoTIFFLayout describes how the samples of a GeoTIFF are split into
// blocks, which are either tiles or strips.
type geoTIFFLayout struct {
	imageWidth    int
	imageLength   int
	blockWidth    int
	blockLength   int
	blocksAcross  int
	blocksDown    int
	offsets       []uint64
	byteCounts    []uint64
	bytesPerValue int
	compression   uint16
	predictor     uint16
	decodeValue   func([]byte) float64
	strips        bool
}

// DecodeGeoTIFF decodes a single band GeoTIFF tile with 16-bit signed integer
// or 32-bit floating point samples, uncompressed or LZW compressed, in tiles
// or strips. Axes are the coordinates of the pixel centers, or of the pixel
// corners if the raster type is PixelIsPoint. If the tile is in an EPSG
// projected CRS then the tile carries the projection.
func DecodeGeoTIFF(r *io.SectionReader) (*RasterTile, error) {
	tiffTIFF, err := tiff.Parse(r, tiff.GetTagSpace("GeoTIFF"), nil)
	if err != nil {
		return nil, err
	}

	// Overviews follow the full resolution image.
	if len(tiffTIFF.IFDs()) == 0 {
		return nil, errors.New("no IFDs")
	}

	var ifd geoTIFFIFD
	if err := tiff.UnmarshalIFD(tiffTIFF.IFDs()[0], &ifd); err != nil {
		return nil, err
	}

	layout, err := newGeoTIFFLayout(&ifd)
	if err != nil {
		return nil, err
	}

	lats, lons, projection, err := geoTIFFAxes(&ifd, layout.imageWidth, layout.imageLength)
	if err != nil {
		return nil, err
	}

	samples, err := layout.readSamples(r)
	if err != nil {
		return nil, err
	}

	var options []RasterTileOption
	if noData := strings.Trim(ifd.GDALNoData, " \x00"); noData != "" {
		fillValue, err := strconv.ParseFloat(noData, 64)
		if err != nil {
			return nil, fmt.Errorf("GDAL_NODATA: %w", err)
		}
		if ifd.SampleFormat == sampleFormatFloat {
			fillValue = float64(float32(fillValue))
		}
		options = append(options, WithFillValue(fillValue))
	}
	if projection != nil {
		options = append(options, WithProjection(projection))
	}
	return newRasterTile(lats, lons, samples, options...)
}

func newGeoTIFFLayout(ifd *geoTIFFIFD) (*geoTIFFLayout, error) {
	predictor := ifd.Predictor
	if predictor == 0 {
		predictor = predictorNone
	}
	if ifd.SamplesPerPixel != 1 ||
		ifd.PlanarConfiguration > 1 ||
		ifd.PhotometricInterpretation > 1 ||
		ifd.Compression != compressionNone && ifd.Compression != compressionLZW ||
		ifd.ImageWidth == 0 || ifd.ImageLength == 0 {
		return nil, errors.ErrUnsupported
	}

	l := &geoTIFFLayout{
		imageWidth:  int(ifd.ImageWidth),
		imageLength: int(ifd.ImageLength),
		compression: ifd.Compression,
		predictor:   predictor,
	}

	switch {
	case ifd.SampleFormat == sampleFormatFloat && ifd.BitsPerSample == 32 && predictor == predictorNone:
		l.bytesPerValue = 4
		l.decodeValue = func(b []byte) float64 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		}
	case ifd.SampleFormat == sampleFormatInt && ifd.BitsPerSample == 16 &&
		(predictor == predictorNone || predictor == predictorHorizontal):
		l.bytesPerValue = 2
		l.decodeValue = func(b []byte) float64 {
			return float64(int16(binary.LittleEndian.Uint16(b)))
		}
	default:
		return nil, errors.ErrUnsupported
	}

	if ifd.TileWidth != 0 && ifd.TileLength != 0 {
		l.blockWidth = int(ifd.TileWidth)
		l.blockLength = int(ifd.TileLength)
		l.offsets = ifd.TileOffsets
		l.byteCounts = ifd.TileByteCounts
	} else {
		l.blockWidth = l.imageWidth
		l.blockLength = int(ifd.RowsPerStrip)
		if l.blockLength == 0 || l.blockLength > l.imageLength {
			l.blockLength = l.imageLength
		}
		l.offsets = ifd.StripOffsets
		l.byteCounts = ifd.StripByteCounts
		l.strips = true
	}
	l.blocksAcross = (l.imageWidth + l.blockWidth - 1) / l.blockWidth
	l.blocksDown = (l.imageLength + l.blockLength - 1) / l.blockLength
	blocksPerImage := l.blocksAcross * l.blocksDown
	if len(l.offsets) != blocksPerImage || len(l.byteCounts) != blocksPerImage {
		return nil, errors.New("incorrect number of block byte counts or offsets")
	}
	return l, nil
}

// readSamples reads all samples in row-major order.
func (l *geoTIFFLayout) readSamples(r io.ReaderAt) ([]float64, error) {
	samples := make([]float64, l.imageWidth*l.imageLength)
	for blockRow := range l.blocksDown {
		for blockCol := range l.blocksAcross {
			blockIndex := blockCol + l.blocksAcross*blockRow
			rows := l.blockLength
			if l.strips {
				// The last strip may be short.
				rows = min(l.blockLength, l.imageLength-blockRow*l.blockLength)
			}
			blockData, err := l.readBlock(r, blockIndex, rows)
			if err != nil {
				return nil, err
			}
			for row := range rows {
				y := blockRow*l.blockLength + row
				if y >= l.imageLength {
					break
				}
				rowData := blockData[row*l.blockWidth*l.bytesPerValue : (row+1)*l.blockWidth*l.bytesPerValue]
				if l.predictor == predictorHorizontal {
					undoHorizontalDifferencing16(rowData)
				}
				for col := range l.blockWidth {
					x := blockCol*l.blockWidth + col
					if x >= l.imageWidth {
						break
					}
					samples[y*l.imageWidth+x] = l.decodeValue(rowData[col*l.bytesPerValue : (col+1)*l.bytesPerValue])
				}
			}
		}
	}
	return samples, nil
}

// readBlock returns the uncompressed data of a block with the given number of
// rows.
func (l *geoTIFFLayout) readBlock(r io.ReaderAt, blockIndex, rows int) ([]byte, error) {
	byteCount := l.byteCounts[blockIndex]
	offset := l.offsets[blockIndex]
	compressedData := make([]byte, byteCount)
	switch n, err := r.ReadAt(compressedData, int64(offset)); {
	case n == int(byteCount):
	case err != nil:
		return nil, err
	default:
		return nil, errShortRead
	}

	size := rows * l.blockWidth * l.bytesPerValue
	if l.compression == compressionNone {
		if len(compressedData) < size {
			return nil, errShortRead
		}
		return compressedData[:size], nil
	}

	data := make([]byte, size)
	lzwReader := lzw.NewReader(bytes.NewReader(compressedData), lzw.MSB, 8)
	defer lzwReader.Close()
	if _, err := io.ReadFull(lzwReader, data); err != nil {
		return nil, err
	}
	return data, nil
}

// undoHorizontalDifferencing16 reverses the TIFF horizontal predictor on a row
// of little endian 16-bit samples.
func undoHorizontalDifferencing16(row []byte) {
	for i := 2; i+1 < len(row); i += 2 {
		prev := binary.LittleEndian.Uint16(row[i-2:])
		delta := binary.LittleEndian.Uint16(row[i:])
		binary.LittleEndian.PutUint16(row[i:], prev+delta)
	}
}

// geoTIFFAxes returns the coordinate axes of a GeoTIFF and its projection, if
// any.
func geoTIFFAxes(ifd *geoTIFFIFD, width, length int) ([]float64, []float64, Projection, error) {
	if len(ifd.ModelPixelScaleTag) != 3 || len(ifd.ModelTiepointTag) != 6 {
		return nil, nil, nil, errors.ErrUnsupported
	}
	if i, j := ifd.ModelTiepointTag[0], ifd.ModelTiepointTag[1]; i != 0 || j != 0 {
		return nil, nil, nil, errors.ErrUnsupported
	}
	scaleX, scaleY := ifd.ModelPixelScaleTag[0], ifd.ModelPixelScaleTag[1]
	if scaleX <= 0 || scaleY <= 0 {
		return nil, nil, nil, errors.ErrUnsupported
	}
	x, y := ifd.ModelTiepointTag[3], ifd.ModelTiepointTag[4]

	rasterType := rasterPixelIsArea
	var projection Projection
	if len(ifd.GeoKeyDirectoryTag) != 0 {
		parsedGeoKeys, err := ParseGeoKeys(ifd.GeoKeyDirectoryTag, ifd.GeoDoubleParamsTag, []byte(ifd.GeoASCIIParamsTag))
		if err != nil {
			return nil, nil, nil, err
		}
		rasterType = parsedGeoKeys.RasterType()
		code, err := parsedGeoKeys.ProjectedCRS()
		if err != nil {
			return nil, nil, nil, err
		}
		if code != 0 {
			projection, err = NewEPSGProjection(code)
			if err != nil {
				return nil, nil, nil, err
			}
		}
	}

	offset := 0.5
	if rasterType == rasterPixelIsPoint {
		offset = 0
	}
	lons := make([]float64, width)
	for col := range lons {
		lons[col] = x + (float64(col)+offset)*scaleX
	}
	lats := make([]float64, length)
	for row := range lats {
		lats[row] = y - (float64(row)+offset)*scaleY
	}
	return lats, lons, projection, nil
}
