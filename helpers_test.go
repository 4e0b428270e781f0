package elevation

import (
	"bytes"
	"compress/lzw"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/ctessum/cdf"
	"github.com/klauspost/compress/gzip"
)

const testFillValue = -32768

// A netCDFFixture describes a NetCDF tile to write.
type netCDFFixture struct {
	latName string
	lonName string
	lats    []float64
	lons    []float64
	band    []float32 // Row major.
}

// writeNetCDF writes fixture to a new file in dir and returns its path.
func writeNetCDF(t *testing.T, dir, name string, fixture netCDFFixture) string {
	t.Helper()
	latName, lonName := fixture.latName, fixture.lonName
	if latName == "" {
		latName = "lat"
	}
	if lonName == "" {
		lonName = "lon"
	}

	h := cdf.NewHeader([]string{latName, lonName}, []int{len(fixture.lats), len(fixture.lons)})
	h.AddAttribute("", "Conventions", "CF-1.5")
	h.AddVariable(latName, []string{latName}, []float64{0})
	h.AddVariable(lonName, []string{lonName}, []float64{0})
	h.AddVariable(netCDFBand, []string{latName, lonName}, []float32{0})
	h.AddAttribute(netCDFBand, netCDFFillValueKey, []float32{testFillValue})
	h.Define()

	filename := filepath.Join(dir, name)
	file, err := os.Create(filename)
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, file.Close())
	}()

	f, err := cdf.Create(file, h)
	assert.NoError(t, err)
	for _, variable := range []struct {
		name string
		data any
	}{
		{name: latName, data: fixture.lats},
		{name: lonName, data: fixture.lons},
		{name: netCDFBand, data: fixture.band},
	} {
		end := f.Header.Lengths(variable.name)
		w := f.Writer(variable.name, make([]int, len(end)), end)
		_, err := w.Write(variable.data)
		assert.NoError(t, err)
	}
	return filename
}

// gzipFile writes a gzip compressed copy of filename to filename.gz.
func gzipFile(t *testing.T, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filename)
	assert.NoError(t, err)
	var buffer bytes.Buffer
	gzipWriter := gzip.NewWriter(&buffer)
	_, err = gzipWriter.Write(data)
	assert.NoError(t, err)
	assert.NoError(t, gzipWriter.Close())
	assert.NoError(t, os.WriteFile(filename+".gz", buffer.Bytes(), 0o666))
	return filename + ".gz"
}

// TIFF field types.
const (
	tiffASCII  = 2
	tiffShort  = 3
	tiffLong   = 4
	tiffDouble = 12
)

type tiffEntry struct {
	tag       uint16
	fieldType uint16
	count     uint32
	data      []byte
}

// A geoTIFFFixture describes a single strip, single band GeoTIFF to write.
type geoTIFFFixture struct {
	width       int
	length      int
	int16s      []int16   // Row major, if the samples are 16-bit integers.
	float32s    []float32 // Row major, if the samples are 32-bit floats.
	compression uint16
	predictor   uint16
	scale       [2]float64
	tiepoint    [2]float64
	geoKeys     []uint16
	noData      string
}

// encodeGeoTIFF returns fixture as a little endian TIFF.
func encodeGeoTIFF(t *testing.T, fixture geoTIFFFixture) []byte {
	t.Helper()

	var bitsPerSample, sampleFormat uint16
	var rows [][]byte
	for row := range fixture.length {
		var rowData []byte
		for col := range fixture.width {
			i := row*fixture.width + col
			if fixture.int16s != nil {
				rowData = binary.LittleEndian.AppendUint16(rowData, uint16(fixture.int16s[i]))
			} else {
				rowData = binary.LittleEndian.AppendUint32(rowData, math.Float32bits(fixture.float32s[i]))
			}
		}
		rows = append(rows, rowData)
	}
	if fixture.int16s != nil {
		bitsPerSample, sampleFormat = 16, sampleFormatInt
	} else {
		bitsPerSample, sampleFormat = 32, sampleFormatFloat
	}

	predictor := fixture.predictor
	if predictor == 0 {
		predictor = predictorNone
	}
	if predictor == predictorHorizontal {
		for _, rowData := range rows {
			for i := len(rowData) - 2; i >= 2; i -= 2 {
				value := binary.LittleEndian.Uint16(rowData[i:])
				prev := binary.LittleEndian.Uint16(rowData[i-2:])
				binary.LittleEndian.PutUint16(rowData[i:], value-prev)
			}
		}
	}
	stripData := slices.Concat(rows...)

	compression := fixture.compression
	if compression == 0 {
		compression = compressionNone
	}
	if compression == compressionLZW {
		// Short streams never reach a code width change so compress/lzw
		// output is valid TIFF LZW.
		var buffer bytes.Buffer
		lzwWriter := lzw.NewWriter(&buffer, lzw.MSB, 8)
		_, err := lzwWriter.Write(stripData)
		assert.NoError(t, err)
		assert.NoError(t, lzwWriter.Close())
		stripData = buffer.Bytes()
	}

	shorts := func(values ...uint16) []byte {
		var data []byte
		for _, value := range values {
			data = binary.LittleEndian.AppendUint16(data, value)
		}
		return data
	}
	long := func(value uint32) []byte {
		return binary.LittleEndian.AppendUint32(nil, value)
	}
	doubles := func(values ...float64) []byte {
		var data []byte
		for _, value := range values {
			data = binary.LittleEndian.AppendUint64(data, math.Float64bits(value))
		}
		return data
	}

	// The strip immediately follows the header.
	const stripOffset = 8
	entries := []tiffEntry{
		{256, tiffShort, 1, shorts(uint16(fixture.width))},
		{257, tiffShort, 1, shorts(uint16(fixture.length))},
		{258, tiffShort, 1, shorts(bitsPerSample)},
		{259, tiffShort, 1, shorts(compression)},
		{262, tiffShort, 1, shorts(1)},
		{273, tiffLong, 1, long(stripOffset)},
		{277, tiffShort, 1, shorts(1)},
		{278, tiffLong, 1, long(uint32(fixture.length))},
		{279, tiffLong, 1, long(uint32(len(stripData)))},
		{284, tiffShort, 1, shorts(1)},
		{317, tiffShort, 1, shorts(predictor)},
		{339, tiffShort, 1, shorts(sampleFormat)},
		{33550, tiffDouble, 3, doubles(fixture.scale[0], fixture.scale[1], 0)},
		{33922, tiffDouble, 6, doubles(0, 0, 0, fixture.tiepoint[0], fixture.tiepoint[1], 0)},
	}
	if fixture.geoKeys != nil {
		entries = append(entries, tiffEntry{34735, tiffShort, uint32(len(fixture.geoKeys)), shorts(fixture.geoKeys...)})
	}
	if fixture.noData != "" {
		noData := append([]byte(fixture.noData), 0)
		entries = append(entries, tiffEntry{42113, tiffASCII, uint32(len(noData)), noData})
	}

	var b []byte
	b = append(b, 'I', 'I')
	b = binary.LittleEndian.AppendUint16(b, 42)
	ifdOffset := stripOffset + len(stripData)
	ifdOffset += ifdOffset % 2
	b = binary.LittleEndian.AppendUint32(b, uint32(ifdOffset))
	b = append(b, stripData...)
	for len(b) < ifdOffset {
		b = append(b, 0)
	}

	valuesOffset := ifdOffset + 2 + 12*len(entries) + 4
	var values []byte
	b = binary.LittleEndian.AppendUint16(b, uint16(len(entries)))
	for _, entry := range entries {
		b = binary.LittleEndian.AppendUint16(b, entry.tag)
		b = binary.LittleEndian.AppendUint16(b, entry.fieldType)
		b = binary.LittleEndian.AppendUint32(b, entry.count)
		if len(entry.data) <= 4 {
			b = append(b, entry.data...)
			b = append(b, make([]byte, 4-len(entry.data))...)
			continue
		}
		b = binary.LittleEndian.AppendUint32(b, uint32(valuesOffset+len(values)))
		values = append(values, entry.data...)
		if len(values)%2 != 0 {
			values = append(values, 0)
		}
	}
	b = binary.LittleEndian.AppendUint32(b, 0)
	return append(b, values...)
}

// geographicGeoKeys are the GeoKeys of a EPSG:4326 raster with the given
// raster type.
func geographicGeoKeys(rasterType uint16) []uint16 {
	return []uint16{
		1, 1, 0, 3,
		uint16(GeoKeyGTModelType), 0, 1, modelTypeGeographic,
		uint16(GeoKeyGTRasterType), 0, 1, rasterType,
		uint16(GeoKeyGeodeticCRS), 0, 1, 4326,
	}
}

// projectedGeoKeys are the GeoKeys of a PixelIsArea raster in the projected
// CRS with the given EPSG code.
func projectedGeoKeys(code uint16) []uint16 {
	return []uint16{
		1, 1, 0, 3,
		uint16(GeoKeyGTModelType), 0, 1, modelTypeProjected,
		uint16(GeoKeyGTRasterType), 0, 1, rasterPixelIsArea,
		uint16(GeoKeyProjectedCRS), 0, 1, code,
	}
}
