package elevation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// A Decoder decodes the tile identified by a locator.
type Decoder interface {
	Decode(ctx context.Context, locator string) (*RasterTile, error)
}

// A DecoderFunc is a function that implements Decoder.
type DecoderFunc func(ctx context.Context, locator string) (*RasterTile, error)

// Decode implements Decoder.
func (f DecoderFunc) Decode(ctx context.Context, locator string) (*RasterTile, error) {
	return f(ctx, locator)
}

// A formatFunc decodes a tile from r.
type formatFunc func(r *io.SectionReader) (*RasterTile, error)

// An FSDecoder decodes tiles from a filesystem. The format is determined by
// the file extension: .nc files are NetCDF, .tif and .tiff files are GeoTIFF.
// Files with a further .gz extension are decompressed first.
type FSDecoder struct {
	fsys    fs.FS
	formats map[string]formatFunc
}

// NewFSDecoder returns a new FSDecoder that reads tiles from fsys.
func NewFSDecoder(fsys fs.FS) *FSDecoder {
	return &FSDecoder{
		fsys: fsys,
		formats: map[string]formatFunc{
			".nc":   DecodeNetCDF,
			".tif":  DecodeGeoTIFF,
			".tiff": DecodeGeoTIFF,
		},
	}
}

// Decode implements Decoder.
func (d *FSDecoder) Decode(ctx context.Context, locator string) (*RasterTile, error) {
	name := strings.ToLower(locator)
	compressed := false
	if strings.HasSuffix(name, ".gz") {
		name = strings.TrimSuffix(name, ".gz")
		compressed = true
	}
	format, ok := d.formats[path.Ext(name)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path.Ext(name), errors.ErrUnsupported)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := d.fsys.Open(locator)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var r *io.SectionReader
	if compressed {
		r, err = gunzip(file)
	} else {
		r, err = sectionReader(file)
	}
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return format(r)
}

// sectionReader returns a reader for the whole of file, reading it into memory
// if it does not support random access.
func sectionReader(file fs.File) (*io.SectionReader, error) {
	if readerAt, ok := file.(io.ReaderAt); ok {
		fileInfo, err := file.Stat()
		if err != nil {
			return nil, err
		}
		return io.NewSectionReader(readerAt, 0, fileInfo.Size()), nil
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return io.NewSectionReader(bytes.NewReader(data), 0, int64(len(data))), nil
}

func gunzip(r io.Reader) (*io.SectionReader, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer gzipReader.Close()
	data, err := io.ReadAll(gzipReader)
	if err != nil {
		return nil, err
	}
	return io.NewSectionReader(bytes.NewReader(data), 0, int64(len(data))), nil
}
