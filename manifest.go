package elevation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
)

// DefaultManifestName is the conventional name of a manifest in a data
// directory.
const DefaultManifestName = "summary.json"

// A manifestRecord is a single tile in a manifest. Coords are
// [latMin, latMax, lonMin, lonMax].
type manifestRecord struct {
	File   string     `json:"file"`
	Coords [4]float64 `json:"coords"`
}

// A rawManifestRecord is a manifestRecord that has not been validated yet.
type rawManifestRecord struct {
	File   *string           `json:"file"`
	Coords []json.RawMessage `json:"coords"`
}

// LoadManifest reads the manifest name from fsys.
func LoadManifest(fsys fs.FS, name string, options ...TileIndexOption) (*TileIndex, error) {
	file, err := fsys.Open(name)
	if err != nil {
		return nil, &ManifestError{Name: name, Record: -1, Err: err}
	}
	defer file.Close()
	tileIndex, err := ReadManifest(file, options...)
	if err != nil {
		var manifestErr *ManifestError
		if errors.As(err, &manifestErr) {
			manifestErr.Name = name
		}
		return nil, err
	}
	return tileIndex, nil
}

// ReadManifest reads a manifest from r. The order of the tiles in the
// manifest is preserved.
func ReadManifest(r io.Reader, options ...TileIndexOption) (*TileIndex, error) {
	var rawRecords []json.RawMessage
	if err := json.NewDecoder(r).Decode(&rawRecords); err != nil {
		return nil, &ManifestError{Record: -1, Err: err}
	}
	tiles := make([]TileMetadata, 0, len(rawRecords))
	for index, rawRecord := range rawRecords {
		tile, err := parseManifestRecord(rawRecord)
		if err != nil {
			return nil, &ManifestError{Record: index, Err: err}
		}
		tiles = append(tiles, tile)
	}
	return NewTileIndex(tiles, options...), nil
}

// WriteManifest writes tiles to w as a manifest.
func WriteManifest(w io.Writer, tiles []TileMetadata) error {
	records := make([]manifestRecord, len(tiles))
	for i, tile := range tiles {
		records[i] = manifestRecord{
			File:   tile.Locator,
			Coords: [4]float64{tile.LatMin(), tile.LatMax(), tile.LonMin(), tile.LonMax()},
		}
	}
	return json.NewEncoder(w).Encode(records)
}

// BuildManifest decodes every file in fsys matching pattern and returns
// their metadata in lexical order of file name.
func BuildManifest(ctx context.Context, fsys fs.FS, decoder Decoder, pattern string) ([]TileMetadata, error) {
	names, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, err
	}
	tiles := make([]TileMetadata, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rasterTile, err := decoder.Decode(ctx, name)
		if err != nil {
			return nil, &TileLoadError{Locator: name, Err: err}
		}
		bound, err := rasterTile.Bound()
		if err != nil {
			return nil, &TileLoadError{Locator: name, Err: err}
		}
		tiles = append(tiles, TileMetadata{
			Locator: name,
			Bound:   bound,
		})
	}
	return tiles, nil
}

func parseManifestRecord(data json.RawMessage) (TileMetadata, error) {
	var rawRecord rawManifestRecord
	if err := json.Unmarshal(data, &rawRecord); err != nil {
		return TileMetadata{}, err
	}

	if rawRecord.File == nil || *rawRecord.File == "" {
		return TileMetadata{}, errMissingFile
	}
	locator, err := cleanLocator(*rawRecord.File)
	if err != nil {
		return TileMetadata{}, err
	}

	if len(rawRecord.Coords) != 4 {
		return TileMetadata{}, fmt.Errorf("%w, got %d", errCoordsArity, len(rawRecord.Coords))
	}
	var coords [4]float64
	for i, rawCoord := range rawRecord.Coords {
		var coord *float64
		if err := json.Unmarshal(rawCoord, &coord); err != nil {
			return TileMetadata{}, fmt.Errorf("coords[%d]: %w", i, err)
		}
		if coord == nil {
			return TileMetadata{}, fmt.Errorf("coords[%d]: not a number", i)
		}
		coords[i] = *coord
	}

	latMin, latMax, lonMin, lonMax := coords[0], coords[1], coords[2], coords[3]
	if latMin > latMax {
		return TileMetadata{}, fmt.Errorf("latitude: %w", errInvertedBound)
	}
	if lonMin > lonMax {
		return TileMetadata{}, fmt.Errorf("longitude: %w", errInvertedBound)
	}
	return NewTileMetadata(locator, latMin, latMax, lonMin, lonMax), nil
}

// cleanLocator converts a manifest file name into a path relative to the
// data directory.
func cleanLocator(file string) (string, error) {
	locator := path.Clean(strings.TrimLeft(filepath.ToSlash(file), "/"))
	if !fs.ValidPath(locator) || locator == "." {
		return "", fmt.Errorf("%s: invalid file name", file)
	}
	return locator, nil
}
