package elevation

import (
	"slices"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// spatialIndexPadding pads tile bounds and query points in the spatial
// index so that points on tile edges are always candidates. Candidates are
// checked exactly in Covers.
const spatialIndexPadding = 1e-9

// A TileMetadata describes a tile: its locator and the inclusive geographic
// bound of its samples.
type TileMetadata struct {
	Locator string
	Bound   orb.Bound
}

// NewTileMetadata returns a new TileMetadata.
func NewTileMetadata(locator string, latMin, latMax, lonMin, lonMax float64) TileMetadata {
	return TileMetadata{
		Locator: locator,
		Bound: orb.Bound{
			Min: orb.Point{lonMin, latMin},
			Max: orb.Point{lonMax, latMax},
		},
	}
}

func (m TileMetadata) LatMin() float64 { return m.Bound.Min.Lat() }
func (m TileMetadata) LatMax() float64 { return m.Bound.Max.Lat() }
func (m TileMetadata) LonMin() float64 { return m.Bound.Min.Lon() }
func (m TileMetadata) LonMax() float64 { return m.Bound.Max.Lon() }

// Contains returns whether p is inside m's bound, edges included.
// orb.Bound.Contains is not used because it reports NaN points as contained.
func (m TileMetadata) Contains(p Point) bool {
	return m.LatMin() <= p.Lat && p.Lat <= m.LatMax() &&
		m.LonMin() <= p.Lon && p.Lon <= m.LonMax()
}

// A TileIndex is an ordered, immutable list of tiles. When tiles overlap, the
// first tile in the list wins. A TileIndex is safe for concurrent use.
type TileIndex struct {
	tiles        []TileMetadata
	spatialIndex bool
	rtree        *rtreego.Rtree
}

// A TileIndexOption sets an option on a TileIndex.
type TileIndexOption func(*TileIndex)

// WithSpatialIndex enables an R-tree to find candidate tiles. It does not
// change which tile Covers returns.
func WithSpatialIndex() TileIndexOption {
	return func(i *TileIndex) {
		i.spatialIndex = true
	}
}

// NewTileIndex returns a new TileIndex containing a copy of tiles.
func NewTileIndex(tiles []TileMetadata, options ...TileIndexOption) *TileIndex {
	i := &TileIndex{
		tiles: slices.Clone(tiles),
	}
	for _, option := range options {
		option(i)
	}
	if i.spatialIndex && len(i.tiles) > 0 {
		i.rtree = newTileRtree(i.tiles)
	}
	return i
}

// Covers returns the first tile whose bound contains p.
func (i *TileIndex) Covers(p Point) (TileMetadata, bool) {
	if i.rtree != nil {
		if index, ok := i.coversRtree(p); ok {
			if index < 0 {
				return TileMetadata{}, false
			}
			return i.tiles[index], true
		}
	}
	for _, tile := range i.tiles {
		if tile.Contains(p) {
			return tile, true
		}
	}
	return TileMetadata{}, false
}

// Len returns the number of tiles in i.
func (i *TileIndex) Len() int {
	return len(i.tiles)
}

// Tiles returns a copy of the tiles in i, in order.
func (i *TileIndex) Tiles() []TileMetadata {
	return slices.Clone(i.tiles)
}

// coversRtree returns the index of the first tile containing p, or -1. ok is
// false if p cannot be queried in the R-tree.
func (i *TileIndex) coversRtree(p Point) (index int, ok bool) {
	query, err := rtreego.NewRect(
		rtreego.Point{p.Lon - spatialIndexPadding, p.Lat - spatialIndexPadding},
		[]float64{2 * spatialIndexPadding, 2 * spatialIndexPadding},
	)
	if err != nil {
		return 0, false
	}
	index = -1
	for _, spatial := range i.rtree.SearchIntersect(query) {
		entry := spatial.(*tileRtreeEntry)
		if (index < 0 || entry.index < index) && i.tiles[entry.index].Contains(p) {
			index = entry.index
		}
	}
	return index, true
}

type tileRtreeEntry struct {
	index int
	rect  rtreego.Rect
}

func (e *tileRtreeEntry) Bounds() rtreego.Rect {
	return e.rect
}

func newTileRtree(tiles []TileMetadata) *rtreego.Rtree {
	rtree := rtreego.NewTree(2, 25, 50)
	for index, tile := range tiles {
		rect, err := rtreego.NewRect(
			rtreego.Point{tile.LonMin() - spatialIndexPadding, tile.LatMin() - spatialIndexPadding},
			[]float64{
				tile.LonMax() - tile.LonMin() + 2*spatialIndexPadding,
				tile.LatMax() - tile.LatMin() + 2*spatialIndexPadding,
			},
		)
		if err != nil {
			// Bounds are validated on load, so this only happens for
			// non-finite bounds. Fall back to the linear scan.
			return nil
		}
		rtree.Insert(&tileRtreeEntry{
			index: index,
			rect:  rect,
		})
	}
	return rtree
}
