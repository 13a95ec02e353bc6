package tilegen

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
)

const (
	// MinZoomLimit and MaxZoomLimit bound the zoom levels the generator
	// will accept. 22 matches the deepest level any registered source
	// can serve.
	MinZoomLimit = 1
	MaxZoomLimit = 22

	// TileSize is the pixel edge length of a slippy-map raster tile.
	TileSize = 256
)

// LngLatBbox is a rectangular geographic extent in degrees, defined by its
// south-west and north-east corners. Longitudes are treated as a simple
// rectangle; there is no antimeridian handling.
type LngLatBbox struct {
	West  float64
	South float64
	East  float64
	North float64
}

// Valid reports whether the box has a non-inverted latitude span and all
// corners within world bounds.
func (b LngLatBbox) Valid() bool {
	if b.South > b.North {
		return false
	}
	if b.South < -90 || b.North > 90 {
		return false
	}
	if b.West < -180 || b.West > 180 || b.East < -180 || b.East > 180 {
		return false
	}
	return true
}

// Bound returns the box as an orb.Bound in lon/lat order.
func (b LngLatBbox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}

func (b LngLatBbox) String() string {
	return fmt.Sprintf("%f,%f,%f,%f", b.West, b.South, b.East, b.North)
}

// Tile addresses a single slippy-map tile in XYZ (top-down Y) order.
type Tile struct {
	Z uint32
	X uint32
	Y uint32
}

func (t Tile) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// TileData is a fetched raster tile: its address plus the raw image bytes
// exactly as returned by the source.
type TileData struct {
	Tile Tile
	Data []byte
}

// TileRange is the inclusive x/y index rectangle covering a bounding box at
// one zoom level.
type TileRange struct {
	Zoom uint32
	MinX uint32
	MaxX uint32
	MinY uint32
	MaxY uint32
}

// Count returns the number of tiles in the range. An inverted range, which
// an inverted-longitude bounding box produces, holds no tiles.
func (r TileRange) Count() int {
	if r.MinX > r.MaxX || r.MinY > r.MaxY {
		return 0
	}
	return int(r.MaxX-r.MinX+1) * int(r.MaxY-r.MinY+1)
}

// DegToTile converts geographic coordinates to the slippy-map tile indices
// containing them at the given zoom, per the standard Web Mercator / OSM
// tiling scheme. Indices are clamped to [0, 2^zoom-1], so the poles and the
// antimeridian land on the edge tiles. Behavior for NaN inputs is undefined.
func DegToTile(latDeg, lonDeg float64, zoom uint32) (x, y uint32) {
	n := math.Exp2(float64(zoom))
	latRad := latDeg * math.Pi / 180
	xf := math.Floor((lonDeg + 180) / 360 * n)
	yf := math.Floor((1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * n)
	return clampIndex(xf, n), clampIndex(yf, n)
}

func clampIndex(v, n float64) uint32 {
	if v < 0 {
		return 0
	}
	if v > n-1 {
		return uint32(n - 1)
	}
	return uint32(v)
}

// TileRangeForBounds computes the tile index rectangle covering bbox at the
// given zoom. Tile Y grows southward, so the range's MinY comes from the
// north-east corner and MaxY from the south-west corner.
func TileRangeForBounds(bbox LngLatBbox, zoom uint32) TileRange {
	minX, maxY := DegToTile(bbox.South, bbox.West, zoom)
	maxX, minY := DegToTile(bbox.North, bbox.East, zoom)
	return TileRange{Zoom: zoom, MinX: minX, MaxX: maxX, MinY: minY, MaxY: maxY}
}

// FlipY converts a top-down (XYZ) tile row to the bottom-up (TMS) row used
// by MBTiles and GeoPackage containers: 2^z - 1 - y.
func FlipY(zoom, y uint32) uint32 {
	return (1 << zoom) - 1 - y
}

// SortTiles orders tiles by (z, x, y) so packaged output is reproducible
// regardless of fetch arrival order.
func SortTiles(tiles []TileData) {
	sort.Slice(tiles, func(i, j int) bool {
		a, b := tiles[i].Tile, tiles[j].Tile
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
}
