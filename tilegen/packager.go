package tilegen

import (
	"fmt"
	"strings"
	"time"
)

// Export format identifiers.
const (
	FormatTilesZip = "tiles"
	FormatMBTiles  = "mbtiles"
	FormatGPKG     = "gpkg"
	FormatGeoTIFF  = "geotiff"
	FormatPMTiles  = "pmtiles"
)

// PackParams carries the run parameters every packager needs alongside the
// fetched tiles.
type PackParams struct {
	Bounds  LngLatBbox
	MinZoom uint32
	MaxZoom uint32
	Source  TileSource

	// Now supplies timestamps for manifests and filenames; tests pin it.
	// Left nil, time.Now is used.
	Now func() time.Time
}

func (p PackParams) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// timestamp is the filename timestamp: UTC ISO8601 truncated to the minute
// with ':' and '-' stripped, e.g. 20250131T0942.
func (p PackParams) timestamp() string {
	return strings.NewReplacer(":", "", "-", "").
		Replace(p.now().UTC().Format("2006-01-02T15:04"))
}

// Artifact is the terminal output of one generation run. Ownership passes to
// the caller; the generator holds no reference after returning it.
type Artifact struct {
	Format   string
	Blob     []byte
	Filename string
	SizeMB   float64
	// TileCount is the number of tiles actually included, which may be
	// less than the estimate due to fetch failures.
	TileCount int
	// TilesDiscarded counts fetched tiles a packager skipped, e.g. tiles
	// outside the GeoTIFF merge zoom.
	TilesDiscarded int
}

// Packager encodes an accumulated tile set into one container format. Tiles
// arrive sorted by (z, x, y) and are never empty; the orchestrator rejects
// empty runs before dispatch.
type Packager interface {
	Format() string
	Pack(tiles []TileData, params PackParams) (*Artifact, error)
}

// PackagerFor returns the packager implementing the given export format.
func PackagerFor(format string) (Packager, error) {
	switch format {
	case FormatTilesZip:
		return &zipPackager{}, nil
	case FormatMBTiles:
		return &mbtilesPackager{}, nil
	case FormatGPKG:
		return &gpkgPackager{}, nil
	case FormatGeoTIFF:
		return &geotiffPackager{}, nil
	case FormatPMTiles:
		return &pmtilesPackager{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ExportFormats lists the supported export format identifiers.
func ExportFormats() []string {
	return []string{FormatTilesZip, FormatMBTiles, FormatGPKG, FormatGeoTIFF, FormatPMTiles}
}

func newArtifact(format, filename string, blob []byte, tileCount, discarded int) *Artifact {
	return &Artifact{
		Format:         format,
		Blob:           blob,
		Filename:       filename,
		SizeMB:         float64(len(blob)) / (1024 * 1024),
		TileCount:      tileCount,
		TilesDiscarded: discarded,
	}
}
