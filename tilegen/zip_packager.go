package tilegen

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
)

// zipPackager writes each tile under tiles/{z}/{x}/{y}.png alongside a
// manifest.json and a README.txt describing the layout.
type zipPackager struct{}

func (p *zipPackager) Format() string { return FormatTilesZip }

type zipManifestBounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

type zipManifest struct {
	Type       string            `json:"type"`
	Version    string            `json:"version"`
	Created    string            `json:"created"`
	TotalTiles int               `json:"total_tiles"`
	Structure  string            `json:"structure"`
	Bounds     zipManifestBounds `json:"bounds"`
	ZoomRange  string            `json:"zoom_range"`
	TileSource string            `json:"tile_source"`
	Usage      string            `json:"usage"`
}

func (p *zipPackager) Pack(tiles []TileData, params PackParams) (*Artifact, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	for _, t := range tiles {
		path := fmt.Sprintf("tiles/%d/%d/%d.png", t.Tile.Z, t.Tile.X, t.Tile.Y)
		w, err := zw.Create(path)
		if err != nil {
			return nil, fmt.Errorf("%w: creating %s: %v", ErrPackaging, path, err)
		}
		if _, err := w.Write(t.Data); err != nil {
			return nil, fmt.Errorf("%w: writing %s: %v", ErrPackaging, path, err)
		}
	}

	manifest := zipManifest{
		Type:       "GeoPulse Map Tiles",
		Version:    "1.0",
		Created:    params.now().UTC().Format("2006-01-02T15:04:05Z"),
		TotalTiles: len(tiles),
		Structure:  "tiles/{z}/{x}/{y}.png",
		Bounds: zipManifestBounds{
			South: params.Bounds.South,
			West:  params.Bounds.West,
			North: params.Bounds.North,
			East:  params.Bounds.East,
		},
		ZoomRange:  fmt.Sprintf("%d-%d", params.MinZoom, params.MaxZoom),
		TileSource: params.Source.Name,
		Usage:      "Extract and use the tiles/ folder with any mapping software that supports slippy map tiles",
	}

	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encoding manifest: %v", ErrPackaging, err)
	}
	mw, err := zw.Create("manifest.json")
	if err != nil {
		return nil, fmt.Errorf("%w: creating manifest.json: %v", ErrPackaging, err)
	}
	if _, err := mw.Write(manifestBytes); err != nil {
		return nil, fmt.Errorf("%w: writing manifest.json: %v", ErrPackaging, err)
	}

	rw, err := zw.Create("README.txt")
	if err != nil {
		return nil, fmt.Errorf("%w: creating README.txt: %v", ErrPackaging, err)
	}
	if _, err := rw.Write([]byte(p.readme(len(tiles), params))); err != nil {
		return nil, fmt.Errorf("%w: writing README.txt: %v", ErrPackaging, err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: finalizing archive: %v", ErrPackaging, err)
	}

	filename := fmt.Sprintf("geopulse_tiles_%s_%s.zip", params.Source.Name, params.timestamp())
	return newArtifact(FormatTilesZip, filename, buf.Bytes(), len(tiles), 0), nil
}

func (p *zipPackager) readme(tileCount int, params PackParams) string {
	return fmt.Sprintf(`GeoPulse Map Tiles
==================

This ZIP contains %d map tiles in standard slippy map format.

Folder Structure:
tiles/
├── {zoom}/
│   ├── {x}/
│   │   └── {y}.png

How to use:
1. Extract this ZIP file
2. Use the tiles/ folder with any mapping software
3. Point your map application to the tiles/ directory
4. The tiles follow the standard Z/X/Y.png naming convention

Tile Information:
- Source: %s
- Zoom levels: %d to %d
- Total tiles: %d
- Generated: %s

Compatible with:
- QGIS (add as XYZ Tiles)
- OpenLayers
- Leaflet
- MapProxy
- TileServer GL
- Most GIS applications

For questions or support, refer to the manifest.json file for detailed metadata.
`, tileCount, params.Source.Name, params.MinZoom, params.MaxZoom, tileCount,
		params.now().UTC().Format("2006-01-02 15:04:05"))
}
