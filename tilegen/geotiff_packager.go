package tilegen

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg" // tile sources may serve JPEG rasters
	_ "image/png"  // most tile sources serve PNG rasters

	"github.com/geopulse/go-tilegen/geotiff"
)

// webMercatorMeterScale is the ground size in meters of one pixel at zoom 0
// on a 256px Web Mercator tile; halves with each zoom level.
const webMercatorMeterScale = 156543.03392804097

// geotiffPackager merges fetched tiles at the run's minimum zoom into a
// single raster and writes it as a georeferenced GeoTIFF. Tiles belonging to
// other zoom levels are skipped and counted in the artifact's
// TilesDiscarded.
type geotiffPackager struct{}

func (p *geotiffPackager) Format() string { return FormatGeoTIFF }

func (p *geotiffPackager) Pack(tiles []TileData, params PackParams) (*Artifact, error) {
	mergeZoom := params.MinZoom
	rng := TileRangeForBounds(params.Bounds, mergeZoom)

	width := int(rng.MaxX-rng.MinX+1) * TileSize
	height := int(rng.MaxY-rng.MinY+1) * TileSize
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))

	merged := 0
	discarded := 0
	for _, t := range tiles {
		if t.Tile.Z != mergeZoom {
			discarded++
			continue
		}

		img, _, err := image.Decode(bytes.NewReader(t.Data))
		if err != nil {
			// The raster cannot be completed with a hole where the
			// tile should be, so a bad tile is fatal here.
			return nil, fmt.Errorf("%w: geotiff: decoding tile %s: %v", ErrPackaging, t.Tile, err)
		}

		xOffset := int(t.Tile.X-rng.MinX) * TileSize
		yOffset := int(t.Tile.Y-rng.MinY) * TileSize
		dest := image.Rect(xOffset, yOffset, xOffset+TileSize, yOffset+TileSize)
		draw.Draw(canvas, dest, img, image.Point{}, draw.Src)
		merged++
	}

	if merged == 0 {
		return nil, fmt.Errorf("%w: geotiff: no tiles at merge zoom %d", ErrPackaging, mergeZoom)
	}

	// Drop the alpha channel: the output is a 3-sample RGB raster.
	rgb := make([]byte, width*height*3)
	src := canvas.Pix
	for i, j := 0, 0; i < len(src); i, j = i+4, j+3 {
		rgb[j] = src[i]
		rgb[j+1] = src[i+1]
		rgb[j+2] = src[i+2]
	}

	pixelSize := webMercatorMeterScale / float64(uint64(1)<<mergeZoom)

	buf := &bytes.Buffer{}
	err := geotiff.Encode(buf,
		geotiff.Image{Width: width, Height: height, Pixels: rgb},
		geotiff.Georeference{
			OriginLon:      params.Bounds.West,
			OriginLat:      params.Bounds.North,
			PixelSize:      pixelSize,
			GeographicType: 4326,
			Citation:       "WGS 84",
		})
	if err != nil {
		return nil, fmt.Errorf("%w: geotiff: %v", ErrPackaging, err)
	}

	filename := fmt.Sprintf("geopulse_%s_%s.tif", params.Source.Name, params.timestamp())
	return newArtifact(FormatGeoTIFF, filename, buf.Bytes(), merged, discarded), nil
}
