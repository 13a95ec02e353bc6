package http

import (
	"fmt"
	"log/slog"
	gohttp "net/http"
	"regexp"
	"strconv"

	"github.com/geopulse/go-tilegen/tilegen"
)

var tilePathRegex = regexp.MustCompile(`/tiles/(\d+)/(\d+)/(\d+)\.png$`)

// MBTilesHandler serves raster tiles out of a generated MBTiles archive at
// /tiles/{z}/{x}/{y}.png.
func MBTilesHandler(reader tilegen.MBTilesReader) gohttp.HandlerFunc {
	return func(w gohttp.ResponseWriter, r *gohttp.Request) {
		requestedTile, err := parseTileFromPath(r.URL.Path)
		if err != nil {
			gohttp.NotFound(w, r)
			return
		}

		data, err := reader.GetTile(requestedTile)
		if err != nil {
			slog.Error("error getting tile", "tile", requestedTile, "error", err)
			gohttp.NotFound(w, r)
			return
		}

		if data == nil {
			gohttp.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}
}

func parseTileFromPath(url string) (tilegen.Tile, error) {
	match := tilePathRegex.FindStringSubmatch(url)
	if match == nil {
		return tilegen.Tile{}, fmt.Errorf("invalid tile path")
	}

	z, _ := strconv.ParseUint(match[1], 10, 32)
	x, _ := strconv.ParseUint(match[2], 10, 32)
	y, _ := strconv.ParseUint(match[3], 10, 32)

	return tilegen.Tile{Z: uint32(z), X: uint32(x), Y: uint32(y)}, nil
}
