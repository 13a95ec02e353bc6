package tilegen

import (
	"database/sql"
	"math"
	"testing"
)

func TestGPKGPackager(t *testing.T) {
	params := testPackParams(t)
	params.MinZoom = 11
	tiles := append([]TileData{
		{Tile: Tile{Z: 11, X: 1463, Y: 853}, Data: []byte("tile-z11")},
	}, testTiles()...)
	// A duplicate address must collapse into the existing row.
	tiles = append(tiles, TileData{Tile: Tile{Z: 11, X: 1463, Y: 853}, Data: []byte("tile-z11-retry")})

	artifact, err := (&gpkgPackager{}).Pack(tiles, params)
	if err != nil {
		t.Fatalf("Pack() error: %v", err)
	}

	if artifact.Filename != "geopulse_osm_20250131T0942.gpkg" {
		t.Errorf("Filename = %q", artifact.Filename)
	}
	if artifact.TileCount != 3 {
		t.Errorf("TileCount = %d, want 3", artifact.TileCount)
	}

	db, err := sql.Open("sqlite3", writeBlob(t, artifact))
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	defer db.Close()

	var appID int64
	if err := db.QueryRow("PRAGMA application_id").Scan(&appID); err != nil {
		t.Fatalf("reading application_id: %v", err)
	}
	if appID != gpkgApplicationID {
		t.Errorf("application_id = %d, want %d", appID, gpkgApplicationID)
	}

	var srsCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM gpkg_spatial_ref_sys WHERE srs_id IN (4326, 3857)").Scan(&srsCount); err != nil {
		t.Fatalf("counting srs rows: %v", err)
	}
	if srsCount != 2 {
		t.Errorf("srs rows = %d, want 2", srsCount)
	}

	var minX, maxX float64
	if err := db.QueryRow("SELECT min_x, max_x FROM gpkg_tile_matrix_set WHERE table_name = ?", gpkgTileTable).Scan(&minX, &maxX); err != nil {
		t.Fatalf("reading tile matrix set: %v", err)
	}
	if minX != -webMercatorWorldExtent || maxX != webMercatorWorldExtent {
		t.Errorf("tile matrix set extent = (%f, %f)", minX, maxX)
	}

	// One matrix row per zoom level in the run, z11 and z12.
	rows, err := db.Query("SELECT zoom_level, matrix_width, pixel_x_size FROM gpkg_tile_matrix WHERE table_name = ? ORDER BY zoom_level", gpkgTileTable)
	if err != nil {
		t.Fatalf("reading tile matrix: %v", err)
	}
	defer rows.Close()

	var matrixRows int
	for rows.Next() {
		var zoom, width int64
		var pixelSize float64
		if err := rows.Scan(&zoom, &width, &pixelSize); err != nil {
			t.Fatalf("scanning matrix row: %v", err)
		}
		matrixRows++

		if width != 1<<zoom {
			t.Errorf("z%d matrix_width = %d, want %d", zoom, width, int64(1)<<zoom)
		}
		wantPixel := (webMercatorWorldExtent * 2) / (TileSize * math.Exp2(float64(zoom)))
		if math.Abs(pixelSize-wantPixel) > 1e-9 {
			t.Errorf("z%d pixel size = %v, want %v", zoom, pixelSize, wantPixel)
		}
	}
	if matrixRows != 2 {
		t.Errorf("tile matrix rows = %d, want 2", matrixRows)
	}

	var dataType string
	var srsID int
	if err := db.QueryRow("SELECT data_type, srs_id FROM gpkg_contents WHERE table_name = ?", gpkgTileTable).Scan(&dataType, &srsID); err != nil {
		t.Fatalf("reading contents: %v", err)
	}
	if dataType != "tiles" || srsID != 3857 {
		t.Errorf("contents = (%q, %d), want (tiles, 3857)", dataType, srsID)
	}

	// Tile rows are stored TMS: z12 XYZ row 1707 lands at 2388.
	var data []byte
	if err := db.QueryRow("SELECT tile_data FROM geopulse_tiles WHERE zoom_level=12 AND tile_column=2926 AND tile_row=2388").Scan(&data); err != nil {
		t.Fatalf("querying flipped tile: %v", err)
	}
	if string(data) != "tile-a" {
		t.Errorf("flipped tile data = %q, want tile-a", data)
	}

	var tileRows int
	if err := db.QueryRow("SELECT COUNT(*) FROM geopulse_tiles").Scan(&tileRows); err != nil {
		t.Fatalf("counting tiles: %v", err)
	}
	if tileRows != 3 {
		t.Errorf("tile rows = %d, want 3", tileRows)
	}
}
