package tilegen

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

func writeBlob(t *testing.T, artifact *Artifact) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), artifact.Filename)
	if err := os.WriteFile(path, artifact.Blob, 0o644); err != nil {
		t.Fatalf("writing artifact: %v", err)
	}
	return path
}

func TestMBTilesPackager(t *testing.T) {
	params := testPackParams(t)
	artifact, err := (&mbtilesPackager{}).Pack(testTiles(), params)
	if err != nil {
		t.Fatalf("Pack() error: %v", err)
	}

	if artifact.Filename != "geopulse_20250131T0942.mbtiles" {
		t.Errorf("Filename = %q", artifact.Filename)
	}
	if artifact.TileCount != 2 {
		t.Errorf("TileCount = %d, want 2", artifact.TileCount)
	}

	path := writeBlob(t, artifact)
	reader, err := NewMBTilesReader(path)
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	defer reader.Close()

	meta, err := reader.Metadata()
	if err != nil {
		t.Fatalf("reading metadata: %v", err)
	}
	wantMeta := map[string]string{
		"name":    "GeoPulse Generated Tiles",
		"type":    "baselayer",
		"version": "1.0",
		"format":  "png",
		"minzoom": "12",
		"maxzoom": "12",
		"bounds":  "77.200000,28.600000,77.220000,28.620000",
	}
	for name, want := range wantMeta {
		if meta[name] != want {
			t.Errorf("metadata %q = %q, want %q", name, meta[name], want)
		}
	}
	if _, ok := meta["attribution"]; !ok {
		t.Error("metadata missing attribution")
	}

	// The reader takes XYZ addresses and flips internally.
	data, err := reader.GetTile(Tile{Z: 12, X: 2926, Y: 1707})
	if err != nil {
		t.Fatalf("GetTile: %v", err)
	}
	if string(data) != "tile-a" {
		t.Errorf("GetTile() = %q, want tile-a", data)
	}

	if data, err := reader.GetTile(Tile{Z: 12, X: 0, Y: 0}); err != nil || data != nil {
		t.Errorf("GetTile on absent tile = (%q, %v), want (nil, nil)", data, err)
	}

	count := 0
	if err := reader.VisitAllTiles(func(tile Tile, data []byte) {
		count++
		if tile.Z != 12 || tile.X != 2926 {
			t.Errorf("unexpected tile %v", tile)
		}
	}); err != nil {
		t.Fatalf("VisitAllTiles: %v", err)
	}
	if count != 2 {
		t.Errorf("visited %d tiles, want 2", count)
	}
}

func TestMBTilesPackagerRowFlip(t *testing.T) {
	artifact, err := (&mbtilesPackager{}).Pack(testTiles(), testPackParams(t))
	if err != nil {
		t.Fatalf("Pack() error: %v", err)
	}

	db, err := sql.Open("sqlite3", writeBlob(t, artifact))
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	defer db.Close()

	// XYZ row 1707 at z12 is stored as TMS row 2388.
	var data []byte
	err = db.QueryRow("SELECT tile_data FROM tiles WHERE zoom_level=12 AND tile_column=2926 AND tile_row=2388").Scan(&data)
	if err != nil {
		t.Fatalf("querying flipped row: %v", err)
	}
	if string(data) != "tile-a" {
		t.Errorf("flipped row data = %q, want tile-a", data)
	}
}

func TestMBTilesPackagerDuplicateTiles(t *testing.T) {
	tiles := testTiles()
	tiles = append(tiles, TileData{Tile: tiles[0].Tile, Data: []byte("tile-a-retry")})

	artifact, err := (&mbtilesPackager{}).Pack(tiles, testPackParams(t))
	if err != nil {
		t.Fatalf("Pack() error: %v", err)
	}
	if artifact.TileCount != 2 {
		t.Errorf("TileCount = %d, want 2", artifact.TileCount)
	}

	db, err := sql.Open("sqlite3", writeBlob(t, artifact))
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	defer db.Close()

	// The unique index plus INSERT OR REPLACE keeps one row per address,
	// last write winning.
	var rows int
	if err := db.QueryRow("SELECT COUNT(*) FROM tiles").Scan(&rows); err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	if rows != 2 {
		t.Errorf("tile rows = %d, want 2", rows)
	}

	var data []byte
	if err := db.QueryRow("SELECT tile_data FROM tiles WHERE zoom_level=12 AND tile_column=2926 AND tile_row=2388").Scan(&data); err != nil {
		t.Fatalf("querying row: %v", err)
	}
	if string(data) != "tile-a-retry" {
		t.Errorf("duplicate row data = %q, want tile-a-retry", data)
	}
}
