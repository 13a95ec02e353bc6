package tilegen

import (
	"database/sql"
	"fmt"
)

// mbtilesPackager encodes tiles into an MBTiles 1.3 SQLite container.
type mbtilesPackager struct{}

func (p *mbtilesPackager) Format() string { return FormatMBTiles }

func (p *mbtilesPackager) Pack(tiles []TileData, params PackParams) (*Artifact, error) {
	// Duplicate addresses collapse into one row, so the artifact counts
	// distinct (z, x, y) keys, not inserts.
	seen := make(map[Tile]struct{}, len(tiles))

	blob, err := buildSQLiteBlob("geopulse-*.mbtiles", func(db *sql.DB) error {
		if _, err := db.Exec(`
			CREATE TABLE metadata (name TEXT, value TEXT);
			CREATE TABLE tiles (
				zoom_level INTEGER,
				tile_column INTEGER,
				tile_row INTEGER,
				tile_data BLOB
			);
			CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row);
			PRAGMA synchronous=OFF;
		`); err != nil {
			return fmt.Errorf("creating mbtiles schema: %w", err)
		}

		center := params.Bounds.Bound().Center()
		metadata := [][2]string{
			{"name", "GeoPulse Generated Tiles"},
			{"type", "baselayer"},
			{"version", "1.0"},
			{"description", fmt.Sprintf("Processed tiles from %s", params.Source.DisplayName)},
			{"format", "png"},
			{"bounds", fmt.Sprintf("%f,%f,%f,%f", params.Bounds.West, params.Bounds.South, params.Bounds.East, params.Bounds.North)},
			{"minzoom", fmt.Sprintf("%d", params.MinZoom)},
			{"maxzoom", fmt.Sprintf("%d", params.MaxZoom)},
			{"center", fmt.Sprintf("%f,%f,%d", center.X(), center.Y(), params.MinZoom)},
			{"attribution", fmt.Sprintf("© %s | Processed by GeoPulse", params.Source.DisplayName)},
		}

		txn, err := db.Begin()
		if err != nil {
			return fmt.Errorf("starting mbtiles transaction: %w", err)
		}
		defer txn.Rollback()

		for _, kv := range metadata {
			if _, err := txn.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", kv[0], kv[1]); err != nil {
				return fmt.Errorf("writing metadata %q: %w", kv[0], err)
			}
		}

		// MBTiles stores rows bottom-up (TMS); fetch indexing was
		// top-down (XYZ), so every row must be flipped.
		for _, t := range tiles {
			tmsRow := FlipY(t.Tile.Z, t.Tile.Y)
			if _, err := txn.Exec(
				"INSERT OR REPLACE INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)",
				t.Tile.Z, t.Tile.X, tmsRow, t.Data,
			); err != nil {
				return fmt.Errorf("writing tile %s: %w", t.Tile, err)
			}
			seen[t.Tile] = struct{}{}
		}

		return txn.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: mbtiles: %v", ErrPackaging, err)
	}

	filename := fmt.Sprintf("geopulse_%s.mbtiles", params.timestamp())
	return newArtifact(FormatMBTiles, filename, blob, len(seen), 0), nil
}
