package tilegen

import (
	"database/sql"
	"fmt"
	"math"
)

const (
	// gpkgApplicationID is "GPKG" as a big-endian uint32, required in the
	// SQLite header for GeoPackage conformance.
	gpkgApplicationID = 1196444487

	// webMercatorWorldExtent is the half-width of the Web Mercator world
	// in meters (EPSG:3857).
	webMercatorWorldExtent = 20037508.342789244

	gpkgTileTable = "geopulse_tiles"
)

// gpkgPackager encodes tiles into an OGC GeoPackage SQLite container with
// the required relational tables seeded for a raster tile pyramid.
type gpkgPackager struct{}

func (p *gpkgPackager) Format() string { return FormatGPKG }

func (p *gpkgPackager) Pack(tiles []TileData, params PackParams) (*Artifact, error) {
	// Duplicate addresses collapse into one row, so the artifact counts
	// distinct (z, x, y) keys, not inserts.
	seen := make(map[Tile]struct{}, len(tiles))

	blob, err := buildSQLiteBlob("geopulse-*.gpkg", func(db *sql.DB) error {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA application_id = %d;", gpkgApplicationID)); err != nil {
			return fmt.Errorf("setting application_id: %w", err)
		}

		if _, err := db.Exec(`
			CREATE TABLE gpkg_spatial_ref_sys (
				srs_name TEXT NOT NULL,
				srs_id INTEGER NOT NULL PRIMARY KEY,
				organization TEXT NOT NULL,
				organization_coordsys_id INTEGER NOT NULL,
				definition TEXT NOT NULL,
				description TEXT
			);

			CREATE TABLE gpkg_contents (
				table_name TEXT PRIMARY KEY,
				data_type TEXT NOT NULL,
				identifier TEXT,
				description TEXT,
				last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
				min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
				srs_id INTEGER NOT NULL
			);

			CREATE TABLE gpkg_tile_matrix_set (
				table_name TEXT PRIMARY KEY,
				srs_id INTEGER NOT NULL,
				min_x DOUBLE NOT NULL, min_y DOUBLE NOT NULL,
				max_x DOUBLE NOT NULL, max_y DOUBLE NOT NULL
			);

			CREATE TABLE gpkg_tile_matrix (
				table_name TEXT NOT NULL,
				zoom_level INTEGER NOT NULL,
				matrix_width INTEGER NOT NULL,
				matrix_height INTEGER NOT NULL,
				tile_width INTEGER NOT NULL,
				tile_height INTEGER NOT NULL,
				pixel_x_size DOUBLE NOT NULL,
				pixel_y_size DOUBLE NOT NULL,
				PRIMARY KEY (table_name, zoom_level)
			);

			CREATE TABLE geopulse_tiles (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				zoom_level INTEGER NOT NULL,
				tile_column INTEGER NOT NULL,
				tile_row INTEGER NOT NULL,
				tile_data BLOB NOT NULL,
				UNIQUE(zoom_level, tile_column, tile_row)
			);
		`); err != nil {
			return fmt.Errorf("creating geopackage schema: %w", err)
		}

		txn, err := db.Begin()
		if err != nil {
			return fmt.Errorf("starting geopackage transaction: %w", err)
		}
		defer txn.Rollback()

		srsRows := []struct {
			name        string
			id          int
			org         string
			orgID       int
			definition  string
			description string
		}{
			{"WGS 84", 4326, "EPSG", 4326,
				`GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]]]`,
				"Standard WGS84"},
			{"Web Mercator", 3857, "EPSG", 3857,
				`PROJCS["WGS 84 / Pseudo-Mercator"]`,
				"Web Mercator"},
		}
		for _, srs := range srsRows {
			if _, err := txn.Exec(
				"INSERT INTO gpkg_spatial_ref_sys VALUES (?, ?, ?, ?, ?, ?)",
				srs.name, srs.id, srs.org, srs.orgID, srs.definition, srs.description,
			); err != nil {
				return fmt.Errorf("seeding srs %d: %w", srs.id, err)
			}
		}

		if _, err := txn.Exec(
			"INSERT INTO gpkg_tile_matrix_set VALUES (?, ?, ?, ?, ?, ?)",
			gpkgTileTable, 3857,
			-webMercatorWorldExtent, -webMercatorWorldExtent,
			webMercatorWorldExtent, webMercatorWorldExtent,
		); err != nil {
			return fmt.Errorf("writing tile matrix set: %w", err)
		}

		for z := params.MinZoom; z <= params.MaxZoom; z++ {
			matrixSize := int64(1) << z
			pixelSize := (webMercatorWorldExtent * 2) / (TileSize * math.Exp2(float64(z)))
			if _, err := txn.Exec(
				"INSERT INTO gpkg_tile_matrix VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
				gpkgTileTable, z, matrixSize, matrixSize, TileSize, TileSize, pixelSize, pixelSize,
			); err != nil {
				return fmt.Errorf("writing tile matrix z%d: %w", z, err)
			}
		}

		if _, err := txn.Exec(
			"INSERT INTO gpkg_contents VALUES (?, ?, ?, ?, datetime('now'), ?, ?, ?, ?, ?)",
			gpkgTileTable, "tiles", "GeoPulse raster", "Tiles generated by GeoPulse",
			params.Bounds.West, params.Bounds.South, params.Bounds.East, params.Bounds.North, 3857,
		); err != nil {
			return fmt.Errorf("writing contents row: %w", err)
		}

		// Same TMS row flip as MBTiles.
		for _, t := range tiles {
			tmsRow := FlipY(t.Tile.Z, t.Tile.Y)
			if _, err := txn.Exec(
				"INSERT OR REPLACE INTO geopulse_tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)",
				t.Tile.Z, t.Tile.X, tmsRow, t.Data,
			); err != nil {
				return fmt.Errorf("writing tile %s: %w", t.Tile, err)
			}
			seen[t.Tile] = struct{}{}
		}

		return txn.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: gpkg: %v", ErrPackaging, err)
	}

	filename := fmt.Sprintf("geopulse_%s_%s.gpkg", params.Source.Name, params.timestamp())
	return newArtifact(FormatGPKG, filename, blob, len(seen), 0), nil
}
