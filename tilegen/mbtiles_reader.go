package tilegen

import (
	"database/sql"
	"log/slog"

	_ "github.com/mattn/go-sqlite3" // Register sqlite3 database driver
	"github.com/paulmach/orb/maptile"
)

// MBTilesReader reads tiles back out of an MBTiles archive. Rows are stored
// in TMS order, so GetTile flips the requested XYZ row before querying and
// VisitAllTiles flips it back on the way out.
type MBTilesReader interface {
	Close() error
	Metadata() (map[string]string, error)
	GetTile(tile Tile) ([]byte, error)
	VisitAllTiles(visitor func(Tile, []byte)) error
}

func NewMBTilesReader(dsn string) (MBTilesReader, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	return NewMBTilesReaderWithDatabase(db)
}

func NewMBTilesReaderWithDatabase(db *sql.DB) (MBTilesReader, error) {
	return &mbtilesReader{db: db}, nil
}

type mbtilesReader struct {
	db *sql.DB
}

// Close gracefully tears down the mbtiles connection.
func (r *mbtilesReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Metadata returns the archive's metadata table as a name→value map.
func (r *mbtilesReader) Metadata() (map[string]string, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := map[string]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		meta[name] = value
	}
	return meta, rows.Err()
}

// GetTile returns the data for the given XYZ tile, or nil if the archive
// does not contain it.
func (r *mbtilesReader) GetTile(tile Tile) ([]byte, error) {
	var data []byte

	row := r.db.QueryRow(
		"SELECT tile_data FROM tiles WHERE zoom_level=? AND tile_column=? AND tile_row=? LIMIT 1",
		tile.Z, tile.X, FlipY(tile.Z, tile.Y))
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return data, nil
}

// VisitAllTiles runs the given function on all tiles in this mbtiles
// archive, in XYZ addressing.
func (r *mbtilesReader) VisitAllTiles(visitor func(Tile, []byte)) error {
	rows, err := r.db.Query("SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles")
	if err != nil {
		return err
	}
	defer rows.Close()

	var x, y uint32
	var z maptile.Zoom
	for rows.Next() {
		data := []byte{}
		if err := rows.Scan(&z, &x, &y, &data); err != nil {
			slog.Warn("couldn't scan tile row", "error", err)
			continue
		}
		visitor(Tile{Z: uint32(z), X: x, Y: FlipY(uint32(z), y)}, data)
	}
	return rows.Err()
}
