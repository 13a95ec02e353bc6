package tilegen

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3" // Register sqlite3 database driver
)

// buildSQLiteBlob creates a throwaway SQLite database file, hands it to
// build, then returns the finished file's bytes. Both SQLite-backed
// packagers produce their blob this way.
func buildSQLiteBlob(pattern string, build func(db *sql.DB) error) ([]byte, error) {
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return nil, fmt.Errorf("creating scratch database: %w", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening scratch database: %w", err)
	}

	if err := build(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("closing scratch database: %w", err)
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scratch database: %w", err)
	}
	return blob, nil
}
