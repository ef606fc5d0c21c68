//go:build cgo_sqlite

package main

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// initDB opens the model database in WAL mode so queries keep reading
// while an import replaces a table.
func initDB(dataSource string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(dataSource, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", dataSource+sep+"_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not reach %s: %w", dataSource, err)
	}
	return db, nil
}
