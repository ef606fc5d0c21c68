//go:build !cgo_sqlite

package main

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// initDB opens the model database in WAL mode so queries keep reading
// while an import replaces a table.
func initDB(dataSource string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(dataSource, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", dataSource+sep+"_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not reach %s: %w", dataSource, err)
	}
	return db, nil
}
