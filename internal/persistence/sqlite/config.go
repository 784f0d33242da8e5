package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver
)

// Config defines read-only SQLite operational parameters.
type Config struct {
	BusyTimeout time.Duration
	// Immutable tells SQLite the file cannot change while open, which skips
	// all locking and never creates -wal/-shm side files next to it.
	Immutable bool
}

// DefaultConfig returns the configuration used for appliance databases.
func DefaultConfig() Config {
	return Config{
		BusyTimeout: 2 * time.Second,
		Immutable:   true,
	}
}

var uriEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// readOnlyDSN builds a URI filename that SQLite can only open for reading.
func readOnlyDSN(dbPath string, cfg Config) string {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(%d)&_pragma=query_only(1)",
		uriEscaper.Replace(dbPath), cfg.BusyTimeout.Milliseconds())
	if cfg.Immutable {
		dsn += "&immutable=1"
	}
	return dsn
}

// OpenReadOnly opens dbPath without any possibility of writing to it.
// The pool is capped at a single connection; callers are sequential.
func OpenReadOnly(ctx context.Context, dbPath string, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite", readOnlyDSN(dbPath, cfg))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	return db, nil
}
