// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package tablodb

import (
	"os"
	"path/filepath"

	"github.com/ManuGH/tablo-rescue/internal/fsutil"
)

// DefaultSearchPaths are the drive-relative locations the appliance has used
// for its database backup across firmware revisions, most common first.
var DefaultSearchPaths = []string{
	filepath.Join("db", "Tablo.db"),
	"Tablo.db",
	filepath.Join("db", "tablo.db"),
	"tablo.db",
	filepath.Join("database", "Tablo.db"),
}

// Locate returns the database path to open. An explicit path bypasses the
// search but must still exist; otherwise searchPaths (DefaultSearchPaths when
// empty) are probed under mountRoot in order.
func Locate(mountRoot, explicit string, searchPaths []string) (string, error) {
	if explicit != "" {
		if err := fsutil.IsRegularFile(explicit); err != nil {
			return "", &DatabaseNotFoundError{Tried: []string{explicit}, Err: err}
		}
		return explicit, nil
	}

	if len(searchPaths) == 0 {
		searchPaths = DefaultSearchPaths
	}

	tried := make([]string, 0, len(searchPaths))
	var lastErr error
	for _, rel := range searchPaths {
		candidate := filepath.Join(mountRoot, rel)
		tried = append(tried, candidate)
		if _, err := fsutil.ConfineRelPath(mountRoot, rel); err != nil {
			lastErr = err
			continue
		}
		err := fsutil.IsRegularFile(candidate)
		if err == nil {
			return candidate, nil
		}
		if !os.IsNotExist(err) {
			lastErr = err
		}
	}
	return "", &DatabaseNotFoundError{Tried: tried, Err: lastErr}
}
