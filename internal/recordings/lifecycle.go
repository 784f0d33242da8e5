// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recordings

import (
	"os"
	"path/filepath"
	"strings"
)

// incompleteSuffixes mark files the appliance was still writing when it lost
// the drive.
var incompleteSuffixes = []string{".partial", ".lock", ".tmp"}

func hasIncompleteSuffix(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range incompleteSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// hasLockMarker checks for .partial/.lock/.tmp suffix or sibling lock file.
// absPath must already be confined under the drive.
func hasLockMarker(absPath string) bool {
	if hasIncompleteSuffix(absPath) {
		return true
	}

	// Sibling lock file check (e.g., 12.ts + 12.ts.lock, segs + segs.lock)
	if _, err := os.Lstat(absPath + ".lock"); err == nil {
		return true
	}

	return false
}

// segmentDirIncomplete reports a lock marker on the directory itself or on
// any entry inside it.
func segmentDirIncomplete(dir string, entries []os.DirEntry) bool {
	if hasLockMarker(dir) {
		return true
	}
	for _, e := range entries {
		if hasIncompleteSuffix(e.Name()) {
			return true
		}
	}
	return false
}

// isSegment reports whether name is an MPEG-TS segment file.
func isSegment(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".ts") && !strings.HasPrefix(name, ".")
}
