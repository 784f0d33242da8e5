// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package recordings maps database storage references onto the drive and
// decides whether each recording can be recovered.
package recordings

// Status is the recoverability verdict for one recording.
type Status string

const (
	StatusRecoverable  Status = "recoverable"
	StatusMissing      Status = "missing"
	StatusAmbiguous    Status = "ambiguous"
	StatusSizeMismatch Status = "size-mismatch"
)

// AllStatuses lists every status in report order.
var AllStatuses = []Status{StatusRecoverable, StatusMissing, StatusAmbiguous, StatusSizeMismatch}

// Layout describes how a candidate stores its video.
type Layout string

const (
	LayoutFile     Layout = "file"
	LayoutSegments Layout = "segments"
)

// Candidate is one probed on-disk location.
type Candidate struct {
	Path       string   // lexical path under the drive mount
	Layout     Layout   // zero when nothing exists at Path
	Exists     bool     // a non-empty file, or a directory with at least one segment
	Size       int64    // file size, or the sum of segment sizes
	Segments   []string // absolute segment paths in copy order; LayoutSegments only
	Incomplete bool     // an incomplete-write marker was found
	// DuplicateOf names an earlier candidate resolving to the same file.
	DuplicateOf string
	// Note explains why a candidate was rejected without probing.
	Note string
}

// usable reports whether the candidate counts towards the verdict.
func (c Candidate) usable() bool {
	return c.Exists && c.DuplicateOf == ""
}

// ResolvedLocation is the resolver output for one recording.
type ResolvedLocation struct {
	Status     Status
	Candidates []Candidate
	// ChosenPath is set for recoverable recordings, and for size-mismatch
	// recordings to name what would be copied if accepted.
	ChosenPath   string
	ExpectedSize int64
	ActualSize   int64
}

// Chosen returns the chosen candidate.
func (l ResolvedLocation) Chosen() (Candidate, bool) {
	if l.ChosenPath == "" {
		return Candidate{}, false
	}
	for _, c := range l.Candidates {
		if c.Path == l.ChosenPath && c.usable() {
			return c, true
		}
	}
	return Candidate{}, false
}

// Existing returns how many distinct candidates exist.
func (l ResolvedLocation) Existing() int {
	n := 0
	for _, c := range l.Candidates {
		if c.usable() {
			n++
		}
	}
	return n
}
