// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package rescue copies recoverable recordings off the drive, one at a time,
// and records an outcome for every recording it was given.
package rescue

import (
	"fmt"
	"io"
	"strings"
)

// Outcome is the result of one rescue attempt.
type Outcome string

const (
	OutcomeCopied              Outcome = "copied"
	OutcomeSkippedExisting     Outcome = "skipped-existing"
	OutcomeSkippedMissing      Outcome = "skipped-missing"
	OutcomeSkippedAmbiguous    Outcome = "skipped-ambiguous"
	OutcomeSkippedSizeMismatch Outcome = "skipped-size-mismatch"
	OutcomeFailed              Outcome = "failed"
)

// AllOutcomes lists every outcome in report order.
var AllOutcomes = []Outcome{
	OutcomeCopied,
	OutcomeSkippedExisting,
	OutcomeSkippedMissing,
	OutcomeSkippedAmbiguous,
	OutcomeSkippedSizeMismatch,
	OutcomeFailed,
}

// Options controls one batch.
type Options struct {
	OutDir             string
	Force              bool // overwrite existing destinations
	AcceptSizeMismatch bool // copy size-mismatch recordings anyway
	WriteNFO           bool // write a Kodi .nfo next to each copied file
}

// Result is the outcome for one recording.
type Result struct {
	ID          int64
	Outcome     Outcome
	Destination string // empty when no destination was computed
	Bytes       int64  // bytes written, copied only
	Err         error  // failed only
}

// Report collects the results of a batch in id order.
type Report struct {
	Results []Result
}

// Counts returns the number of results per outcome, with every outcome present.
func (r Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int, len(AllOutcomes))
	for _, o := range AllOutcomes {
		counts[o] = 0
	}
	for _, res := range r.Results {
		counts[res.Outcome]++
	}
	return counts
}

// Failed returns the failed results.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			out = append(out, res)
		}
	}
	return out
}

// ExitCode is 1 when any copy failed, 0 otherwise.
func (r Report) ExitCode() int {
	if len(r.Failed()) > 0 {
		return 1
	}
	return 0
}

// Write prints one line per result followed by the per-outcome summary.
func (r Report) Write(w io.Writer) error {
	for _, res := range r.Results {
		line := fmt.Sprintf("%-22s %d", res.Outcome, res.ID)
		if res.Destination != "" {
			line += " = " + res.Destination
		}
		if res.Err != nil {
			line += ": " + res.Err.Error()
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	counts := r.Counts()
	parts := make([]string, 0, len(AllOutcomes))
	for _, o := range AllOutcomes {
		parts = append(parts, fmt.Sprintf("%s=%d", o, counts[o]))
	}
	_, err := fmt.Fprintf(w, "total=%d %s\n", len(r.Results), strings.Join(parts, " "))
	return err
}
