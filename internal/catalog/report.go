// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package catalog

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/ManuGH/tablo-rescue/internal/recordings"
)

// WriteListing writes one "id,status,name,segments" line per entry followed
// by the summary of the listed entries.
func WriteListing(w io.Writer, entries []Entry) error {
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%d,%s,%s,%d\n", e.ID(), e.Status(), e.Name(), e.Segments()); err != nil {
			return err
		}
	}
	return WriteSummary(w, Summarize(entries))
}

// WriteSummary writes the per-status counts.
func WriteSummary(w io.Writer, s Summary) error {
	parts := make([]string, 0, len(recordings.AllStatuses))
	for _, st := range recordings.AllStatuses {
		parts = append(parts, fmt.Sprintf("%s=%d", st, s.Count(st)))
	}
	_, err := fmt.Fprintf(w, "total=%d %s\n", s.Total, strings.Join(parts, " "))
	return err
}

// WriteDetail writes every candidate of each entry, one line per unknown id
// and the summary of the shown entries.
func WriteDetail(w io.Writer, entries []Entry, unknown []int64) error {
	ew := &errWriter{w: w}
	for _, e := range entries {
		rec := e.Recording
		loc := e.Location

		ew.printf("Recording %d: %s\n", rec.ID, e.Name())
		ew.printf("  status:    %s\n", loc.Status)
		ew.printf("  schema:    %s\n", rec.Schema)
		ew.printf("  storage:   %s\n", rec.Storage)
		if rec.Channel.CallSign != "" {
			ew.printf("  channel:   %s %d.%d %s\n", rec.Channel.CallSign,
				rec.Channel.NumberMajor, rec.Channel.NumberMinor, rec.Channel.ResolutionTitle)
		}
		if !rec.RecordedAt.IsZero() {
			ew.printf("  recorded:  %s\n", rec.RecordedAt.Format("2006-01-02 15:04 MST"))
		}
		if rec.HasExpectedSize() {
			ew.printf("  expected:  %s (%d bytes)\n", humanize.IBytes(uint64(rec.ExpectedSize)), rec.ExpectedSize)
		}
		if loc.ChosenPath != "" {
			ew.printf("  chosen:    %s (%s)\n", loc.ChosenPath, humanize.IBytes(uint64(loc.ActualSize)))
		}

		ew.printf("  candidates:\n")
		for _, c := range loc.Candidates {
			ew.printf("    - %s\n", c.Path)
			ew.printf("      exists=%t", c.Exists)
			if c.Layout != "" {
				ew.printf(" layout=%s size=%d", c.Layout, c.Size)
			}
			if c.Layout == recordings.LayoutSegments {
				ew.printf(" segments=%d", len(c.Segments))
			}
			if c.Incomplete {
				ew.printf(" incomplete=true")
			}
			if c.DuplicateOf != "" {
				ew.printf(" duplicate_of=%s", c.DuplicateOf)
			}
			if c.Note != "" {
				ew.printf(" note=%q", c.Note)
			}
			ew.printf("\n")
		}
	}
	for _, id := range unknown {
		ew.printf("Recording %d: unknown-id\n", id)
	}
	if ew.err != nil {
		return ew.err
	}
	return WriteSummary(w, Summarize(entries))
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
