// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package catalog indexes database recordings together with their on-disk
// verdicts.
package catalog

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sort"

	xglog "github.com/ManuGH/tablo-rescue/internal/log"
	"github.com/ManuGH/tablo-rescue/internal/naming"
	"github.com/ManuGH/tablo-rescue/internal/recordings"
	"github.com/ManuGH/tablo-rescue/internal/tablodb"
)

// Resolver classifies a recording against the drive.
type Resolver interface {
	Resolve(ctx context.Context, rec tablodb.Recording) recordings.ResolvedLocation
}

// Entry is one recording and its resolution.
type Entry struct {
	Recording tablodb.Recording
	Location  recordings.ResolvedLocation
}

// ID returns the recording id.
func (e Entry) ID() int64 { return e.Recording.ID }

// Status returns the resolver verdict.
func (e Entry) Status() recordings.Status { return e.Location.Status }

// Name returns the output base name.
func (e Entry) Name() string { return naming.FileName(e.Recording) }

// Segments returns the segment count of the chosen candidate.
func (e Entry) Segments() int {
	c, ok := e.Location.Chosen()
	if !ok {
		return 0
	}
	return len(c.Segments)
}

// Catalog is an immutable, id-ordered index of entries.
type Catalog struct {
	entries    []Entry
	byID       map[int64]int
	duplicates int
}

// Build consumes records, resolves each one and indexes the result. A
// duplicate id keeps the first record. Errors from the sequence abort the
// build.
func Build(ctx context.Context, records iter.Seq2[tablodb.Recording, error], resolver Resolver) (*Catalog, error) {
	logger := xglog.WithComponentFromContext(ctx, "catalog")
	c := &Catalog{byID: map[int64]int{}}

	seen := map[int64]bool{}
	for rec, err := range records {
		if err != nil {
			return nil, fmt.Errorf("read recordings: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seen[rec.ID] {
			c.duplicates++
			logger.Warn().
				Str(xglog.FieldEvent, "catalog.duplicate_id").
				Int64(xglog.FieldRecordingID, rec.ID).
				Msg("duplicate recording id, keeping the first")
			continue
		}
		seen[rec.ID] = true
		c.entries = append(c.entries, Entry{Recording: rec, Location: resolver.Resolve(ctx, rec)})
	}

	sort.Slice(c.entries, func(i, j int) bool { return c.entries[i].ID() < c.entries[j].ID() })
	for i, e := range c.entries {
		c.byID[e.ID()] = i
	}

	logger.Info().
		Str(xglog.FieldEvent, "catalog.built").
		Int("recordings", len(c.entries)).
		Int("duplicates", c.duplicates).
		Msg("catalog built")

	return c, nil
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Duplicates returns how many records were dropped for a repeated id.
func (c *Catalog) Duplicates() int { return c.duplicates }

// All returns every entry in ascending id order.
func (c *Catalog) All() []Entry {
	return slices.Clone(c.entries)
}

// Get looks up one entry.
func (c *Catalog) Get(id int64) (Entry, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Filter returns the entries for ids in ascending id order, plus the ids the
// catalog does not know, also ascending. Repeated ids are reported once. An
// empty ids selects everything.
func (c *Catalog) Filter(ids []int64) (entries []Entry, unknown []int64) {
	if len(ids) == 0 {
		return c.All(), nil
	}

	want := slices.Clone(ids)
	slices.Sort(want)
	want = slices.Compact(want)

	for _, id := range want {
		if e, ok := c.Get(id); ok {
			entries = append(entries, e)
		} else {
			unknown = append(unknown, id)
		}
	}
	return entries, unknown
}

// Detail is Filter for the detailed report; the candidates of every entry
// are included in the entries themselves.
func (c *Catalog) Detail(ids []int64) ([]Entry, []int64) {
	return c.Filter(ids)
}

// Summary counts the whole catalog by status.
func (c *Catalog) Summary() Summary {
	return Summarize(c.entries)
}

// Summary is a per-status count.
type Summary struct {
	Total    int
	ByStatus map[recordings.Status]int
}

// Summarize counts entries by status. Every entry is counted exactly once.
func Summarize(entries []Entry) Summary {
	s := Summary{ByStatus: make(map[recordings.Status]int, len(recordings.AllStatuses))}
	for _, st := range recordings.AllStatuses {
		s.ByStatus[st] = 0
	}
	for _, e := range entries {
		s.ByStatus[e.Status()]++
		s.Total++
	}
	return s
}

// Count returns the number of entries with status st.
func (s Summary) Count(st recordings.Status) int {
	return s.ByStatus[st]
}
