// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recordings

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ManuGH/tablo-rescue/internal/fsutil"
	xglog "github.com/ManuGH/tablo-rescue/internal/log"
	"github.com/ManuGH/tablo-rescue/internal/tablodb"
)

// Resolver turns storage references into verdicts by probing the drive.
// Apart from the filesystem reads it is pure: resolving the same record twice
// against an unchanged drive yields equal values.
type Resolver struct {
	mount     string
	mapper    *PathMapper
	tolerance Tolerance
}

// NewResolver creates a resolver for the drive mounted at mount. A nil mapper
// uses DefaultMappings.
func NewResolver(mount string, mapper *PathMapper, tolerance Tolerance) *Resolver {
	if mapper == nil {
		mapper = NewPathMapper(DefaultMappings())
	}
	return &Resolver{
		mount:     filepath.Clean(mount),
		mapper:    mapper,
		tolerance: tolerance,
	}
}

// Resolve probes every candidate location of rec and classifies it. ctx only
// carries the run's logging fields; probing is not cancellable.
func (r *Resolver) Resolve(ctx context.Context, rec tablodb.Recording) ResolvedLocation {
	loc := ResolvedLocation{ExpectedSize: rec.ExpectedSize}

	for _, rel := range r.candidatePaths(rec.Storage, &loc) {
		loc.Candidates = append(loc.Candidates, r.probe(rel))
	}
	markDuplicates(loc.Candidates)

	var existing []Candidate
	for _, c := range loc.Candidates {
		if c.usable() {
			existing = append(existing, c)
		}
	}

	switch len(existing) {
	case 0:
		loc.Status = StatusMissing
	case 1:
		chosen := existing[0]
		loc.ChosenPath = chosen.Path
		loc.ActualSize = chosen.Size
		loc.Status = StatusRecoverable
		if chosen.Incomplete {
			loc.Status = StatusSizeMismatch
		} else if rec.HasExpectedSize() && !r.tolerance.Within(rec.ExpectedSize, chosen.Size) {
			loc.Status = StatusSizeMismatch
		}
	default:
		loc.Status = StatusAmbiguous
	}

	chosen, _ := loc.Chosen()
	logger := xglog.WithComponentFromContext(ctx, "resolver")
	logger.Debug().
		Str(xglog.FieldEvent, "resolver.resolved").
		Int64(xglog.FieldRecordingID, rec.ID).
		Str("storage", rec.Storage.String()).
		Str(xglog.FieldStatus, string(loc.Status)).
		Int("candidates", len(loc.Candidates)).
		Int("existing", len(existing)).
		Int(xglog.FieldSegments, len(chosen.Segments)).
		Msg("resolved recording")

	return loc
}

// candidatePaths lists drive-relative, slash-separated candidates, most
// likely first. References that cannot be placed on the drive are recorded
// as rejected candidates on loc.
func (r *Resolver) candidatePaths(ref tablodb.StorageRef, loc *ResolvedLocation) []string {
	switch ref.Kind {
	case tablodb.RefRecordingID:
		id := strconv.FormatInt(ref.ID, 10)
		return []string{
			path.Join("rec", id, "segs"),
			path.Join("rec", id+".ts"),
			path.Join("rec", id+".mp4"),
			path.Join("rec", id, id+".ts"),
		}

	case tablodb.RefFileID:
		fid := strconv.FormatInt(ref.ID, 10)
		shard := fmt.Sprintf("%03d", ref.ID%1000)
		return []string{
			path.Join("rec", shard, fid+".ts"),
			path.Join("rec", fid+".ts"),
			path.Join("rec", fid, "segs"),
		}

	case tablodb.RefPath:
		p := strings.TrimSpace(ref.Path)
		var rel string
		if strings.HasPrefix(p, "/") {
			mapped, ok := r.mapper.ToDrive(p)
			if !ok {
				loc.Candidates = append(loc.Candidates, Candidate{Path: p, Note: "no appliance root mapping"})
				return nil
			}
			rel = mapped
		} else {
			rel = path.Clean(filepath.ToSlash(p))
		}
		out := []string{rel}
		if info, err := os.Stat(r.lexical(rel)); err == nil && info.IsDir() {
			out = append(out, path.Join(rel, "segs"))
		}
		return out
	}

	loc.Candidates = append(loc.Candidates, Candidate{Path: ref.String(), Note: "unknown storage reference"})
	return nil
}

func (r *Resolver) lexical(rel string) string {
	return filepath.Join(r.mount, filepath.FromSlash(rel))
}

// probe inspects one drive-relative candidate.
func (r *Resolver) probe(rel string) Candidate {
	c := Candidate{Path: r.lexical(rel)}

	resolved, err := fsutil.ConfineRelPath(r.mount, filepath.FromSlash(rel))
	if err != nil {
		c.Note = "outside drive: " + err.Error()
		return c
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return c
	}

	switch {
	case info.Mode().IsRegular():
		c.Layout = LayoutFile
		c.Size = info.Size()
		c.Exists = c.Size > 0
		if !c.Exists {
			c.Note = "empty file"
		}
		c.Incomplete = hasLockMarker(resolved)

	case info.IsDir():
		entries, err := os.ReadDir(resolved)
		if err != nil {
			c.Note = "unreadable directory: " + err.Error()
			return c
		}
		c.Layout = LayoutSegments
		c.Incomplete = segmentDirIncomplete(resolved, entries)
		for _, e := range entries {
			if !isSegment(e.Name()) {
				continue
			}
			segPath := filepath.Join(resolved, e.Name())
			// Stat follows links so a symlinked segment counts by its target.
			segInfo, err := os.Stat(segPath)
			if err != nil || !segInfo.Mode().IsRegular() {
				continue
			}
			if _, err := fsutil.ConfineAbsPath(r.mount, segPath); err != nil {
				continue
			}
			c.Segments = append(c.Segments, segPath)
			c.Size += segInfo.Size()
		}
		sort.Strings(c.Segments)
		c.Exists = len(c.Segments) > 0
		if !c.Exists {
			c.Note = "no segments"
		}
	}

	return c
}

// markDuplicates flags existing candidates that are the same file as an
// earlier one (hard link or symlink), so they are counted once.
func markDuplicates(cands []Candidate) {
	type seen struct {
		path string
		info os.FileInfo
	}
	var kept []seen
	for i := range cands {
		c := &cands[i]
		if !c.Exists {
			continue
		}
		info, err := os.Stat(c.Path)
		if err != nil {
			continue
		}
		for _, k := range kept {
			if os.SameFile(k.info, info) {
				c.DuplicateOf = k.path
				break
			}
		}
		if c.DuplicateOf == "" {
			kept = append(kept, seen{path: c.Path, info: info})
		}
	}
}
