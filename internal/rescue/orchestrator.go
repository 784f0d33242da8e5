// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rescue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/tablo-rescue/internal/catalog"
	xglog "github.com/ManuGH/tablo-rescue/internal/log"
	"github.com/ManuGH/tablo-rescue/internal/naming"
	"github.com/ManuGH/tablo-rescue/internal/recordings"
)

// Recorder observes every result as it is produced.
type Recorder interface {
	Record(Result)
}

type nopRecorder struct{}

func (nopRecorder) Record(Result) {}

// Orchestrator drives a sequential batch of rescues.
type Orchestrator struct {
	copier   Copier
	recorder Recorder
}

// NewOrchestrator wires a batch driver. A nil copier uses FileCopier, a nil
// recorder discards results.
func NewOrchestrator(copier Copier, recorder Recorder) *Orchestrator {
	if copier == nil {
		copier = FileCopier{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Orchestrator{copier: copier, recorder: recorder}
}

// Run processes entries in ascending id order and returns one result per
// entry. A failure never stops the batch; once ctx is done the remaining
// entries fail without touching the output directory.
func (o *Orchestrator) Run(ctx context.Context, entries []catalog.Entry, opts Options) Report {
	logger := xglog.WithComponentFromContext(ctx, "rescue")

	ordered := slices.Clone(entries)
	slices.SortStableFunc(ordered, func(a, b catalog.Entry) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		}
		return 0
	})

	report := Report{Results: make([]Result, 0, len(ordered))}
	for i, e := range ordered {
		res := o.rescueOne(ctx, logger, e, opts)
		report.Results = append(report.Results, res)
		o.recorder.Record(res)

		ev := logger.Info()
		if res.Outcome == OutcomeFailed {
			ev = logger.Error().Err(res.Err)
		}
		ev.Str(xglog.FieldEvent, "rescue.result").
			Int64(xglog.FieldRecordingID, res.ID).
			Str(xglog.FieldOutcome, string(res.Outcome)).
			Str(xglog.FieldFinalPath, res.Destination).
			Int("position", i+1).
			Int("of", len(ordered)).
			Msg("recording processed")
	}

	return report
}

func (o *Orchestrator) rescueOne(ctx context.Context, logger zerolog.Logger, e catalog.Entry, opts Options) Result {
	res := Result{ID: e.ID()}
	fail := func(err error) Result {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}

	switch e.Status() {
	case recordings.StatusMissing:
		res.Outcome = OutcomeSkippedMissing
		return res
	case recordings.StatusAmbiguous:
		res.Outcome = OutcomeSkippedAmbiguous
		return res
	case recordings.StatusSizeMismatch:
		if !opts.AcceptSizeMismatch {
			res.Outcome = OutcomeSkippedSizeMismatch
			return res
		}
	case recordings.StatusRecoverable:
	default:
		return fail(fmt.Errorf("unknown status %q", e.Status()))
	}

	chosen, ok := e.Location.Chosen()
	if !ok {
		return fail(errors.New("no chosen candidate"))
	}
	res.Destination = Destination(opts.OutDir, e, chosen)

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	if !opts.Force {
		_, err := os.Lstat(res.Destination)
		if err == nil {
			res.Outcome = OutcomeSkippedExisting
			return res
		}
		if !os.IsNotExist(err) {
			return fail(fmt.Errorf("check destination: %w", err))
		}
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fail(fmt.Errorf("create output directory: %w", err))
	}

	src := Source{Layout: chosen.Layout, Path: chosen.Path, Segments: chosen.Segments}
	n, err := o.copier.Copy(ctx, src, res.Destination)
	if err != nil {
		return fail(fmt.Errorf("copy recording %d: %w", res.ID, err))
	}
	res.Outcome = OutcomeCopied
	res.Bytes = n

	if opts.WriteNFO {
		if path, err := WriteNFO(res.Destination, e.Recording); err != nil {
			logger.Warn().
				Err(err).
				Int64(xglog.FieldRecordingID, res.ID).
				Msg("failed to write nfo sidecar")
		} else {
			logger.Debug().Int64(xglog.FieldRecordingID, res.ID).Str(xglog.FieldPath, path).Msg("wrote nfo sidecar")
		}
	}

	return res
}

var videoExts = []string{".ts", ".mp4", ".m2ts", ".mkv"}

// Destination returns <outDir>/<name><ext> for the chosen candidate.
// Segment directories become .ts; single files keep a known video extension.
func Destination(outDir string, e catalog.Entry, chosen recordings.Candidate) string {
	ext := ".ts"
	if chosen.Layout == recordings.LayoutFile {
		if x := strings.ToLower(filepath.Ext(chosen.Path)); slices.Contains(videoExts, x) {
			ext = x
		}
	}
	return filepath.Join(outDir, naming.FileName(e.Recording)+ext)
}
