// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/tablo-rescue/internal/catalog"
	"github.com/ManuGH/tablo-rescue/internal/config"
	"github.com/ManuGH/tablo-rescue/internal/fsutil"
	xglog "github.com/ManuGH/tablo-rescue/internal/log"
	"github.com/ManuGH/tablo-rescue/internal/metrics"
	"github.com/ManuGH/tablo-rescue/internal/persistence/sqlite"
	"github.com/ManuGH/tablo-rescue/internal/recordings"
	"github.com/ManuGH/tablo-rescue/internal/rescue"
	"github.com/ManuGH/tablo-rescue/internal/tablodb"
)

// app is one invocation with its resolved configuration.
type app struct {
	cfg    config.AppConfig
	mount  string
	ids    []int64
	dump   bool
	stdout io.Writer
	stderr io.Writer
}

// run performs a dump or a rescue and returns the exit code. A non-nil error
// is fatal and maps to exit code 2.
func (a *app) run(ctx context.Context) (int, error) {
	start := time.Now()

	xglog.Configure(xglog.Config{
		Level:   a.cfg.LogLevel,
		Format:  a.cfg.LogFormat,
		Output:  a.stderr,
		Version: a.cfg.Version,
	})
	ctx = xglog.ContextWithRunID(ctx, uuid.NewString())
	logger := xglog.WithComponentFromContext(ctx, "cli")
	ctx = logger.WithContext(ctx)

	info, err := os.Stat(a.mount)
	if err != nil {
		return exitFatal, fmt.Errorf("drive mount point: %w", err)
	}
	if !info.IsDir() {
		return exitFatal, fmt.Errorf("drive mount point %s is not a directory", a.mount)
	}
	if !a.dump {
		if err := checkOutDir(a.mount, a.cfg.OutDir); err != nil {
			return exitFatal, err
		}
	}

	dbPath, err := tablodb.Locate(a.mount, a.cfg.DBFile, a.cfg.DBSearchPaths)
	if err != nil {
		return exitFatal, err
	}
	logger.Info().
		Str(xglog.FieldEvent, "cli.database_found").
		Str(xglog.FieldMountPath, a.mount).
		Str(xglog.FieldDBPath, dbPath).
		Msg("using tablo database")

	if a.cfg.CheckDB {
		a.checkDatabase(ctx, dbPath)
	}

	reader, err := tablodb.Open(ctx, dbPath)
	if err != nil {
		return exitFatal, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Debug().Err(err).Msg("close database")
		}
	}()
	logger.Info().
		Str(xglog.FieldEvent, "cli.database_opened").
		Str(xglog.FieldDBPath, reader.Path()).
		Str(xglog.FieldSchema, string(reader.Schema())).
		Msg("tablo database opened read-only")

	resolver := recordings.NewResolver(a.mount, recordings.NewPathMapper(a.cfg.PathMappings), a.cfg.Tolerance)
	cat, err := catalog.Build(ctx, reader.Records(ctx), resolver)
	if err != nil {
		return exitFatal, err
	}
	if n := reader.Skipped(); n > 0 {
		logger.Warn().
			Str(xglog.FieldEvent, "cli.rows_skipped").
			Int("rows", n).
			Msg("some database rows could not be parsed and were skipped (use -d for details)")
	}

	run := metrics.NewRun()
	run.ObserveCatalog(cat.Summary(), reader.Skipped(), cat.Duplicates())
	defer a.writeMetrics(logger, run, start)

	entries, unknown := cat.Filter(a.ids)
	for _, id := range unknown {
		logger.Warn().
			Str(xglog.FieldEvent, "cli.unknown_id").
			Int64(xglog.FieldRecordingID, id).
			Msg("no recording with this id in the database")
		fmt.Fprintf(a.stderr, "⚠️  unknown-id: %d\n", id)
	}

	if a.dump {
		if len(a.ids) > 0 {
			err = catalog.WriteDetail(a.stdout, entries, unknown)
		} else {
			err = catalog.WriteListing(a.stdout, entries)
		}
		if err != nil {
			return exitFatal, fmt.Errorf("write report: %w", err)
		}
		return exitOK, nil
	}

	report := rescue.NewOrchestrator(rescue.FileCopier{}, run).Run(ctx, entries, rescue.Options{
		OutDir:             a.cfg.OutDir,
		Force:              a.cfg.Force,
		AcceptSizeMismatch: a.cfg.AcceptSizeMismatch,
		WriteNFO:           a.cfg.WriteNFO,
	})
	if err := report.Write(a.stdout); err != nil {
		return exitFatal, fmt.Errorf("write report: %w", err)
	}

	logger.Info().
		Str(xglog.FieldEvent, "cli.done").
		Str(xglog.FieldOutputPath, a.cfg.OutDir).
		Int("copied", report.Counts()[rescue.OutcomeCopied]).
		Int("failed", len(report.Failed())).
		Dur("elapsed", time.Since(start)).
		Msg("rescue finished")

	return report.ExitCode(), nil
}

// checkDatabase reports integrity problems without stopping the run.
func (a *app) checkDatabase(ctx context.Context, dbPath string) {
	logger := xglog.FromContext(ctx)
	fmt.Fprintf(a.stderr, "🔍 Verifying integrity of %s...\n", dbPath)

	issues, err := sqlite.VerifyIntegrity(ctx, dbPath, "quick")
	switch {
	case err != nil:
		logger.Warn().Err(err).Str(xglog.FieldDBPath, dbPath).Msg("integrity check could not run")
		fmt.Fprintf(a.stderr, "⚠️  Integrity check could not run: %v\n", err)
	case len(issues) > 0:
		logger.Warn().Strs("issues", issues).Str(xglog.FieldDBPath, dbPath).Msg("database integrity problems")
		fmt.Fprintln(a.stderr, "🚨 Database integrity problems (continuing read-only):")
		for _, issue := range issues {
			fmt.Fprintf(a.stderr, "  - %s\n", issue)
		}
	default:
		fmt.Fprintln(a.stderr, "✅ Database integrity OK")
	}
}

// writeMetrics stamps and writes the run metrics when a textfile is configured.
func (a *app) writeMetrics(logger zerolog.Logger, run *metrics.Run, start time.Time) {
	if a.cfg.MetricsFile == "" {
		return
	}
	run.Finish(start, time.Now())
	if err := run.WriteTextfile(a.cfg.MetricsFile); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldPath, a.cfg.MetricsFile).Msg("failed to write metrics")
	}
}

// checkOutDir refuses an output directory on the source drive, including one
// reached through a symlink.
func checkOutDir(mount, outDir string) error {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("output directory: %w", err)
	}
	if _, err := fsutil.ConfineAbsPath(mount, resolveExisting(abs)); err == nil {
		return usageError{msg: fmt.Sprintf("output directory %s is on the source drive %s; choose a directory outside it", outDir, mount)}
	}
	return nil
}

// resolveExisting evaluates symlinks on the longest existing prefix of p and
// appends the part that does not exist yet.
func resolveExisting(p string) string {
	rest := ""
	for cur := p; ; cur = filepath.Dir(cur) {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(resolved, rest)
		}
		if filepath.Dir(cur) == cur {
			return p
		}
		rest = filepath.Join(filepath.Base(cur), rest)
	}
}
