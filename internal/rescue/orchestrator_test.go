// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rescue

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/tablo-rescue/internal/catalog"
	"github.com/ManuGH/tablo-rescue/internal/recordings"
	"github.com/ManuGH/tablo-rescue/internal/tablodb"
	"github.com/ManuGH/tablo-rescue/internal/testutil"
)

type fakeCopier struct {
	calls []string
	err   map[string]error
}

func (f *fakeCopier) Copy(_ context.Context, src Source, dst string) (int64, error) {
	f.calls = append(f.calls, dst)
	if err := f.err[filepath.Base(dst)]; err != nil {
		return 0, err
	}
	return 1, os.WriteFile(dst, []byte("x"), 0o600)
}

type collectRecorder struct{ got []Result }

func (c *collectRecorder) Record(r Result) { c.got = append(c.got, r) }

func entry(id int64, status recordings.Status, chosen string) catalog.Entry {
	loc := recordings.ResolvedLocation{Status: status}
	if chosen != "" {
		loc.ChosenPath = chosen
		loc.Candidates = []recordings.Candidate{{Path: chosen, Layout: recordings.LayoutFile, Exists: true, Size: 1}}
	}
	return catalog.Entry{
		Recording: tablodb.Recording{ID: id, Title: "Show", EntityType: "Movie"},
		Location:  loc,
	}
}

func outcomes(r Report) map[int64]Outcome {
	out := map[int64]Outcome{}
	for _, res := range r.Results {
		out[res.ID] = res.Outcome
	}
	return out
}

func TestRun_NonRecoverableNeverWrites(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "out")
	copier := &fakeCopier{}
	rec := &collectRecorder{}

	report := NewOrchestrator(copier, rec).Run(context.Background(), []catalog.Entry{
		entry(3, recordings.StatusSizeMismatch, "/drive/rec/3.ts"),
		entry(1, recordings.StatusMissing, ""),
		entry(2, recordings.StatusAmbiguous, ""),
	}, Options{OutDir: outDir})

	assert.Equal(t, map[int64]Outcome{
		1: OutcomeSkippedMissing,
		2: OutcomeSkippedAmbiguous,
		3: OutcomeSkippedSizeMismatch,
	}, outcomes(report))
	assert.Empty(t, copier.calls)
	assert.NoDirExists(t, outDir)
	assert.Equal(t, 0, report.ExitCode())
	assert.Len(t, rec.got, 3)
	for _, r := range report.Results {
		assert.Empty(t, r.Destination)
	}
}

func TestRun_ResultsInIDOrder(t *testing.T) {
	report := NewOrchestrator(&fakeCopier{}, nil).Run(context.Background(), []catalog.Entry{
		entry(30, recordings.StatusMissing, ""),
		entry(10, recordings.StatusMissing, ""),
		entry(20, recordings.StatusMissing, ""),
	}, Options{OutDir: t.TempDir()})

	var ids []int64
	for _, r := range report.Results {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{10, 20, 30}, ids)
}

func TestRun_AcceptSizeMismatch(t *testing.T) {
	outDir := t.TempDir()
	copier := &fakeCopier{}

	report := NewOrchestrator(copier, nil).Run(context.Background(), []catalog.Entry{
		entry(4, recordings.StatusSizeMismatch, "/drive/rec/4.mp4"),
	}, Options{OutDir: outDir, AcceptSizeMismatch: true})

	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomeCopied, report.Results[0].Outcome)
	assert.Equal(t, filepath.Join(outDir, "4 Show - [Movie] [TVRip].mp4"), report.Results[0].Destination)
}

func TestRun_FailureDoesNotStopBatch(t *testing.T) {
	outDir := t.TempDir()
	boom := errors.New("input/output error")
	copier := &fakeCopier{err: map[string]error{"1 Show - [Movie] [TVRip].ts": boom}}

	report := NewOrchestrator(copier, nil).Run(context.Background(), []catalog.Entry{
		entry(1, recordings.StatusRecoverable, "/drive/rec/1.ts"),
		entry(2, recordings.StatusRecoverable, "/drive/rec/2.ts"),
	}, Options{OutDir: outDir})

	assert.Equal(t, map[int64]Outcome{1: OutcomeFailed, 2: OutcomeCopied}, outcomes(report))
	require.Len(t, report.Failed(), 1)
	assert.ErrorIs(t, report.Failed()[0].Err, boom)
	assert.Equal(t, 1, report.ExitCode())
	assert.Len(t, copier.calls, 2)
}

func TestRun_CancelledFailsRemainingWithoutCopying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	copier := &fakeCopier{}

	report := NewOrchestrator(copier, nil).Run(ctx, []catalog.Entry{
		entry(1, recordings.StatusRecoverable, "/drive/rec/1.ts"),
		entry(2, recordings.StatusMissing, ""),
	}, Options{OutDir: t.TempDir()})

	assert.Equal(t, map[int64]Outcome{1: OutcomeFailed, 2: OutcomeSkippedMissing}, outcomes(report))
	assert.ErrorIs(t, report.Results[0].Err, context.Canceled)
	assert.Empty(t, copier.calls)
}

// buildThreeRecordingCatalog: 1 has one segment directory, 2 has no data,
// 3 has both a segment directory and a single file.
func buildThreeRecordingCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	drive := testutil.NewDrive(t)
	dbPath := drive.WriteDB(t, testutil.LayoutSegmented, 0, []testutil.Recording{
		{ID: 1, Title: "Nova", EpisodeTitle: "Stars", Season: 1, Episode: 2, EntityType: "Episode", ChannelID: 5},
		{ID: 2, Title: "Gone", EntityType: "Movie"},
		{ID: 3, Title: "Twice", EntityType: "Movie"},
	}, []testutil.Channel{{ID: 5, CallSign: "WGBH", Major: 2, Minor: 1, ResolutionTitle: "1080i"}})
	drive.AddSegments(t, 1, 3, 1000)
	drive.AddSegments(t, 3, 1, 1000)
	drive.AddFile(t, "rec/3.ts", 1000)

	r, err := tablodb.Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer r.Close()

	cat, err := catalog.Build(context.Background(), r.Records(context.Background()),
		recordings.NewResolver(drive.Root, nil, recordings.DefaultTolerance()))
	require.NoError(t, err)
	return cat
}

func TestRun_EndToEnd(t *testing.T) {
	cat := buildThreeRecordingCatalog(t)
	outDir := filepath.Join(t.TempDir(), "Videos")
	orch := NewOrchestrator(nil, nil)

	report := orch.Run(context.Background(), cat.All(), Options{OutDir: outDir, WriteNFO: true})

	assert.Equal(t, map[int64]Outcome{
		1: OutcomeCopied,
		2: OutcomeSkippedMissing,
		3: OutcomeSkippedAmbiguous,
	}, outcomes(report))
	assert.Equal(t, 0, report.ExitCode())

	want := filepath.Join(outDir, "1 Nova - s01e02 - Stars - [Episode] [HDRip].ts")
	assert.Equal(t, want, report.Results[0].Destination)
	assert.Equal(t, int64(3000), report.Results[0].Bytes)
	info, err := os.Stat(want)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), info.Size())

	nfo, err := os.ReadFile(NFOPath(want))
	require.NoError(t, err)
	assert.Contains(t, string(nfo), "<showtitle>Nova</showtitle>")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "video and sidecar only")

	t.Run("rerun without force skips existing", func(t *testing.T) {
		before, err := os.Stat(want)
		require.NoError(t, err)

		again := orch.Run(context.Background(), cat.All(), Options{OutDir: outDir})
		assert.Equal(t, OutcomeSkippedExisting, again.Results[0].Outcome)
		assert.Equal(t, want, again.Results[0].Destination)

		after, err := os.Stat(want)
		require.NoError(t, err)
		assert.Equal(t, before.ModTime(), after.ModTime())
	})

	t.Run("rerun with force copies again", func(t *testing.T) {
		require.NoError(t, os.WriteFile(want, []byte("stale"), 0o600))

		again := orch.Run(context.Background(), cat.All(), Options{OutDir: outDir, Force: true})
		assert.Equal(t, OutcomeCopied, again.Results[0].Outcome)

		info, err := os.Stat(want)
		require.NoError(t, err)
		assert.Equal(t, int64(3000), info.Size())
	})
}

func TestReport_Write(t *testing.T) {
	report := Report{Results: []Result{
		{ID: 1, Outcome: OutcomeCopied, Destination: "/out/1.ts"},
		{ID: 2, Outcome: OutcomeSkippedMissing},
		{ID: 3, Outcome: OutcomeFailed, Destination: "/out/3.ts", Err: errors.New("boom")},
	}}

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "copied                 1 = /out/1.ts", lines[0])
	assert.Equal(t, "skipped-missing        2", lines[1])
	assert.Equal(t, "failed                 3 = /out/3.ts: boom", lines[2])
	assert.Equal(t, "total=3 copied=1 skipped-existing=0 skipped-missing=1 skipped-ambiguous=0 skipped-size-mismatch=0 failed=1", lines[3])
}

func TestDestination(t *testing.T) {
	e := entry(5, recordings.StatusRecoverable, "")
	tests := []struct {
		cand recordings.Candidate
		want string
	}{
		{recordings.Candidate{Layout: recordings.LayoutSegments, Path: "/d/rec/5/segs"}, "5 Show - [Movie] [TVRip].ts"},
		{recordings.Candidate{Layout: recordings.LayoutFile, Path: "/d/rec/5.MP4"}, "5 Show - [Movie] [TVRip].mp4"},
		{recordings.Candidate{Layout: recordings.LayoutFile, Path: "/d/rec/5"}, "5 Show - [Movie] [TVRip].ts"},
		{recordings.Candidate{Layout: recordings.LayoutFile, Path: "/d/rec/5.ts.partial"}, "5 Show - [Movie] [TVRip].ts"},
	}
	for _, tt := range tests {
		assert.Equal(t, filepath.Join("/out", tt.want), Destination("/out", e, tt.cand), tt.cand.Path)
	}
}
