// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recordings

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xglog "github.com/ManuGH/tablo-rescue/internal/log"
	"github.com/ManuGH/tablo-rescue/internal/tablodb"
	"github.com/ManuGH/tablo-rescue/internal/testutil"
)

func idRec(id int64) tablodb.Recording {
	return tablodb.Recording{ID: id, Storage: tablodb.StorageRef{Kind: tablodb.RefRecordingID, ID: id}}
}

func newTestResolver(d *testutil.Drive) *Resolver {
	return NewResolver(d.Root, nil, DefaultTolerance())
}

func TestResolve_SegmentDirectoryRecoverable(t *testing.T) {
	drive := testutil.NewDrive(t)
	drive.AddSegments(t, 1, 3, 100)
	drive.AddFile(t, "rec/1/meta.txt", 10)

	loc := newTestResolver(drive).Resolve(context.Background(), idRec(1))

	assert.Equal(t, StatusRecoverable, loc.Status)
	assert.Equal(t, filepath.Join(drive.Root, "rec", "1", "segs"), loc.ChosenPath)
	assert.Equal(t, int64(300), loc.ActualSize)

	chosen, ok := loc.Chosen()
	require.True(t, ok)
	assert.Equal(t, LayoutSegments, chosen.Layout)
	require.Len(t, chosen.Segments, 3)
	assert.Equal(t, "00000.ts", filepath.Base(chosen.Segments[0]))
	assert.Equal(t, "00002.ts", filepath.Base(chosen.Segments[2]))
	assert.Len(t, loc.Candidates, 4)
	assert.Equal(t, 1, loc.Existing())
}

func TestResolve_MissingListsEveryCandidate(t *testing.T) {
	drive := testutil.NewDrive(t)

	loc := newTestResolver(drive).Resolve(context.Background(), idRec(2))

	assert.Equal(t, StatusMissing, loc.Status)
	assert.Empty(t, loc.ChosenPath)
	_, ok := loc.Chosen()
	assert.False(t, ok)

	want := []string{
		filepath.Join(drive.Root, "rec", "2", "segs"),
		filepath.Join(drive.Root, "rec", "2.ts"),
		filepath.Join(drive.Root, "rec", "2.mp4"),
		filepath.Join(drive.Root, "rec", "2", "2.ts"),
	}
	var got []string
	for _, c := range loc.Candidates {
		assert.False(t, c.Exists)
		got = append(got, c.Path)
	}
	assert.Equal(t, want, got)
}

func TestResolve_AmbiguousNeverGuesses(t *testing.T) {
	drive := testutil.NewDrive(t)
	drive.AddSegments(t, 3, 2, 50)
	drive.AddFile(t, "rec/3.ts", 100)

	loc := newTestResolver(drive).Resolve(context.Background(), idRec(3))

	assert.Equal(t, StatusAmbiguous, loc.Status)
	assert.Empty(t, loc.ChosenPath)
	assert.Equal(t, 2, loc.Existing())
}

func TestResolve_EmptyFileDoesNotExist(t *testing.T) {
	drive := testutil.NewDrive(t)
	drive.AddFile(t, "rec/4.ts", 0)

	loc := newTestResolver(drive).Resolve(context.Background(), idRec(4))

	assert.Equal(t, StatusMissing, loc.Status)
	assert.Equal(t, "empty file", loc.Candidates[1].Note)
}

func TestResolve_SegmentDirWithoutSegments(t *testing.T) {
	drive := testutil.NewDrive(t)
	drive.AddFile(t, "rec/5/segs/readme.txt", 4)

	loc := newTestResolver(drive).Resolve(context.Background(), idRec(5))

	assert.Equal(t, StatusMissing, loc.Status)
	assert.Equal(t, LayoutSegments, loc.Candidates[0].Layout)
	assert.Equal(t, "no segments", loc.Candidates[0].Note)
}

func TestResolve_SameFileCountsOnce(t *testing.T) {
	t.Run("symlink", func(t *testing.T) {
		drive := testutil.NewDrive(t)
		target := drive.AddFile(t, "rec/6.ts", 100)
		require.NoError(t, os.Symlink(target, filepath.Join(drive.Root, "rec", "6.mp4")))

		loc := newTestResolver(drive).Resolve(context.Background(), idRec(6))

		assert.Equal(t, StatusRecoverable, loc.Status)
		assert.Equal(t, target, loc.ChosenPath)
		assert.Equal(t, target, loc.Candidates[2].DuplicateOf)
	})

	t.Run("hard link", func(t *testing.T) {
		drive := testutil.NewDrive(t)
		target := drive.AddFile(t, "rec/7.ts", 100)
		require.NoError(t, os.MkdirAll(filepath.Join(drive.Root, "rec", "7"), 0o750))
		if err := os.Link(target, filepath.Join(drive.Root, "rec", "7", "7.ts")); err != nil {
			t.Skipf("hard links unsupported: %v", err)
		}

		loc := newTestResolver(drive).Resolve(context.Background(), idRec(7))

		assert.Equal(t, StatusRecoverable, loc.Status)
		assert.Equal(t, 1, loc.Existing())
	})
}

func TestResolve_SizeCheck(t *testing.T) {
	tol := Tolerance{Ratio: 0.02, Bytes: 10}

	tests := []struct {
		name     string
		expected int64
		actual   int
		want     Status
	}{
		{name: "no expected size", expected: 0, actual: 500, want: StatusRecoverable},
		{name: "exact", expected: 500, actual: 500, want: StatusRecoverable},
		{name: "within bytes floor", expected: 500, actual: 490, want: StatusRecoverable},
		{name: "within ratio", expected: 2000, actual: 1960, want: StatusRecoverable},
		{name: "truncated", expected: 2000, actual: 1000, want: StatusSizeMismatch},
		{name: "larger than recorded", expected: 500, actual: 600, want: StatusSizeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drive := testutil.NewDrive(t)
			path := drive.AddFile(t, "rec/8.ts", tt.actual)
			rec := idRec(8)
			rec.ExpectedSize = tt.expected

			loc := NewResolver(drive.Root, nil, tol).Resolve(context.Background(), rec)

			assert.Equal(t, tt.want, loc.Status)
			assert.Equal(t, path, loc.ChosenPath, "chosen path is kept for reporting")
			assert.Equal(t, int64(tt.actual), loc.ActualSize)
			assert.Equal(t, tt.expected, loc.ExpectedSize)
		})
	}
}

func TestResolve_IncompleteMarkerIsSizeMismatch(t *testing.T) {
	drive := testutil.NewDrive(t)
	drive.AddFile(t, "rec/9.ts", 100)
	drive.AddFile(t, "rec/9.ts.lock", 0)

	loc := newTestResolver(drive).Resolve(context.Background(), idRec(9))

	assert.Equal(t, StatusSizeMismatch, loc.Status)
	chosen, ok := loc.Chosen()
	require.True(t, ok)
	assert.True(t, chosen.Incomplete)
}

func TestResolve_SizeMismatchIsNeverRecoverable(t *testing.T) {
	drive := testutil.NewDrive(t)
	drive.AddSegments(t, 10, 4, 1000)
	r := NewResolver(drive.Root, nil, Tolerance{Ratio: 0.01, Bytes: 0})

	for _, expected := range []int64{1, 100, 3000, 3959, 4041, 5000, 1 << 30} {
		rec := idRec(10)
		rec.ExpectedSize = expected
		loc := r.Resolve(context.Background(), rec)
		assert.NotEqual(t, StatusRecoverable, loc.Status, "expected size %d", expected)
	}
}

func TestResolve_PathReferences(t *testing.T) {
	drive := testutil.NewDrive(t)
	drive.AddSegments(t, 11, 2, 10)
	drive.AddFile(t, "recordings/twelve.ts", 10)

	r := newTestResolver(drive)

	t.Run("appliance absolute path to directory", func(t *testing.T) {
		loc := r.Resolve(context.Background(), tablodb.Recording{ID: 11, Storage: tablodb.StorageRef{Kind: tablodb.RefPath, Path: "/media/tablo/rec/11"}})
		assert.Equal(t, StatusRecoverable, loc.Status)
		assert.Equal(t, filepath.Join(drive.Root, "rec", "11", "segs"), loc.ChosenPath)
		require.Len(t, loc.Candidates, 2)
		assert.Equal(t, "no segments", loc.Candidates[0].Note)
	})

	t.Run("drive relative file", func(t *testing.T) {
		loc := r.Resolve(context.Background(), tablodb.Recording{ID: 12, Storage: tablodb.StorageRef{Kind: tablodb.RefPath, Path: "recordings/twelve.ts"}})
		assert.Equal(t, StatusRecoverable, loc.Status)
		assert.Len(t, loc.Candidates, 1)
	})

	t.Run("unmapped appliance root", func(t *testing.T) {
		loc := r.Resolve(context.Background(), tablodb.Recording{ID: 13, Storage: tablodb.StorageRef{Kind: tablodb.RefPath, Path: "/opt/tablo/rec/13.ts"}})
		assert.Equal(t, StatusMissing, loc.Status)
		require.Len(t, loc.Candidates, 1)
		assert.Equal(t, "no appliance root mapping", loc.Candidates[0].Note)
	})

	t.Run("custom mapping", func(t *testing.T) {
		mapped := NewResolver(drive.Root, NewPathMapper([]PathMapping{{ApplianceRoot: "/opt/tablo", DriveRoot: "recordings"}}), DefaultTolerance())
		loc := mapped.Resolve(context.Background(), tablodb.Recording{ID: 12, Storage: tablodb.StorageRef{Kind: tablodb.RefPath, Path: "/opt/tablo/twelve.ts"}})
		assert.Equal(t, StatusRecoverable, loc.Status)
	})
}

func TestResolve_ConfinedToDrive(t *testing.T) {
	parent := t.TempDir()
	drive := &testutil.Drive{Root: filepath.Join(parent, "drive")}
	require.NoError(t, os.MkdirAll(drive.Root, 0o750))
	outside := filepath.Join(parent, "outside.ts")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o600))

	r := newTestResolver(drive)

	t.Run("relative traversal", func(t *testing.T) {
		loc := r.Resolve(context.Background(), tablodb.Recording{ID: 1, Storage: tablodb.StorageRef{Kind: tablodb.RefPath, Path: "../outside.ts"}})
		assert.Equal(t, StatusMissing, loc.Status)
		assert.Contains(t, loc.Candidates[0].Note, "outside drive")
	})

	t.Run("symlink pointing off the drive", func(t *testing.T) {
		require.NoError(t, os.MkdirAll(filepath.Join(drive.Root, "rec"), 0o750))
		require.NoError(t, os.Symlink(outside, filepath.Join(drive.Root, "rec", "2.ts")))

		loc := r.Resolve(context.Background(), idRec(2))
		assert.Equal(t, StatusMissing, loc.Status)
		assert.Contains(t, loc.Candidates[1].Note, "outside drive")
	})
}

func TestResolve_FileIDShardedLayout(t *testing.T) {
	drive := testutil.NewDrive(t)
	want := drive.AddFile(t, "rec/345/12345.ts", 64)
	drive.AddFile(t, "rec/007/7.ts", 64)

	r := newTestResolver(drive)

	loc := r.Resolve(context.Background(), tablodb.Recording{ID: 1, Storage: tablodb.StorageRef{Kind: tablodb.RefFileID, ID: 12345}})
	assert.Equal(t, StatusRecoverable, loc.Status)
	assert.Equal(t, want, loc.ChosenPath)
	assert.Len(t, loc.Candidates, 3)

	loc = r.Resolve(context.Background(), tablodb.Recording{ID: 2, Storage: tablodb.StorageRef{Kind: tablodb.RefFileID, ID: 7}})
	assert.Equal(t, StatusRecoverable, loc.Status)
}

func TestResolve_Idempotent(t *testing.T) {
	drive := testutil.NewDrive(t)
	drive.AddSegments(t, 1, 3, 10)
	drive.AddSegments(t, 2, 1, 10)
	drive.AddFile(t, "rec/2.ts", 10)
	drive.AddFile(t, "rec/3.ts", 10)

	r := newTestResolver(drive)
	for _, id := range []int64{1, 2, 3, 4} {
		rec := idRec(id)
		rec.ExpectedSize = 30
		first := r.Resolve(context.Background(), rec)
		second := r.Resolve(context.Background(), rec)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("resolve(%d) not idempotent (-first +second):\n%s", id, diff)
		}
	}
}

func TestTolerance(t *testing.T) {
	tol := DefaultTolerance()
	assert.Equal(t, int64(1<<20), tol.Allowed(1000))
	assert.Equal(t, int64(20_000_000), tol.Allowed(1_000_000_000))
	assert.True(t, tol.Within(1_000_000_000, 980_000_000))
	assert.False(t, tol.Within(1_000_000_000, 979_999_999))
	assert.True(t, tol.Within(100, 100+(1<<20)))
}

func TestResolve_DebugLogCarriesRunID(t *testing.T) {
	var buf bytes.Buffer
	xglog.Configure(xglog.Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { xglog.Configure(xglog.Config{}) })

	drive := testutil.NewDrive(t)
	drive.AddSegments(t, 1, 3, 10)

	ctx := xglog.ContextWithRunID(context.Background(), "run-123")
	loc := newTestResolver(drive).Resolve(ctx, idRec(1))
	require.Equal(t, StatusRecoverable, loc.Status)

	out := buf.String()
	assert.Contains(t, out, `"event":"resolver.resolved"`)
	assert.Contains(t, out, `"run_id":"run-123"`)
	assert.Contains(t, out, `"component":"resolver"`)
	assert.Contains(t, out, `"segments":3`)
}
