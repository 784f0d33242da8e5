// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package testutil builds fake Tablo drives (database + recording tree) for tests.
package testutil

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// Layout selects which Recording table shape WriteDB creates.
type Layout string

const (
	LayoutSegmented Layout = "segmented"
	LayoutPathed    Layout = "pathed"
	LayoutFileID    Layout = "fileid"
)

// Recording is a fixture row for the Recording table.
type Recording struct {
	ID           int64
	Title        string
	EpisodeTitle string
	Season       int64
	Episode      int64
	EntityType   string
	SubType      string
	ChannelID    int64
	JSON         string
	Path         string
	FileID       int64
	Size         int64
	Deleted      bool
}

// Channel is a fixture row for the Channel table.
type Channel struct {
	ID              int64
	CallSign        string
	Major, Minor    int64
	ResolutionTitle string
}

// Drive is a temporary directory shaped like a Tablo external drive.
type Drive struct {
	Root string
}

// NewDrive creates an empty drive under t.TempDir().
func NewDrive(t *testing.T) *Drive {
	t.Helper()
	return &Drive{Root: t.TempDir()}
}

// DBPath is the default database location on the drive.
func (d *Drive) DBPath() string {
	return filepath.Join(d.Root, "db", "Tablo.db")
}

// WriteDB creates db/Tablo.db with the given layout and rows.
func (d *Drive) WriteDB(t *testing.T, layout Layout, userVersion int, recs []Recording, chans []Channel) string {
	t.Helper()
	return WriteDBAt(t, d.DBPath(), layout, userVersion, recs, chans)
}

// WriteDBAt creates a database file at path.
func WriteDBAt(t *testing.T, path string, layout Layout, userVersion int, recs []Recording, chans []Channel) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir db dir: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	defer db.Close()

	cols := []string{
		"ID INTEGER PRIMARY KEY", "title TEXT", "json TEXT", "channelID INTEGER",
		"origAirDate TEXT", "shortDescription TEXT", "longDescription TEXT",
		"episodeTitle TEXT", "episodeNum INTEGER", "seasonNum INTEGER",
		"topCast TEXT", "fullCast TEXT", "entityType TEXT", "subType TEXT",
		"size INTEGER", "DateDeleted TEXT",
	}
	switch layout {
	case LayoutPathed:
		cols = append(cols, "path TEXT")
	case LayoutFileID:
		cols = append(cols, "fileID INTEGER")
	}

	stmts := []string{
		fmt.Sprintf("PRAGMA user_version = %d", userVersion),
		"CREATE TABLE Recording (" + strings.Join(cols, ", ") + ")",
		"CREATE TABLE Channel (ID INTEGER PRIMARY KEY, callSign TEXT, channelNumberMajor INTEGER, channelNumberMinor INTEGER, resolutionTitle TEXT)",
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("fixture schema %q: %v", s, err)
		}
	}

	for _, c := range chans {
		if _, err := db.Exec(`INSERT INTO Channel VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.CallSign, c.Major, c.Minor, c.ResolutionTitle); err != nil {
			t.Fatalf("insert channel: %v", err)
		}
	}

	for _, r := range recs {
		deleted := ""
		if r.Deleted {
			deleted = "2024-01-01 00:00:00"
		}
		var size any
		if r.Size > 0 {
			size = r.Size
		}
		var jsonBlob any
		if r.JSON != "" {
			jsonBlob = r.JSON
		}
		names := "ID, title, json, channelID, episodeTitle, episodeNum, seasonNum, entityType, subType, size, DateDeleted"
		args := []any{r.ID, r.Title, jsonBlob, r.ChannelID, r.EpisodeTitle, r.Episode, r.Season, r.EntityType, r.SubType, size, deleted}
		switch layout {
		case LayoutPathed:
			names += ", path"
			args = append(args, r.Path)
		case LayoutFileID:
			names += ", fileID"
			var fid any
			if r.FileID > 0 {
				fid = r.FileID
			}
			args = append(args, fid)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
		if _, err := db.Exec("INSERT INTO Recording ("+names+") VALUES ("+placeholders+")", args...); err != nil {
			t.Fatalf("insert recording %d: %v", r.ID, err)
		}
	}
	return path
}

// AddFile writes size bytes to a drive-relative path and returns the absolute path.
func (d *Drive) AddFile(t *testing.T, rel string, size int) string {
	t.Helper()
	p := filepath.Join(d.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// AddSegments creates n MPEG-TS segment files of size bytes each under
// rec/<id>/segs and returns the segment directory.
func (d *Drive) AddSegments(t *testing.T, id int64, n, size int) string {
	t.Helper()
	dir := filepath.Join("rec", strconv.FormatInt(id, 10), "segs")
	for i := 0; i < n; i++ {
		d.AddFile(t, filepath.ToSlash(filepath.Join(dir, fmt.Sprintf("%05d.ts", i))), size)
	}
	return filepath.Join(d.Root, dir)
}
