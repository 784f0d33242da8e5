// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package tablodb reads recording metadata from a Tablo appliance database
// (Tablo.db) found on the appliance's external drive.
//
// The database is only copied to the drive when the appliance is reset, so it
// can lag behind the recordings that actually exist on disk. Callers must
// treat every record as a claim to be checked against the filesystem.
package tablodb

import (
	"strconv"
	"time"
)

// RefKind tags how a Recording points at its video data.
type RefKind string

const (
	// RefRecordingID: video lives under a directory named after the recording id.
	RefRecordingID RefKind = "recording-id"
	// RefPath: the database stores a path, relative to the drive or absolute
	// in the appliance's own filesystem namespace.
	RefPath RefKind = "path"
	// RefFileID: the database stores an internal file id used in a sharded layout.
	RefFileID RefKind = "file-id"
)

// StorageRef is the appliance-internal pointer to a recording's video data.
type StorageRef struct {
	Kind RefKind
	ID   int64  // RefRecordingID, RefFileID
	Path string // RefPath
}

func (r StorageRef) String() string {
	switch r.Kind {
	case RefPath:
		return string(r.Kind) + ":" + r.Path
	default:
		return string(r.Kind) + ":" + strconv.FormatInt(r.ID, 10)
	}
}

// Channel holds the broadcast channel a recording was made from.
type Channel struct {
	ID              int64
	CallSign        string
	NumberMajor     int64
	NumberMinor     int64
	ResolutionTitle string
}

// Recording is one normalized entry of the appliance database.
type Recording struct {
	ID               int64
	Title            string
	EpisodeTitle     string
	SeasonNumber     int64
	EpisodeNumber    int64
	EntityType       string // Episode, Movie, Show, Sports...
	SubType          string
	ShortDescription string
	LongDescription  string
	OrigAirDate      string
	TopCast          string
	FullCast         string
	Channel          Channel
	RecordedAt       time.Time

	Storage      StorageRef
	ExpectedSize int64 // 0 when the database carries no size
	Schema       SchemaKind
}

// HasExpectedSize reports whether the database recorded a byte count.
func (r Recording) HasExpectedSize() bool { return r.ExpectedSize > 0 }

// IsEpisode reports whether the recording belongs to a series.
func (r Recording) IsEpisode() bool {
	return r.EntityType == "Episode"
}
