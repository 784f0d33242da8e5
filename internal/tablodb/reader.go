// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package tablodb

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"

	xglog "github.com/ManuGH/tablo-rescue/internal/log"
	"github.com/ManuGH/tablo-rescue/internal/persistence/sqlite"
	"github.com/rs/zerolog"
)

var recordingColumns = []string{
	"ID", "title", "json", "channelID", "origAirDate", "shortDescription",
	"longDescription", "episodeTitle", "episodeNum", "seasonNum", "topCast",
	"fullCast", "entityType", "subType", "path", "fileID", "size", "fileSize",
	"airDate", "DateCreated",
}

var channelColumns = []string{
	"ID", "callSign", "channelNumberMajor", "channelNumberMinor", "resolutionTitle",
}

// Reader gives typed, read-only access to the recordings of one database.
type Reader struct {
	db       *sql.DB
	path     string
	schema   detectedSchema
	channels map[int64]Channel
	skipped  int
	logger   zerolog.Logger
}

// Open opens the database at path read-only and detects its schema.
func Open(ctx context.Context, path string) (*Reader, error) {
	db, err := sqlite.OpenReadOnly(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	schema, err := detectSchema(ctx, db, path)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	r := &Reader{
		db:     db,
		path:   path,
		schema: schema,
		logger: xglog.WithComponentFromContext(ctx, "tablodb").With().
			Str(xglog.FieldDBPath, path).
			Str(xglog.FieldSchema, string(schema.strategy.kind)).
			Logger(),
	}

	if err := r.loadChannels(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	r.logger.Debug().
		Str(xglog.FieldEvent, "tablodb.opened").
		Int64("user_version", schema.userVersion).
		Int("channels", len(r.channels)).
		Msg("opened tablo database")

	return r, nil
}

// Close releases the database handle.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Reader) Path() string { return r.path }

// Schema returns the detected layout.
func (r *Reader) Schema() SchemaKind { return r.schema.strategy.kind }

// UserVersion returns the schema marker stored in the database.
func (r *Reader) UserVersion() int64 { return r.schema.userVersion }

// Skipped returns how many rows were dropped as unparseable so far.
func (r *Reader) Skipped() int { return r.skipped }

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func selectQuery(table string, cols []string, where string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	q := "SELECT " + strings.Join(quoted, ", ") + " FROM " + quoteIdent(table)
	if where != "" {
		q += " WHERE " + where
	}
	return q
}

func (r *Reader) loadChannels(ctx context.Context) error {
	r.channels = map[int64]Channel{}
	if r.schema.channel == nil {
		return nil
	}

	cols := r.schema.channel.selectList(channelColumns)
	rows, err := r.db.QueryContext(ctx, selectQuery("Channel", cols, ""))
	if err != nil {
		return fmt.Errorf("read channels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("read channels: %w", err)
		}
		cr := newRow(cols, raw)
		id, err := cr.int("ID")
		if err != nil {
			r.logger.Debug().Str("raw_id", cr.str("ID")).Err(err).Msg("skipping unparseable channel row")
			continue
		}
		r.channels[id] = Channel{
			ID:              id,
			CallSign:        cr.str("callSign"),
			NumberMajor:     cr.intOrZero("channelNumberMajor"),
			NumberMinor:     cr.intOrZero("channelNumberMinor"),
			ResolutionTitle: cr.str("resolutionTitle"),
		}
	}
	return rows.Err()
}

// Records lazily yields every live recording in ascending id order. Rows that
// cannot be parsed are skipped and logged; only store-level failures are
// yielded as errors, after which iteration stops.
func (r *Reader) Records(ctx context.Context) iter.Seq2[Recording, error] {
	return func(yield func(Recording, error) bool) {
		cols := r.schema.recording.selectList(recordingColumns)
		idCol, _ := r.schema.recording.pick("ID")
		where := quoteIdent(idCol) + " > 0"
		if del, ok := r.schema.recording.pick("DateDeleted"); ok {
			where += fmt.Sprintf(" AND (%[1]s IS NULL OR LENGTH(%[1]s) < 1)", quoteIdent(del))
		}
		query := selectQuery(recordingTable, cols, where) + " ORDER BY " + quoteIdent(idCol)

		rows, err := r.db.QueryContext(ctx, query)
		if err != nil {
			yield(Recording{}, fmt.Errorf("query recordings: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			raw := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range raw {
				ptrs[i] = &raw[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				yield(Recording{}, fmt.Errorf("scan recording row: %w", err))
				return
			}

			rec, err := r.decode(newRow(cols, raw))
			if err != nil {
				r.skipped++
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Recording{}, fmt.Errorf("iterate recordings: %w", err))
		}
	}
}

// decode normalizes one row into a Recording using the detected strategy.
func (r *Reader) decode(rw row) (Recording, error) {
	id, err := rw.int("ID")
	if err != nil {
		r.logger.Debug().
			Str(xglog.FieldEvent, "tablodb.row_skipped").
			Str("raw_id", rw.str("ID")).
			Err(err).
			Msg("skipping recording row with unparseable id")
		return Recording{}, err
	}
	rw.id = id

	fail := func(err error) (Recording, error) {
		r.logger.Debug().
			Str(xglog.FieldEvent, "tablodb.row_skipped").
			Int64(xglog.FieldRecordingID, id).
			Err(err).
			Msg("skipping unparseable recording row")
		return Recording{}, err
	}

	if err := rw.decodeBlob("json"); err != nil {
		return fail(err)
	}

	storage, err := r.schema.strategy.storage(rw)
	if err != nil {
		return fail(err)
	}

	rec := Recording{
		ID:               id,
		Title:            strings.TrimSpace(rw.str("title")),
		EpisodeTitle:     strings.TrimSpace(rw.str("episodeTitle")),
		SeasonNumber:     rw.intOrZero("seasonNum"),
		EpisodeNumber:    rw.intOrZero("episodeNum"),
		EntityType:       rw.str("entityType"),
		SubType:          rw.str("subType"),
		ShortDescription: rw.str("shortDescription"),
		LongDescription:  rw.str("longDescription"),
		OrigAirDate:      rw.str("origAirDate"),
		TopCast:          rw.str("topCast"),
		FullCast:         rw.str("fullCast"),
		Storage:          storage,
		Schema:           r.schema.strategy.kind,
	}

	if chID, err := rw.int("channelID"); err == nil {
		if ch, ok := r.channels[chID]; ok {
			rec.Channel = ch
		} else {
			rec.Channel.ID = chID
		}
	}

	rec.RecordedAt = parseTime(rw.vals["airdate"])
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = parseTime(rw.vals["datecreated"])
	}

	if size, err := rw.int("size"); err == nil && size > 0 {
		rec.ExpectedSize = size
	} else if size, err := rw.int("fileSize"); err == nil && size > 0 {
		rec.ExpectedSize = size
	}

	mergeBlob(&rec, rw)
	return rec, nil
}

// mergeBlob fills fields the columns left empty from the json column.
func mergeBlob(rec *Recording, rw row) {
	if rw.blob == nil {
		return
	}
	if rec.OrigAirDate == "" {
		rec.OrigAirDate = rw.blobStr("originalAirDate")
	}
	if rec.LongDescription == "" {
		rec.LongDescription = rw.blobStr("description")
	}
	if rec.EpisodeNumber == 0 {
		rec.EpisodeNumber = rw.blobInt("episodeNumber")
	}
	if rec.SeasonNumber == 0 {
		rec.SeasonNumber = rw.blobInt("seasonNumber")
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = parseTime(rw.blob["airDate"])
	}
	if rec.ExpectedSize == 0 {
		if n := rw.blobInt("size"); n > 0 {
			rec.ExpectedSize = n
		} else if n := rw.blobInt("fileSize"); n > 0 {
			rec.ExpectedSize = n
		}
	}
}
