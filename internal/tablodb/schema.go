// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package tablodb

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// SchemaKind names one of the known database layouts.
type SchemaKind string

const (
	// SchemaSegmented is the gen 1/2 layout: no storage column, video stored as
	// MPEG-TS segments under rec/<id>/segs.
	SchemaSegmented SchemaKind = "segmented"
	// SchemaPathed stores a path per recording in Recording.path.
	SchemaPathed SchemaKind = "pathed"
	// SchemaFileID stores an internal file id per recording in Recording.fileID.
	SchemaFileID SchemaKind = "fileid"
)

// MaxUserVersion is the highest PRAGMA user_version accepted. Anything above
// is treated as a newer, unknown layout and rejected.
const MaxUserVersion = 100

const recordingTable = "Recording"

// columnSet maps lower-cased column names to their declared spelling.
type columnSet map[string]string

func (c columnSet) has(name string) bool {
	_, ok := c[strings.ToLower(name)]
	return ok
}

// pick returns the declared spelling of the first present column.
func (c columnSet) pick(names ...string) (string, bool) {
	for _, n := range names {
		if col, ok := c[strings.ToLower(n)]; ok {
			return col, true
		}
	}
	return "", false
}

// schemaStrategy turns a Recording row into a StorageRef for one layout.
type schemaStrategy struct {
	kind SchemaKind
	// matches reports whether the Recording columns fit this layout.
	matches func(cols columnSet) bool
	// storage derives the storage reference from a decoded row.
	storage func(r row) (StorageRef, error)
}

// strategies is the closed set of supported layouts, in detection order.
var strategies = []schemaStrategy{
	{
		kind:    SchemaPathed,
		matches: func(cols columnSet) bool { return cols.has("path") },
		storage: func(r row) (StorageRef, error) {
			p := strings.TrimSpace(r.str("path"))
			if p == "" {
				// Rows without a stored path fall back to the id layout.
				return StorageRef{Kind: RefRecordingID, ID: r.id}, nil
			}
			return StorageRef{Kind: RefPath, Path: p}, nil
		},
	},
	{
		kind:    SchemaFileID,
		matches: func(cols columnSet) bool { return cols.has("fileID") },
		storage: func(r row) (StorageRef, error) {
			if !r.present("fileID") {
				return StorageRef{Kind: RefRecordingID, ID: r.id}, nil
			}
			fid, err := r.int("fileID")
			if err != nil {
				return StorageRef{}, fmt.Errorf("fileID: %w", err)
			}
			if fid <= 0 {
				return StorageRef{}, fmt.Errorf("fileID: non-positive value %d", fid)
			}
			return StorageRef{Kind: RefFileID, ID: fid}, nil
		},
	},
	{
		kind:    SchemaSegmented,
		matches: func(cols columnSet) bool { return true },
		storage: func(r row) (StorageRef, error) {
			return StorageRef{Kind: RefRecordingID, ID: r.id}, nil
		},
	},
}

// detectedSchema is the outcome of inspecting a database.
type detectedSchema struct {
	strategy    schemaStrategy
	userVersion int64
	recording   columnSet
	channel     columnSet // nil when the Channel table is absent
}

func detectSchema(ctx context.Context, db *sql.DB, path string) (detectedSchema, error) {
	var out detectedSchema

	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&out.userVersion); err != nil {
		return out, fmt.Errorf("read schema marker: %w", err)
	}
	if out.userVersion < 0 || out.userVersion > MaxUserVersion {
		return out, &UnsupportedSchemaError{Path: path, UserVersion: out.userVersion,
			Reason: fmt.Sprintf("schema marker above %d; newer appliance generations are not exportable", MaxUserVersion)}
	}

	cols, err := tableColumns(ctx, db, recordingTable)
	if err != nil {
		return out, err
	}
	if len(cols) == 0 {
		return out, &UnsupportedSchemaError{Path: path, UserVersion: out.userVersion, Reason: "no Recording table"}
	}
	var missing []string
	for _, required := range []string{"ID", "title"} {
		if !cols.has(required) {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return out, &UnsupportedSchemaError{Path: path, UserVersion: out.userVersion,
			Reason: "Recording table lacks required columns: " + strings.Join(missing, ", ")}
	}
	out.recording = cols

	for _, s := range strategies {
		if s.matches(cols) {
			out.strategy = s
			break
		}
	}

	chCols, err := tableColumns(ctx, db, "Channel")
	if err != nil {
		return out, err
	}
	if chCols.has("ID") {
		out.channel = chCols
	}

	return out, nil
}

// tableColumns returns the columns of table, or an empty set when it does not exist.
func tableColumns(ctx context.Context, db *sql.DB, table string) (columnSet, error) {
	// table_info is a pragma function; the table name is bound, not interpolated.
	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("inspect table %s: %w", table, err)
	}
	defer rows.Close()

	cols := columnSet{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("inspect table %s: %w", table, err)
		}
		cols[strings.ToLower(name)] = name
	}
	return cols, rows.Err()
}

// selectList returns the wanted columns that exist, in a stable order.
func (c columnSet) selectList(wanted []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range wanted {
		col, ok := c[strings.ToLower(w)]
		if !ok || seen[col] {
			continue
		}
		seen[col] = true
		out = append(out, col)
	}
	sort.Strings(out)
	return out
}
