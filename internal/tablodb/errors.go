// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package tablodb

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDatabaseNotFound classifies a failure to locate the appliance database.
	// Use errors.Is(err, ErrDatabaseNotFound) instead of type assertions.
	ErrDatabaseNotFound = errors.New("tablo database not found")

	// ErrUnsupportedSchema classifies a database whose layout matches no known schema variant.
	ErrUnsupportedSchema = errors.New("unsupported tablo database schema")
)

// DatabaseNotFoundError lists every location that was searched.
type DatabaseNotFoundError struct {
	Tried []string
	Err   error // last probe error, if any
}

func (e *DatabaseNotFoundError) Error() string {
	msg := ErrDatabaseNotFound.Error() + " (tried: " + strings.Join(e.Tried, ", ") + ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DatabaseNotFoundError) Is(target error) bool { return target == ErrDatabaseNotFound }

func (e *DatabaseNotFoundError) Unwrap() error { return e.Err }

// UnsupportedSchemaError reports why a database was rejected.
type UnsupportedSchemaError struct {
	Path        string
	UserVersion int64
	Reason      string
}

func (e *UnsupportedSchemaError) Error() string {
	return fmt.Sprintf("%s: %s (user_version=%d): %s", ErrUnsupportedSchema, e.Path, e.UserVersion, e.Reason)
}

func (e *UnsupportedSchemaError) Is(target error) bool { return target == ErrUnsupportedSchema }
