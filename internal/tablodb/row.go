// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package tablodb

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var errNull = errors.New("null value")

// row is one decoded database row, keyed by lower-cased column name.
type row struct {
	id   int64
	vals map[string]any
	blob map[string]any // parsed json column, may be nil
}

func newRow(cols []string, raw []any) row {
	r := row{vals: make(map[string]any, len(cols))}
	for i, c := range cols {
		r.vals[strings.ToLower(c)] = raw[i]
	}
	return r
}

func (r row) present(name string) bool {
	v, ok := r.vals[strings.ToLower(name)]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func (r row) str(name string) string {
	return toString(r.vals[strings.ToLower(name)])
}

func (r row) int(name string) (int64, error) {
	return toInt64(r.vals[strings.ToLower(name)])
}

// intOrZero is for display-only numbers, which are allowed to be junk.
func (r row) intOrZero(name string) int64 {
	v, err := r.int(name)
	if err != nil {
		return 0
	}
	return v
}

func (r row) blobStr(key string) string {
	if r.blob == nil {
		return ""
	}
	return toString(r.blob[key])
}

func (r row) blobInt(key string) int64 {
	if r.blob == nil {
		return 0
	}
	v, err := toInt64(r.blob[key])
	if err != nil {
		return 0
	}
	return v
}

// decodeBlob parses the json column. An empty column is not an error.
func (r *row) decodeBlob(column string) error {
	raw := strings.TrimSpace(r.str(column))
	if raw == "" {
		return nil
	}
	var blob map[string]any
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return fmt.Errorf("json column: %w", err)
	}
	r.blob = blob
	return nil
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, errNull
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) || math.IsNaN(t) {
			return 0, fmt.Errorf("not an integer: %v", t)
		}
		return int64(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string, []byte:
		s := strings.TrimSpace(toString(t))
		if s == "" {
			return 0, errNull
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil {
				return 0, fmt.Errorf("not an integer: %q", s)
			}
			return toInt64(f)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTime accepts the timestamp spellings seen in appliance databases,
// including unix seconds. The zero time means "unknown".
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case int64, float64:
		n, err := toInt64(t)
		if err != nil || n <= 0 {
			return time.Time{}
		}
		return time.Unix(n, 0).UTC()
	}
	s := strings.TrimSpace(toString(v))
	if s == "" {
		return time.Time{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return time.Unix(n, 0).UTC()
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}
