// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recordings

import "math"

// Tolerance bounds how far an on-disk size may drift from the size the
// database recorded.
type Tolerance struct {
	Ratio float64
	Bytes int64
}

// DefaultTolerance allows 2% or 1 MiB, whichever is larger.
func DefaultTolerance() Tolerance {
	return Tolerance{Ratio: 0.02, Bytes: 1 << 20}
}

// Allowed returns the permitted absolute deviation for expected.
func (t Tolerance) Allowed(expected int64) int64 {
	byRatio := int64(math.Round(t.Ratio * float64(expected)))
	return max(byRatio, t.Bytes, 0)
}

// Within reports whether actual is close enough to expected.
func (t Tolerance) Within(expected, actual int64) bool {
	diff := actual - expected
	if diff < 0 {
		diff = -diff
	}
	return diff <= t.Allowed(expected)
}
