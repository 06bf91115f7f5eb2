// Package numeric parses regionally formatted numbers (dot thousands
// separator, comma decimal separator) as found in the source spreadsheets.
//
// Both coercers are total: malformed input resolves to 0 for quantities and
// NaN for monetary values, never to an error.
package numeric

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// CoerceInt parses raw as a quantity. Empty or malformed input yields 0.
// The value is rounded half away from zero: "1.234,50" is 1235.
func CoerceInt(raw string) int {
	f, ok := parse(raw)
	if !ok {
		return 0
	}
	return int(math.Round(f))
}

// CoerceFloat parses raw as a monetary value. Empty or malformed input
// yields NaN, which callers treat as "unknown".
func CoerceFloat(raw string) float64 {
	f, ok := parse(raw)
	if !ok {
		return math.NaN()
	}
	return f
}

// Parseable reports whether raw holds a value CoerceFloat can read. Blank
// input is not parseable.
func Parseable(raw string) bool {
	_, ok := parse(raw)
	return ok
}

func parse(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Missing reports whether v is the NaN "unknown" sentinel.
func Missing(v float64) bool {
	return math.IsNaN(v)
}

// SumKnown adds the known values. If none is known the result is NaN, so an
// all-unknown group stays unknown instead of becoming 0.
func SumKnown(values ...float64) float64 {
	sum, known := 0.0, false
	for _, v := range values {
		if Missing(v) {
			continue
		}
		sum += v
		known = true
	}
	if !known {
		return math.NaN()
	}
	return sum
}

// Median returns the median of the known values, or NaN if there are none.
func Median(values []float64) float64 {
	known := make([]float64, 0, len(values))
	for _, v := range values {
		if !Missing(v) {
			known = append(known, v)
		}
	}
	if len(known) == 0 {
		return math.NaN()
	}
	sort.Float64s(known)
	mid := len(known) / 2
	if len(known)%2 == 1 {
		return known[mid]
	}
	return (known[mid-1] + known[mid]) / 2
}
