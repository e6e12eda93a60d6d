// Package month handles calendar months in the canonical "YYYY-MM" form used
// as budget keys. Months in this form order correctly as plain strings, which
// the store layer relies on for range queries.
package month

import (
	"fmt"
	"regexp"
	"time"
)

var monthRegex = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// IsValid reports whether s is a well-formed "YYYY-MM" month.
func IsValid(s string) bool {
	return monthRegex.MatchString(s)
}

// Parse validates s and returns it unchanged, or an error describing the
// malformed input.
func Parse(s string) (string, error) {
	if !IsValid(s) {
		return "", fmt.Errorf("invalid month %q, want YYYY-MM", s)
	}
	return s, nil
}

// Of returns the month containing t.
func Of(t time.Time) string {
	return t.Format("2006-01")
}

// Current returns the month containing the current wall-clock time.
func Current() string {
	return Of(time.Now())
}

// Next returns the month immediately after m.
func Next(m string) string {
	return add(m, 1)
}

// Prev returns the month immediately before m.
func Prev(m string) string {
	return add(m, -1)
}

// Add returns m shifted by n calendar months (n may be negative).
func Add(m string, n int) string {
	return add(m, n)
}

func add(m string, n int) string {
	t, err := time.Parse("2006-01", m)
	if err != nil {
		return m
	}
	return t.AddDate(0, n, 0).Format("2006-01")
}

// Compare orders two months: -1 if a < b, 0 if equal, 1 if a > b.
// Well-formed months compare correctly as strings.
func Compare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Between returns the number of whole months from a to b. Positive when b is
// after a.
func Between(a, b string) int {
	ta, errA := time.Parse("2006-01", a)
	tb, errB := time.Parse("2006-01", b)
	if errA != nil || errB != nil {
		return 0
	}
	return (tb.Year()-ta.Year())*12 + int(tb.Month()) - int(ta.Month())
}

// Range returns every month from start to end inclusive, in order. Returns nil
// when end precedes start.
func Range(start, end string) []string {
	n := Between(start, end)
	if n < 0 {
		return nil
	}
	months := make([]string, 0, n+1)
	for m := start; Compare(m, end) <= 0; m = Next(m) {
		months = append(months, m)
	}
	return months
}
