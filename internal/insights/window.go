package insights

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Window is a validated analysis horizon. Only the two declared constants
// exist; every other component accepts a Window, never a raw string.
type Window string

const (
	// Window24h buckets the past day hourly.
	Window24h Window = "24h"
	// Window7d buckets the past week daily.
	Window7d Window = "7d"
)

// ErrInvalidWindow is returned for any window string other than "24h"/"7d".
var ErrInvalidWindow = errors.New("invalid insight window")

// ParseWindow normalizes and validates a raw window string.
func ParseWindow(raw string) (Window, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch Window(normalized) {
	case Window24h:
		return Window24h, nil
	case Window7d:
		return Window7d, nil
	}
	return "", fmt.Errorf("%w: %q (expected one of: 24h, 7d)", ErrInvalidWindow, raw)
}

// BucketCount is the number of series buckets in the window.
func (w Window) BucketCount() int {
	if w == Window7d {
		return 7
	}
	return 24
}

// Quantum is the width of one bucket.
func (w Window) Quantum() time.Duration {
	if w == Window7d {
		return 24 * time.Hour
	}
	return time.Hour
}

// Duration is the full span of the window.
func (w Window) Duration() time.Duration {
	return time.Duration(w.BucketCount()) * w.Quantum()
}

// Phrase is the human wording used in generated summaries.
func (w Window) Phrase() string {
	if w == Window7d {
		return "the past 7 days"
	}
	return "the past 24 hours"
}

// Truncate forces t to UTC and rounds it down to the bucket quantum:
// minutes and seconds are zeroed for hourly buckets, the full time of day
// for daily buckets. All timestamp normalization for the insight layer
// goes through here.
func (w Window) Truncate(t time.Time) time.Time {
	t = t.UTC()
	if w.Quantum() >= 24*time.Hour {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
}

// BucketEdges returns BucketCount contiguous right-open bucket start times
// ending at or before now's truncation.
func (w Window) BucketEdges(now time.Time) []time.Time {
	first := w.Truncate(now).Add(-time.Duration(w.BucketCount()-1) * w.Quantum())
	edges := make([]time.Time, w.BucketCount())
	for i := range edges {
		edges[i] = first.Add(time.Duration(i) * w.Quantum())
	}
	return edges
}
