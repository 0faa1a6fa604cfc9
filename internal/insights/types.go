package insights

import (
	"time"
)

// SeverityTotals holds aggregate severity counts for a window.
type SeverityTotals struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Total is the event count across all severities.
func (t SeverityTotals) Total() int {
	return t.Low + t.Medium + t.High
}

// SeriesBucket is one time bucket for charting insight data.
type SeriesBucket struct {
	BucketStart time.Time      `json:"bucket_start"`
	Total       int            `json:"total"`
	Severity    SeverityTotals `json:"severity"`
}

// TopLabel is a frequently occurring label with a severity heuristic.
// AvgSeverity is the mean severity weight (low=0, medium=1, high=2).
type TopLabel struct {
	Label       string   `json:"label"`
	Count       int      `json:"count"`
	AvgSeverity *float64 `json:"avg_severity,omitempty"`
}

// Delta compares a window against the immediately preceding one.
type Delta struct {
	Analyses     int `json:"analyses"`
	HighSeverity int `json:"high_severity"`
}

// Aggregated is the raw output of one aggregation pass. It is rebuilt on
// every cache miss and never persisted.
type Aggregated struct {
	Window               Window
	GeneratedAt          time.Time
	SeverityTotals       SeverityTotals
	Series               []SeriesBucket
	TopLabels            []TopLabel
	Analyses             int
	HighSeverityAnalyses int
	Delta                *Delta
}

// Snapshot is the response-facing insight resource. CacheExpiresAt is set
// by the service after cache retrieval, never by the aggregation path.
type Snapshot struct {
	Window         Window         `json:"window"`
	GeneratedAt    time.Time      `json:"generated_at"`
	Summary        string         `json:"summary"`
	SummarySource  string         `json:"summary_source"`
	SeverityTotals SeverityTotals `json:"severity_totals"`
	Series         []SeriesBucket `json:"series"`
	TopLabels      []TopLabel     `json:"top_labels"`
	Delta          *Delta         `json:"delta,omitempty"`
	CacheExpiresAt *time.Time     `json:"cache_expires_at,omitempty"`
}

// ShareRecord is a persisted share token row. The plaintext token is never
// stored; TokenHash is the salted digest that keys the row.
type ShareRecord struct {
	TokenHash      string
	Window         Window
	CreatedAt      time.Time
	LastAccessedAt *time.Time
	ExpiresAt      *time.Time
	Payload        []byte
}

// Share is the response returned when a share link is created.
type Share struct {
	Token          string     `json:"token"`
	URL            string     `json:"url"`
	Window         Window     `json:"window"`
	GeneratedAt    time.Time  `json:"generated_at"`
	CacheExpiresAt *time.Time `json:"cache_expires_at,omitempty"`
}
