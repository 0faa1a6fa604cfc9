package insights

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/clipnotes/clipnotes/internal/clips"
	"go.uber.org/zap"
)

// severitySynonyms maps provider severity strings onto the canonical
// low/medium/high scale. Anything unmapped is dropped from the tallies.
var severitySynonyms = map[string]string{
	"low":    "low",
	"medium": "medium",
	"mid":    "medium",
	"med":    "medium",
	"high":   "high",
	"severe": "high",
}

var severityWeight = map[string]float64{
	"low":    0,
	"medium": 1,
	"high":   2,
}

const (
	maxLabelLength = 80
	topLabelCount  = 5
)

// Aggregator turns raw analysis records into windowed insight statistics.
// It only reads from the analysis source and holds no state of its own.
type Aggregator struct {
	source clips.AnalysisSource
	logger *zap.Logger
	now    func() time.Time
}

// NewAggregator creates an aggregator over the given record source.
func NewAggregator(source clips.AnalysisSource, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		source: source,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the wall clock, for deterministic tests.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

type labelEntry struct {
	label  string
	count  int
	weight float64
}

// Aggregate computes windowed severity statistics as of now. A zero now
// means the current wall clock.
func (a *Aggregator) Aggregate(ctx context.Context, window Window, now time.Time) (*Aggregated, error) {
	if now.IsZero() {
		now = a.now()
	}
	now = now.UTC()

	edges := window.BucketEdges(now)
	firstEdge := edges[0]

	// Bounding at now keeps future-dated rows (clock skew) out entirely.
	current, err := a.source.ListAnalysesBetween(ctx, firstEdge, now)
	if err != nil {
		return nil, fmt.Errorf("fetch current window records: %w", err)
	}
	previous, err := a.source.ListAnalysesBetween(ctx, firstEdge.Add(-window.Duration()), firstEdge)
	if err != nil {
		return nil, fmt.Errorf("fetch previous window records: %w", err)
	}

	edgeIndex := make(map[time.Time]int, len(edges))
	for i, edge := range edges {
		edgeIndex[edge] = i
	}
	series := make([]SeriesBucket, len(edges))
	for i, edge := range edges {
		series[i] = SeriesBucket{BucketStart: edge}
	}

	var totals SeverityTotals
	labels := make(map[string]*labelEntry)
	analyses := 0
	highAnalyses := 0

	for _, record := range current {
		truncated := window.Truncate(record.CreatedAt)
		bucketIdx, inSeries := edgeIndex[truncated]
		analyses++

		sawHigh := false
		for _, moment := range record.Moments {
			severity, ok := normalizeSeverity(moment.Severity)
			if !ok {
				continue
			}

			incrementSeverity(&totals, severity)
			if inSeries {
				incrementSeverity(&series[bucketIdx].Severity, severity)
			}

			label := sanitizeLabel(moment.Label)
			key := strings.ToLower(label)
			entry, exists := labels[key]
			if !exists {
				entry = &labelEntry{label: label}
				labels[key] = entry
			}
			entry.count++
			entry.weight += severityWeight[severity]

			if severity == "high" {
				sawHigh = true
			}
		}

		if sawHigh {
			highAnalyses++
		}
		if inSeries {
			series[bucketIdx].Total++
		}
	}

	previousAnalyses := len(previous)
	previousHigh := countHighSeverity(previous)

	var delta *Delta
	if analyses > 0 || previousAnalyses > 0 {
		delta = &Delta{
			Analyses:     analyses - previousAnalyses,
			HighSeverity: highAnalyses - previousHigh,
		}
	}

	a.logger.Debug("aggregated insight window",
		zap.String("window", string(window)),
		zap.Int("analyses", analyses),
		zap.Int("previous_analyses", previousAnalyses))

	return &Aggregated{
		Window:               window,
		GeneratedAt:          now,
		SeverityTotals:       totals,
		Series:               series,
		TopLabels:            buildTopLabels(labels),
		Analyses:             analyses,
		HighSeverityAnalyses: highAnalyses,
		Delta:                delta,
	}, nil
}

func normalizeSeverity(raw string) (string, bool) {
	severity, ok := severitySynonyms[strings.ToLower(strings.TrimSpace(raw))]
	return severity, ok
}

func incrementSeverity(totals *SeverityTotals, severity string) {
	switch severity {
	case "low":
		totals.Low++
	case "medium":
		totals.Medium++
	case "high":
		totals.High++
	}
}

func countHighSeverity(records []*clips.Analysis) int {
	total := 0
	for _, record := range records {
		for _, moment := range record.Moments {
			if severity, ok := normalizeSeverity(moment.Severity); ok && severity == "high" {
				total++
				break
			}
		}
	}
	return total
}

func buildTopLabels(labels map[string]*labelEntry) []TopLabel {
	items := make([]TopLabel, 0, len(labels))
	for _, entry := range labels {
		item := TopLabel{Label: entry.label, Count: entry.count}
		if entry.count > 0 {
			avg := entry.weight / float64(entry.count)
			item.AvgSeverity = &avg
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Label < items[j].Label
	})

	if len(items) > topLabelCount {
		items = items[:topLabelCount]
	}
	return items
}

func sanitizeLabel(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		value = "unknown"
	}
	normalized := titleCase(value)
	if runes := []rune(normalized); len(runes) > maxLabelLength {
		normalized = strings.TrimRight(string(runes[:maxLabelLength]), " ")
	}
	return normalized
}

// titleCase uppercases the first letter of each word, lowercasing the rest.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	startOfWord := true
	for _, r := range s {
		if unicode.IsLetter(r) {
			if startOfWord {
				b.WriteRune(unicode.ToUpper(r))
			} else {
				b.WriteRune(unicode.ToLower(r))
			}
			startOfWord = false
		} else {
			b.WriteRune(r)
			startOfWord = true
		}
	}
	return b.String()
}
