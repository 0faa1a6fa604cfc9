package insights

import (
	"fmt"
	"strings"
)

// SummarySourceFallback tags summaries produced locally rather than by the
// external reasoning provider.
const SummarySourceFallback = "fallback"

// BuildFallbackSummary composes a deterministic natural-language summary
// from aggregated statistics. No external calls; the same input always
// yields the same text.
func BuildFallbackSummary(aggregated *Aggregated) string {
	totalEvents := aggregated.SeverityTotals.Total()
	if totalEvents == 0 {
		return "No significant events were detected in the selected window."
	}

	parts := []string{
		fmt.Sprintf("%d notable moments were recorded over %s.", totalEvents, aggregated.Window.Phrase()),
	}

	totals := aggregated.SeverityTotals
	if totals.High > 0 {
		parts = append(parts, fmt.Sprintf(
			"High-severity events occurred %d time(s), alongside %d medium and %d low severity occurrences.",
			totals.High, totals.Medium, totals.Low))
	} else {
		parts = append(parts, fmt.Sprintf(
			"Most activity remained low impact (%d low, %d medium severity).",
			totals.Low, totals.Medium))
	}

	if clause := formatTopLabels(aggregated.TopLabels); clause != "" {
		parts = append(parts, clause)
	}

	if aggregated.Delta != nil {
		if clause := formatDelta(aggregated.Delta); clause != "" {
			parts = append(parts, clause)
		}
	}

	return strings.Join(parts, " ")
}

func formatTopLabels(labels []TopLabel) string {
	if len(labels) == 0 {
		return ""
	}

	names := make([]string, 0, 3)
	for _, label := range labels {
		names = append(names, label.Label)
		if len(names) == 3 {
			break
		}
	}

	if len(names) == 1 {
		return fmt.Sprintf("Dominant activity: %s.", names[0])
	}
	return fmt.Sprintf("Dominant activity: %s, and %s.",
		strings.Join(names[:len(names)-1], ", "), names[len(names)-1])
}

func formatDelta(delta *Delta) string {
	var parts []string

	if delta.Analyses != 0 {
		trend := "increased"
		if delta.Analyses < 0 {
			trend = "decreased"
		}
		parts = append(parts, fmt.Sprintf(
			"Total analyses %s by %d compared to the prior window.", trend, abs(delta.Analyses)))
	}

	if delta.HighSeverity != 0 {
		trend := "rose"
		if delta.HighSeverity < 0 {
			trend = "fell"
		}
		parts = append(parts, fmt.Sprintf("High-severity incidents %s by %d.", trend, abs(delta.HighSeverity)))
	}

	return strings.Join(parts, " ")
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
