package insights

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func aggregatedFixture(window Window) *Aggregated {
	return &Aggregated{
		Window:      window,
		GeneratedAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func TestBuildFallbackSummary(t *testing.T) {
	t.Run("no events yields the fixed sentence", func(t *testing.T) {
		summary := BuildFallbackSummary(aggregatedFixture(Window24h))
		assert.Equal(t, "No significant events were detected in the selected window.", summary)
	})

	t.Run("high severity mix", func(t *testing.T) {
		aggregated := aggregatedFixture(Window24h)
		aggregated.SeverityTotals = SeverityTotals{Low: 3, Medium: 2, High: 1}

		summary := BuildFallbackSummary(aggregated)
		assert.Equal(t,
			"6 notable moments were recorded over the past 24 hours. "+
				"High-severity events occurred 1 time(s), alongside 2 medium and 3 low severity occurrences.",
			summary)
	})

	t.Run("low impact mix without high events", func(t *testing.T) {
		aggregated := aggregatedFixture(Window7d)
		aggregated.SeverityTotals = SeverityTotals{Low: 4, Medium: 1}

		summary := BuildFallbackSummary(aggregated)
		assert.Equal(t,
			"5 notable moments were recorded over the past 7 days. "+
				"Most activity remained low impact (4 low, 1 medium severity).",
			summary)
	})

	t.Run("single dominant label", func(t *testing.T) {
		aggregated := aggregatedFixture(Window24h)
		aggregated.SeverityTotals = SeverityTotals{Low: 1}
		aggregated.TopLabels = []TopLabel{{Label: "Loitering", Count: 1}}

		summary := BuildFallbackSummary(aggregated)
		assert.Contains(t, summary, "Dominant activity: Loitering.")
	})

	t.Run("multiple labels use an Oxford comma list", func(t *testing.T) {
		aggregated := aggregatedFixture(Window24h)
		aggregated.SeverityTotals = SeverityTotals{Low: 3}
		aggregated.TopLabels = []TopLabel{
			{Label: "Intrusion", Count: 3},
			{Label: "Loitering", Count: 2},
			{Label: "Tailgating", Count: 1},
			{Label: "Crowding", Count: 1},
		}

		summary := BuildFallbackSummary(aggregated)
		// Only the top three labels are named.
		assert.Contains(t, summary, "Dominant activity: Intrusion, Loitering, and Tailgating.")
		assert.NotContains(t, summary, "Crowding")
	})

	t.Run("delta clauses track direction", func(t *testing.T) {
		aggregated := aggregatedFixture(Window24h)
		aggregated.SeverityTotals = SeverityTotals{High: 2}
		aggregated.Delta = &Delta{Analyses: -3, HighSeverity: 2}

		summary := BuildFallbackSummary(aggregated)
		assert.Contains(t, summary, "Total analyses decreased by 3 compared to the prior window.")
		assert.Contains(t, summary, "High-severity incidents rose by 2.")
	})

	t.Run("zero delta components are skipped", func(t *testing.T) {
		aggregated := aggregatedFixture(Window24h)
		aggregated.SeverityTotals = SeverityTotals{Low: 1}
		aggregated.Delta = &Delta{Analyses: 0, HighSeverity: 0}

		summary := BuildFallbackSummary(aggregated)
		assert.NotContains(t, summary, "Total analyses")
		assert.NotContains(t, summary, "High-severity incidents")
	})

	t.Run("deterministic for equal input", func(t *testing.T) {
		aggregated := aggregatedFixture(Window24h)
		aggregated.SeverityTotals = SeverityTotals{Low: 2, Medium: 1, High: 1}
		aggregated.TopLabels = []TopLabel{{Label: "Intrusion", Count: 2}}
		aggregated.Delta = &Delta{Analyses: 1}

		assert.Equal(t, BuildFallbackSummary(aggregated), BuildFallbackSummary(aggregated))
	})
}
