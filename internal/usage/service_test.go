package usage

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockService(t *testing.T, now time.Time) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewService(db).WithClock(func() time.Time { return now }), mock
}

func TestResolveWindow(t *testing.T) {
	for _, tc := range []struct {
		window string
		want   time.Duration
	}{
		{"", 24 * time.Hour},
		{"24h", 24 * time.Hour},
		{"12h", 12 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
	} {
		got, err := resolveWindow(tc.window)
		require.NoError(t, err, tc.window)
		assert.Equal(t, tc.want, got, tc.window)
	}

	_, err := resolveWindow("48h")
	assert.ErrorIs(t, err, ErrInvalidMetricsWindow)
}

func TestService_GetMetrics(t *testing.T) {
	now := time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC)

	expectReportQueries := func(mock sqlmock.Sqlmock, avgLatency interface{}, total, errored int) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM clips`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM analysis_results`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(total))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT AVG(latency_ms) FROM analysis_results`)).
			WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(avgLatency))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(id)`)).
			WillReturnRows(sqlmock.NewRows([]string{"count", "errored"}).AddRow(total, errored))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT requests FROM request_counts WHERE date = $1`)).
			WithArgs("2026-08-29").
			WillReturnRows(sqlmock.NewRows([]string{"requests"}).AddRow(41))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT date, requests FROM request_counts WHERE date >= $1`)).
			WithArgs("2026-08-23").
			WillReturnRows(sqlmock.NewRows([]string{"date", "requests"}).
				AddRow(time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), 41).
				AddRow(time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC), 12))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT created_at FROM analysis_results WHERE created_at >= $1`)).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).
				AddRow(now.Add(-2*time.Hour)).
				AddRow(now.Add(-26*time.Hour)))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT created_at FROM analysis_results WHERE created_at >= $1`)).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).
				AddRow(now.Add(-2 * time.Hour)))
	}

	t.Run("builds a full report", func(t *testing.T) {
		service, mock := newMockService(t, now)
		expectReportQueries(mock, 1450.5, 10, 2)

		report, err := service.GetMetrics(context.Background(), "24h")
		require.NoError(t, err)

		assert.Equal(t, now, report.GeneratedAt)
		assert.Equal(t, 5, report.TotalClips)
		assert.Equal(t, 10, report.TotalAnalyses)
		assert.Equal(t, 1450.5, report.AvgLatencyMS)
		assert.False(t, report.LatencyFlag)
		assert.Equal(t, 41, report.RequestsToday)
		require.NotNil(t, report.ErrorRate)
		assert.InDelta(t, 0.2, *report.ErrorRate, 1e-9)

		// Empty days are skipped; populated ones come back oldest first.
		require.Len(t, report.PerDay, 3)
		assert.Equal(t, "2026-08-27", report.PerDay[0].Date)
		assert.Equal(t, 12, report.PerDay[0].Requests)
		assert.Equal(t, "2026-08-28", report.PerDay[1].Date)
		assert.Equal(t, 1, report.PerDay[1].Analyses)
		assert.Equal(t, "2026-08-29", report.PerDay[2].Date)
		assert.Equal(t, 1, report.PerDay[2].Analyses)

		assert.Equal(t, 1, report.ClipsToday)

		require.Len(t, report.PerHour, 1)
		assert.Equal(t, time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC), report.PerHour[0].Hour)
		assert.Equal(t, 1, report.PerHour[0].Requests)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("flags sustained high latency", func(t *testing.T) {
		service, mock := newMockService(t, now)
		expectReportQueries(mock, 6200.0, 4, 0)

		report, err := service.GetMetrics(context.Background(), "12h")
		require.NoError(t, err)
		assert.True(t, report.LatencyFlag)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no analyses leaves the error rate unset", func(t *testing.T) {
		service, mock := newMockService(t, now)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM clips`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM analysis_results`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT AVG(latency_ms) FROM analysis_results`)).
			WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(nil))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(id)`)).
			WillReturnRows(sqlmock.NewRows([]string{"count", "errored"}).AddRow(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT requests FROM request_counts WHERE date = $1`)).
			WithArgs("2026-08-29").
			WillReturnRows(sqlmock.NewRows([]string{"requests"}))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT date, requests FROM request_counts WHERE date >= $1`)).
			WillReturnRows(sqlmock.NewRows([]string{"date", "requests"}))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT created_at FROM analysis_results WHERE created_at >= $1`)).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT created_at FROM analysis_results WHERE created_at >= $1`)).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}))

		report, err := service.GetMetrics(context.Background(), "")
		require.NoError(t, err)
		assert.Nil(t, report.ErrorRate)
		assert.Zero(t, report.RequestsToday)
		assert.Empty(t, report.PerDay)
		assert.Empty(t, report.PerHour)
		assert.False(t, report.LatencyFlag)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects unsupported windows before querying", func(t *testing.T) {
		service, mock := newMockService(t, now)
		_, err := service.GetMetrics(context.Background(), "1y")
		assert.ErrorIs(t, err, ErrInvalidMetricsWindow)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
