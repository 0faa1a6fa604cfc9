package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidMetricsWindow is returned for unsupported lookback windows.
var ErrInvalidMetricsWindow = errors.New("invalid metrics window; expected '12h', '24h', or '7d'")

// DailyBucket is one populated day of request/analysis activity.
type DailyBucket struct {
	Date     string `json:"date"`
	Requests int    `json:"requests"`
	Analyses int    `json:"analyses"`
}

// HourlyBucket is one populated hour of analysis activity.
type HourlyBucket struct {
	Hour     time.Time `json:"hour"`
	Requests int       `json:"requests"`
}

// Report aggregates dashboard usage metrics at one instant.
type Report struct {
	GeneratedAt   time.Time      `json:"generated_at"`
	TotalClips    int            `json:"total_clips"`
	TotalAnalyses int            `json:"total_analyses"`
	AvgLatencyMS  float64        `json:"avg_latency_ms"`
	RequestsToday int            `json:"requests_today"`
	ClipsToday    int            `json:"clips_today"`
	PerHour       []HourlyBucket `json:"per_hour"`
	PerDay        []DailyBucket  `json:"per_day"`
	LatencyFlag   bool           `json:"latency_flag"`
	ErrorRate     *float64       `json:"error_rate,omitempty"`
}

// Service computes usage metrics for the operator dashboard.
type Service struct {
	db               *sql.DB
	latencyThreshold float64
	hourlyWindow     int
	dailyWindow      int
	now              func() time.Time
}

// NewService creates a usage metrics service with the default thresholds.
func NewService(db *sql.DB) *Service {
	return &Service{
		db:               db,
		latencyThreshold: 5000,
		hourlyWindow:     12,
		dailyWindow:      7,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the wall clock, for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetMetrics builds the usage report for a lookback window.
func (s *Service) GetMetrics(ctx context.Context, window string) (*Report, error) {
	lookback, err := resolveWindow(window)
	if err != nil {
		return nil, err
	}

	current := s.now()
	windowStart := current.Add(-lookback)

	totalClips, err := s.scalarCount(ctx, `SELECT COUNT(*) FROM clips`)
	if err != nil {
		return nil, fmt.Errorf("count clips: %w", err)
	}
	totalAnalyses, err := s.scalarCount(ctx, `SELECT COUNT(*) FROM analysis_results`)
	if err != nil {
		return nil, fmt.Errorf("count analyses: %w", err)
	}

	avgLatency, err := s.averageLatency(ctx, windowStart)
	if err != nil {
		return nil, err
	}
	errorRate, err := s.errorRate(ctx)
	if err != nil {
		return nil, err
	}

	requestsToday, err := s.requestsForDay(ctx, current)
	if err != nil {
		return nil, err
	}
	perDay, err := s.dailyBuckets(ctx, current)
	if err != nil {
		return nil, err
	}

	clipsToday := 0
	today := current.Format("2006-01-02")
	for _, bucket := range perDay {
		if bucket.Date == today {
			clipsToday += bucket.Analyses
		}
	}

	perHour, err := s.hourlyBuckets(ctx, current)
	if err != nil {
		return nil, err
	}

	return &Report{
		GeneratedAt:   current,
		TotalClips:    totalClips,
		TotalAnalyses: totalAnalyses,
		AvgLatencyMS:  avgLatency,
		RequestsToday: requestsToday,
		ClipsToday:    clipsToday,
		PerHour:       perHour,
		PerDay:        perDay,
		LatencyFlag:   avgLatency > 0 && avgLatency >= s.latencyThreshold,
		ErrorRate:     errorRate,
	}, nil
}

func resolveWindow(window string) (time.Duration, error) {
	switch window {
	case "", "24h":
		return 24 * time.Hour, nil
	case "12h":
		return 12 * time.Hour, nil
	case "7d":
		return 7 * 24 * time.Hour, nil
	}
	return 0, ErrInvalidMetricsWindow
}

func (s *Service) scalarCount(ctx context.Context, query string, args ...interface{}) (int, error) {
	var count sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return int(count.Int64), nil
}

func (s *Service) averageLatency(ctx context.Context, windowStart time.Time) (float64, error) {
	query := `SELECT AVG(latency_ms) FROM analysis_results
		WHERE created_at >= $1 AND latency_ms IS NOT NULL`
	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, query, windowStart).Scan(&avg); err != nil {
		return 0, fmt.Errorf("average latency: %w", err)
	}
	return avg.Float64, nil
}

// errorRate returns errored analyses over all analyses, or nil when there
// are no analyses to rate.
func (s *Service) errorRate(ctx context.Context) (*float64, error) {
	query := `SELECT COUNT(id),
		COALESCE(SUM(CASE WHEN error_code IS NOT NULL OR error_message IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM analysis_results`
	var total, errored int
	if err := s.db.QueryRowContext(ctx, query).Scan(&total, &errored); err != nil {
		return nil, fmt.Errorf("error rate: %w", err)
	}

	if total == 0 {
		return nil, nil
	}
	rate := float64(errored) / float64(total)
	return &rate, nil
}

func (s *Service) requestsForDay(ctx context.Context, current time.Time) (int, error) {
	var requests sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT requests FROM request_counts WHERE date = $1`,
		current.Format("2006-01-02")).Scan(&requests)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("requests for day: %w", err)
	}
	return int(requests.Int64), nil
}

func (s *Service) dailyBuckets(ctx context.Context, current time.Time) ([]DailyBucket, error) {
	startDay := truncateDay(current).AddDate(0, 0, -(s.dailyWindow - 1))

	requestMap := make(map[string]int)
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, requests FROM request_counts WHERE date >= $1`,
		startDay.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("daily request counts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var day time.Time
		var requests int
		if err := rows.Scan(&day, &requests); err != nil {
			return nil, err
		}
		requestMap[day.UTC().Format("2006-01-02")] = requests
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	analysisMap := make(map[string]int)
	analysisRows, err := s.db.QueryContext(ctx,
		`SELECT created_at FROM analysis_results WHERE created_at >= $1`, startDay)
	if err != nil {
		return nil, fmt.Errorf("daily analyses: %w", err)
	}
	defer func() { _ = analysisRows.Close() }()
	for analysisRows.Next() {
		var createdAt time.Time
		if err := analysisRows.Scan(&createdAt); err != nil {
			return nil, err
		}
		analysisMap[createdAt.UTC().Format("2006-01-02")]++
	}
	if err := analysisRows.Err(); err != nil {
		return nil, err
	}

	// Only populated days appear in the response.
	var buckets []DailyBucket
	for offset := 0; offset < s.dailyWindow; offset++ {
		day := startDay.AddDate(0, 0, offset).Format("2006-01-02")
		requests := requestMap[day]
		analyses := analysisMap[day]
		if requests == 0 && analyses == 0 {
			continue
		}
		buckets = append(buckets, DailyBucket{Date: day, Requests: requests, Analyses: analyses})
	}
	return buckets, nil
}

func (s *Service) hourlyBuckets(ctx context.Context, current time.Time) ([]HourlyBucket, error) {
	startHour := truncateHour(current).Add(-time.Duration(s.hourlyWindow-1) * time.Hour)

	counts := make(map[time.Time]int)
	rows, err := s.db.QueryContext(ctx,
		`SELECT created_at FROM analysis_results WHERE created_at >= $1`, startHour)
	if err != nil {
		return nil, fmt.Errorf("hourly analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var createdAt time.Time
		if err := rows.Scan(&createdAt); err != nil {
			return nil, err
		}
		counts[truncateHour(createdAt.UTC())]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var buckets []HourlyBucket
	for offset := 0; offset < s.hourlyWindow; offset++ {
		bucketStart := startHour.Add(time.Duration(offset) * time.Hour)
		if bucketStart.After(current) {
			break
		}
		if count := counts[bucketStart]; count > 0 {
			buckets = append(buckets, HourlyBucket{Hour: bucketStart, Requests: count})
		}
	}
	return buckets, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateHour(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
}
