package storage

import (
	"fmt"
	"time"
)

// DailyStats represents statistics for a single day
type DailyStats struct {
	Date           string
	TotalReplays   int
	CompletedCount int
	FailedCount    int
}

// SequenceStats represents statistics grouped by replay sequence
type SequenceStats struct {
	Sequence      string
	TotalReplays  int
	AvgDurationMs float64
	FocusTimeouts int
}

// OverallStats represents overall statistics
type OverallStats struct {
	TotalReplays    int
	CompletedCount  int
	PartialCount    int
	AbortedCount    int
	SkippedCount    int
	RestoredCount   int
	FocusTimeouts   int
	AvgDurationMs   float64
	TotalDurationMs int64
}

const overallColumns = `
	COUNT(*) as total_replays,
	COALESCE(SUM(CASE WHEN outcome = 'completed' THEN 1 ELSE 0 END), 0) as completed_count,
	COALESCE(SUM(CASE WHEN outcome = 'partial' THEN 1 ELSE 0 END), 0) as partial_count,
	COALESCE(SUM(CASE WHEN outcome = 'aborted' THEN 1 ELSE 0 END), 0) as aborted_count,
	COALESCE(SUM(CASE WHEN outcome = 'skipped' THEN 1 ELSE 0 END), 0) as skipped_count,
	COALESCE(SUM(clipboard_restored), 0) as restored_count,
	COALESCE(SUM(focus_timed_out), 0) as focus_timeouts,
	COALESCE(AVG(duration_ms), 0) as avg_duration_ms,
	COALESCE(SUM(duration_ms), 0) as total_duration_ms
`

// GetDailyStats retrieves statistics grouped by date for the last N days
func (db *DB) GetDailyStats(days int) ([]DailyStats, error) {
	query := `
		SELECT
			DATE(started_at) as date,
			COUNT(*) as total_replays,
			SUM(CASE WHEN outcome = 'completed' THEN 1 ELSE 0 END) as completed_count,
			SUM(CASE WHEN outcome IN ('partial', 'aborted') THEN 1 ELSE 0 END) as failed_count
		FROM replays
		WHERE started_at >= datetime('now', '-' || ? || ' days')
		GROUP BY DATE(started_at)
		ORDER BY date DESC
	`

	rows, err := db.conn.Query(query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []DailyStats
	for rows.Next() {
		var s DailyStats
		err := rows.Scan(&s.Date, &s.TotalReplays, &s.CompletedCount, &s.FailedCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// GetSequenceStats retrieves statistics grouped by sequence for the last N days
func (db *DB) GetSequenceStats(days int) ([]SequenceStats, error) {
	query := `
		SELECT
			sequence,
			COUNT(*) as total_replays,
			AVG(duration_ms) as avg_duration_ms,
			SUM(focus_timed_out) as focus_timeouts
		FROM replays
		WHERE started_at >= datetime('now', '-' || ? || ' days')
		GROUP BY sequence
		ORDER BY total_replays DESC
	`

	rows, err := db.conn.Query(query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query sequence stats: %w", err)
	}
	defer rows.Close()

	var stats []SequenceStats
	for rows.Next() {
		var s SequenceStats
		err := rows.Scan(&s.Sequence, &s.TotalReplays, &s.AvgDurationMs, &s.FocusTimeouts)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sequence stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// GetOverallStats retrieves overall statistics for the last N days
func (db *DB) GetOverallStats(days int) (*OverallStats, error) {
	query := `SELECT ` + overallColumns + `
		FROM replays
		WHERE started_at >= datetime('now', '-' || ? || ' days')
	`

	stats, err := db.scanOverall(query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query overall stats: %w", err)
	}
	return stats, nil
}

// GetStatsForDateRange retrieves overall stats for a custom date range
func (db *DB) GetStatsForDateRange(startTime, endTime time.Time) (*OverallStats, error) {
	query := `SELECT ` + overallColumns + `
		FROM replays
		WHERE started_at >= ? AND started_at <= ?
	`

	stats, err := db.scanOverall(query, startTime.UTC().Format(timeLayout), endTime.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query date range stats: %w", err)
	}
	return stats, nil
}

func (db *DB) scanOverall(query string, args ...any) (*OverallStats, error) {
	var stats OverallStats
	err := db.conn.QueryRow(query, args...).Scan(
		&stats.TotalReplays,
		&stats.CompletedCount,
		&stats.PartialCount,
		&stats.AbortedCount,
		&stats.SkippedCount,
		&stats.RestoredCount,
		&stats.FocusTimeouts,
		&stats.AvgDurationMs,
		&stats.TotalDurationMs,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
