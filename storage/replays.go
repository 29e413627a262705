package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// timeLayout is SQLite's own date-time text form, so DATE() and datetime() comparisons work on it
const timeLayout = "2006-01-02 15:04:05.000"

// Replay is the stored record of one replay session
type Replay struct {
	ID                int64
	SessionID         string
	StartedAt         time.Time
	DurationMs        int64
	Sequence          string
	OpenChat          string
	ClipboardCaptured bool
	ClipboardRestored bool
	FocusTimedOut     bool
	Outcome           string
	ErrorMessage      string
}

// SaveReplay saves a replay to the database
func (db *DB) SaveReplay(r *Replay) error {
	query := `
		INSERT INTO replays (
			session_id, started_at, duration_ms, sequence, open_chat,
			clipboard_captured, clipboard_restored, focus_timed_out,
			outcome, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var errorMessage sql.NullString
	if r.ErrorMessage != "" {
		errorMessage = sql.NullString{String: r.ErrorMessage, Valid: true}
	}

	result, err := db.conn.Exec(query,
		r.SessionID, r.StartedAt.UTC().Format(timeLayout), r.DurationMs, r.Sequence, r.OpenChat,
		r.ClipboardCaptured, r.ClipboardRestored, r.FocusTimedOut,
		r.Outcome, errorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	r.ID = id
	return nil
}

// GetReplays retrieves replays newest first with pagination
func (db *DB) GetReplays(limit, offset int) ([]Replay, error) {
	query := `
		SELECT
			id, session_id, started_at, duration_ms, sequence, open_chat,
			clipboard_captured, clipboard_restored, focus_timed_out,
			outcome, error_message
		FROM replays
		ORDER BY started_at DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := db.conn.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query replays: %w", err)
	}
	defer rows.Close()

	var replays []Replay
	for rows.Next() {
		var r Replay
		var startedAt string
		var errorMessage sql.NullString

		err := rows.Scan(
			&r.ID, &r.SessionID, &startedAt, &r.DurationMs, &r.Sequence, &r.OpenChat,
			&r.ClipboardCaptured, &r.ClipboardRestored, &r.FocusTimedOut,
			&r.Outcome, &errorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan replay: %w", err)
		}

		r.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse replay start time %q: %w", startedAt, err)
		}

		if errorMessage.Valid {
			r.ErrorMessage = errorMessage.String
		}

		replays = append(replays, r)
	}

	return replays, rows.Err()
}

// DeleteReplay deletes a replay by ID
func (db *DB) DeleteReplay(id int64) error {
	query := `DELETE FROM replays WHERE id = ?`

	result, err := db.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete replay: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetReplayCount returns the total number of replays
func (db *DB) GetReplayCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM replays").Scan(&count)
	return count, err
}
