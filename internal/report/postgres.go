package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresStore persists reports in the abuse_reports table. Messages are
// marshalled to JSONB so moderators can review the conversation snapshot.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a report store backed by the given handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Add inserts the report.
func (s *PostgresStore) Add(ctx context.Context, r Report) error {
	var messagesJSON []byte
	if len(r.Messages) > 0 {
		var err error
		messagesJSON, err = json.Marshal(r.Messages)
		if err != nil {
			return fmt.Errorf("report: marshal messages: %w", err)
		}
	}

	const query = `
		INSERT INTO abuse_reports (id, reporter_id, reported_id, session_id, report_type, messages, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.ReporterID, r.ReportedID, r.SessionID, r.Reason, messagesJSON, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("report: insert: %w", err)
	}
	return nil
}

// CountSince counts reports filed against reportedID at or after since.
// Served by idx_abuse_reports_reported_created.
func (s *PostgresStore) CountSince(ctx context.Context, reportedID string, since time.Time) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM abuse_reports
		WHERE reported_id = $1 AND created_at >= $2`

	var count int
	if err := s.db.QueryRowContext(ctx, query, reportedID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("report: count since: %w", err)
	}
	return count, nil
}
