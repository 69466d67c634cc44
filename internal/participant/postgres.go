package participant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// counterColumns whitelists the columns IncrementCounter may touch, matching
// the CHECK-free schema. Anything else is rejected before building SQL.
var counterColumns = map[string]bool{
	CounterTotalChats:    true,
	CounterTotalMessages: true,
	CounterLikesReceived: true,
}

// PostgresRepository is the persistent profile store.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Repository backed by the given database
// handle. Schema setup is owned by the db package.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get loads a participant profile.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Participant, error) {
	const query = `
		SELECT id, status, language, age_group, country, interests, premium_tier,
		       total_chats, total_messages, likes_received, reputation, experience, level
		FROM participants
		WHERE id = $1`

	var p Participant
	var interests pq.StringArray
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Status, &p.Language, &p.AgeGroup, &p.Country, &interests,
		&p.PremiumTier, &p.TotalChats, &p.TotalMessages, &p.LikesReceived,
		&p.Reputation, &p.Experience, &p.Level,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("participant: get %s: %w", id, err)
	}
	p.Interests = []string(interests)
	return &p, nil
}

// Update applies a partial update.
func (r *PostgresRepository) Update(ctx context.Context, id string, fields Update) error {
	if fields.Status == nil && fields.Reputation == nil {
		return nil
	}

	query := "UPDATE participants SET updated_at = NOW()"
	args := []interface{}{id}
	n := 2
	if fields.Status != nil {
		query += fmt.Sprintf(", status = $%d", n)
		args = append(args, string(*fields.Status))
		n++
	}
	if fields.Reputation != nil {
		query += fmt.Sprintf(", reputation = $%d", n)
		args = append(args, *fields.Reputation)
		n++
	}
	query += " WHERE id = $1"

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("participant: update %s: %w", id, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementCounter bumps a rolling counter atomically in SQL.
func (r *PostgresRepository) IncrementCounter(ctx context.Context, id, field string) error {
	if !counterColumns[field] {
		return fmt.Errorf("participant: unknown counter %q", field)
	}

	query := fmt.Sprintf(
		"UPDATE participants SET %s = %s + 1, updated_at = NOW() WHERE id = $1",
		field, field)

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("participant: increment %s for %s: %w", field, id, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// AddExperience adds experience and recomputes the level in one statement.
func (r *PostgresRepository) AddExperience(ctx context.Context, id string, amount int) error {
	const query = `
		UPDATE participants
		SET experience = experience + $2,
		    level = (experience + $2) / 100 + 1,
		    updated_at = NOW()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, amount)
	if err != nil {
		return fmt.Errorf("participant: add experience for %s: %w", id, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// IsBlacklisted reports whether either side has blocked the other.
func (r *PostgresRepository) IsBlacklisted(ctx context.Context, a, b string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM blacklist
			WHERE (user_id = $1 AND blocked_user_id = $2)
			   OR (user_id = $2 AND blocked_user_id = $1)
		)`

	var blocked bool
	if err := r.db.QueryRowContext(ctx, query, a, b).Scan(&blocked); err != nil {
		return false, fmt.Errorf("participant: blacklist check: %w", err)
	}
	return blocked, nil
}

// AddToBlacklist records a block; duplicates are ignored.
func (r *PostgresRepository) AddToBlacklist(ctx context.Context, id, blockedID string) error {
	const query = `
		INSERT INTO blacklist (user_id, blocked_user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, id, blockedID); err != nil {
		return fmt.Errorf("participant: add to blacklist: %w", err)
	}
	return nil
}

// RemoveFromBlacklist lifts a block.
func (r *PostgresRepository) RemoveFromBlacklist(ctx context.Context, id, blockedID string) error {
	const query = `DELETE FROM blacklist WHERE user_id = $1 AND blocked_user_id = $2`

	if _, err := r.db.ExecContext(ctx, query, id, blockedID); err != nil {
		return fmt.Errorf("participant: remove from blacklist: %w", err)
	}
	return nil
}
