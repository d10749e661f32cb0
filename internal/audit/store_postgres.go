package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "refhub/pkg/domain"
)

// PostgresStore persists audit events alongside the referral data so a single
// database backs the whole trail.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureAuditSchema creates the audit_events table if it does not exist.
func EnsureAuditSchema(ctx context.Context, db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS audit_events (
    event_id       UUID PRIMARY KEY,
    occurred_at    TIMESTAMPTZ NOT NULL,
    action         TEXT NOT NULL,
    user_id        BIGINT NOT NULL,
    inviter_id     BIGINT,
    referral_count INTEGER NOT NULL DEFAULT 0,
    reason         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_events_user ON audit_events (user_id, occurred_at);`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	var inviterID sql.NullInt64
	if !event.InviterID.IsZero() {
		inviterID = sql.NullInt64{Int64: event.InviterID.Int64(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (event_id, occurred_at, action, user_id, inviter_id, referral_count, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), event.Timestamp, string(event.Action), event.UserID.Int64(),
		inviterID, event.ReferralCount, event.Reason,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT occurred_at, action, user_id, inviter_id, referral_count, reason
		FROM audit_events
		WHERE user_id = $1
		ORDER BY occurred_at`,
		userID.Int64(),
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event     Event
			rawUserID int64
			inviterID sql.NullInt64
		)
		if err := rows.Scan(&event.Timestamp, &event.Action, &rawUserID, &inviterID, &event.ReferralCount, &event.Reason); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.UserID = id.UserID(rawUserID)
		if inviterID.Valid {
			event.InviterID = id.UserID(inviterID.Int64)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
