// Package postgres persists referral records in PostgreSQL.
// This store is pure I/O—goal evaluation and attribution rules belong in the
// service. Exclusivity is enforced with conditional UPDATEs so correctness
// holds across multiple service instances.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"refhub/internal/referral/models"
	id "refhub/pkg/domain"
	"refhub/pkg/platform/sentinel"
)

//go:embed schema.sql
var schema string

// Store is a PostgreSQL-backed referral record store.
type Store struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed referral store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the users table if it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure referral schema: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID id.UserID) (*models.UserRecord, error) {
	query := `
		SELECT user_id, invited_by, referral_count, goal_notified, created_at
		FROM users
		WHERE user_id = $1
	`
	record, err := scanUserRecord(s.db.QueryRowContext(ctx, query, userID.Int64()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get user record: %w", err)
	}
	return record, nil
}

func (s *Store) CreateIfAbsent(ctx context.Context, userID id.UserID) (bool, error) {
	query := `
		INSERT INTO users (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query, userID.Int64())
	if err != nil {
		return false, fmt.Errorf("create user record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create user record rows affected: %w", err)
	}
	return rows > 0, nil
}

// ClaimInvitedBy atomically sets invited_by if it is currently NULL and
// increments the inviter's counter in the same transaction. The conditional
// UPDATE takes the row lock, so of two concurrent claims for the same new user
// exactly one sees a NULL invited_by; the loser observes zero affected rows.
func (s *Store) ClaimInvitedBy(ctx context.Context, newUserID, inviterID id.UserID) (claimed bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin claim: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET invited_by = $2
		WHERE user_id = $1
		  AND invited_by IS NULL
		  AND user_id <> $2
	`, newUserID.Int64(), inviterID.Int64())
	if err != nil {
		return false, fmt.Errorf("claim invited_by: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim invited_by rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`,
			newUserID.Int64(),
		).Scan(&exists); err != nil {
			return false, fmt.Errorf("check new user exists: %w", err)
		}
		if !exists {
			return false, sentinel.ErrNotFound
		}
		return false, nil
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE users
		SET referral_count = referral_count + 1
		WHERE user_id = $1
	`, inviterID.Int64())
	if err != nil {
		return false, fmt.Errorf("increment referral count: %w", err)
	}
	rows, err = result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("increment referral count rows affected: %w", err)
	}
	if rows == 0 {
		// Inviter record missing: roll the claim back so the pair stays
		// all-or-nothing.
		return false, sentinel.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit claim: %w", err)
	}
	return true, nil
}

// MarkGoalNotified flips goal_notified if it is currently false. The
// conditional UPDATE makes the transition happen at most once even when two
// evaluations race.
func (s *Store) MarkGoalNotified(ctx context.Context, userID id.UserID) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET goal_notified = TRUE
		WHERE user_id = $1
		  AND goal_notified = FALSE
	`, userID.Int64())
	if err != nil {
		return false, fmt.Errorf("mark goal notified: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark goal notified rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`,
			userID.Int64(),
		).Scan(&exists); err != nil {
			return false, fmt.Errorf("check user exists: %w", err)
		}
		if !exists {
			return false, sentinel.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) GetCount(ctx context.Context, userID id.UserID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT referral_count FROM users WHERE user_id = $1`,
		userID.Int64(),
	).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get referral count: %w", err)
	}
	return count, nil
}

type userRecordRow interface {
	Scan(dest ...any) error
}

func scanUserRecord(row userRecordRow) (*models.UserRecord, error) {
	var record models.UserRecord
	var userID int64
	var invitedBy sql.NullInt64
	if err := row.Scan(&userID, &invitedBy, &record.ReferralCount, &record.GoalNotified, &record.CreatedAt); err != nil {
		return nil, err
	}
	record.UserID = id.UserID(userID)
	if invitedBy.Valid {
		inviter := id.UserID(invitedBy.Int64)
		record.InvitedBy = &inviter
	}
	return &record, nil
}
