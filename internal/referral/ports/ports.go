// Package ports defines shared interfaces for the referral module.
// Interfaces are placed here when consumed by multiple services to avoid duplication.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"refhub/internal/audit"
	"refhub/internal/referral/models"
	id "refhub/pkg/domain"
)

// Store is the transactional record store for referral state. All exclusivity
// is enforced here via conditional writes; callers must not rely on in-process
// locking, since multiple service instances may share one store.
type Store interface {
	// Get retrieves the record for a user. Returns sentinel.ErrNotFound when
	// the user has never been seen.
	Get(ctx context.Context, userID id.UserID) (*models.UserRecord, error)

	// CreateIfAbsent inserts a default record for the user and reports whether
	// this call created it. Creating an existing record is a no-op; concurrent
	// calls for the same user must produce exactly one record.
	CreateIfAbsent(ctx context.Context, userID id.UserID) (created bool, err error)

	// ClaimInvitedBy atomically sets invited_by on the new user's record if
	// and only if it is currently null, and increments the inviter's
	// referral_count in the same transaction. Returns true when this call won
	// the claim; false when the record was already attributed. Either both
	// mutations apply or neither does.
	ClaimInvitedBy(ctx context.Context, newUserID, inviterID id.UserID) (bool, error)

	// MarkGoalNotified flips goal_notified to true if it is currently false.
	// Returns true when this call performed the transition.
	MarkGoalNotified(ctx context.Context, userID id.UserID) (bool, error)

	// GetCount returns the referral count for a user, 0 when the user has no
	// record.
	GetCount(ctx context.Context, userID id.UserID) (int, error)
}

// Notifier delivers the goal-reached message through the messaging transport.
// Delivery is opaque and may take arbitrary time; an error means the message
// may not have reached the user and the goal flag must stay unset.
type Notifier interface {
	Notify(ctx context.Context, userID id.UserID, referralCount, goal int) error
}

// CountCache caches referral counts for the query surface. A cache miss or
// cache failure falls back to the store; Invalidate is called after each
// successful attribution.
type CountCache interface {
	GetCount(ctx context.Context, userID id.UserID) (int, bool, error)
	SetCount(ctx context.Context, userID id.UserID, count int) error
	Invalidate(ctx context.Context, userID id.UserID) error
}

// AuditPublisher emits audit events for referral state transitions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
