package models

import (
	"time"

	id "refhub/pkg/domain"
)

// UserRecord is the persistent referral state for one user. A record is
// created on first contact and never deleted.
//
// Invariants maintained by the store and service layers:
//   - InvitedBy, once set, never changes and never equals UserID.
//   - ReferralCount equals the number of records whose InvitedBy is UserID.
//   - GoalNotified transitions false -> true at most once, and only while
//     ReferralCount is at or above the configured goal.
type UserRecord struct {
	UserID        id.UserID
	InvitedBy     *id.UserID
	ReferralCount int
	GoalNotified  bool
	CreatedAt     time.Time
}

// Attributed reports whether this user has already been credited to an
// inviter. The first successful attribution wins permanently.
func (r *UserRecord) Attributed() bool {
	return r.InvitedBy != nil
}

// GoalReached reports whether the record qualifies for the goal notification
// under the given threshold.
func (r *UserRecord) GoalReached(goal int) bool {
	return r.ReferralCount >= goal
}
