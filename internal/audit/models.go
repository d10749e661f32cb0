package audit

import (
	"time"

	id "refhub/pkg/domain"
)

// Action names the referral state transition an event records.
type Action string

const (
	ActionUserRegistered     Action = "user_registered"
	ActionReferralAttributed Action = "referral_attributed"
	ActionGoalReached        Action = "goal_reached"
	ActionNotificationFailed Action = "notification_failed"
)

// Event is emitted from domain logic to capture referral state transitions.
// Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	Action    Action
	// UserID is the subject of the event: the registered user for
	// user_registered, the new user for referral_attributed, the inviter for
	// goal events.
	UserID id.UserID
	// InviterID is set for referral_attributed events.
	InviterID id.UserID
	// ReferralCount is the inviter's count at emission time, when known.
	ReferralCount int
	Reason        string
}
