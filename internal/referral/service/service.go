// Package service implements referral attribution and goal evaluation.
//
// All exclusivity lives in the store: Attribute relies on a conditional
// claim (compare-and-swap on invited_by being null) and EvaluateGoal on a
// conditional flag flip, so correctness holds with multiple service
// instances sharing one database. The notifier runs outside every store
// transaction; its failure never fails the surrounding attribution flow.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"refhub/internal/audit"
	"refhub/internal/referral/metrics"
	"refhub/internal/referral/ports"
	id "refhub/pkg/domain"
	dErrors "refhub/pkg/domain-errors"
	"refhub/pkg/platform/sentinel"
)

// DefaultGoal is the referral target that triggers the one-time notification.
const DefaultGoal = 10

// Rejection reasons recorded in metrics.
const (
	reasonSelfReferral      = "self_referral"
	reasonAlreadyAttributed = "already_attributed"
)

// Engine applies the one-time attribution rule and evaluates goal completion.
type Engine struct {
	store          ports.Store
	notifier       ports.Notifier
	goal           int
	logger         *slog.Logger
	metrics        *metrics.Metrics
	countCache     ports.CountCache
	auditPublisher ports.AuditPublisher
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithCountCache(cache ports.CountCache) Option {
	return func(e *Engine) {
		e.countCache = cache
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(e *Engine) {
		e.auditPublisher = publisher
	}
}

// WithGoal overrides the default referral goal.
func WithGoal(goal int) Option {
	return func(e *Engine) {
		if goal > 0 {
			e.goal = goal
		}
	}
}

// New constructs the attribution and goal engine.
func New(store ports.Store, notifier ports.Notifier, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("referral store is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}

	engine := &Engine{
		store:    store,
		notifier: notifier,
		goal:     DefaultGoal,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}
	return engine, nil
}

// Goal returns the configured referral target.
func (e *Engine) Goal() int { return e.goal }

// Attribute records that newUserID was referred by inviterID. It returns true
// when this call won the one-time claim; false for self-referral or when the
// new user is already attributed (expected outcomes, not errors). Both records
// must already exist; callers run EnsureExists for both parties first.
func (e *Engine) Attribute(ctx context.Context, newUserID, inviterID id.UserID) (bool, error) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.ObserveAttributionDuration(time.Since(start))
		}
	}()

	if newUserID.IsZero() || inviterID.IsZero() {
		return false, dErrors.New(dErrors.CodeInvalidInput, "user id and inviter id are required")
	}
	if newUserID == inviterID {
		if e.metrics != nil {
			e.metrics.IncrementRejected(reasonSelfReferral)
		}
		return false, nil
	}

	claimed, err := e.store.ClaimInvitedBy(ctx, newUserID, inviterID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "attribution requires both records to exist")
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to claim attribution")
	}
	if !claimed {
		if e.metrics != nil {
			e.metrics.IncrementRejected(reasonAlreadyAttributed)
		}
		return false, nil
	}

	if e.metrics != nil {
		e.metrics.IncrementAttributions()
	}
	if e.countCache != nil {
		if err := e.countCache.Invalidate(ctx, inviterID); err != nil {
			e.logger.WarnContext(ctx, "count cache invalidation failed", "inviter_id", inviterID, "error", err)
		}
	}
	if e.auditPublisher != nil {
		if err := e.auditPublisher.Emit(ctx, audit.Event{
			Action:    audit.ActionReferralAttributed,
			UserID:    newUserID,
			InviterID: inviterID,
		}); err != nil {
			e.logger.WarnContext(ctx, "audit emit failed", "action", audit.ActionReferralAttributed, "error", err)
		}
	}
	e.logger.InfoContext(ctx, "referral attributed", "user_id", newUserID, "inviter_id", inviterID)
	return true, nil
}

// EvaluateGoal checks whether the inviter has reached the goal and, if so and
// not yet notified, attempts delivery. The flag is set only after the notifier
// reports success; a failed delivery leaves it unset so the next qualifying
// event retries (at-least-once). In the narrow race where two evaluations both
// read an unset flag, the conditional flag write lets only one transition
// through; the possible duplicate message is accepted.
func (e *Engine) EvaluateGoal(ctx context.Context, inviterID id.UserID) error {
	record, err := e.store.Get(ctx, inviterID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read inviter record")
	}
	if !record.GoalReached(e.goal) || record.GoalNotified {
		return nil
	}

	if err := e.notifier.Notify(ctx, inviterID, record.ReferralCount, e.goal); err != nil {
		// Recovered locally: the flag stays unset and delivery is retried on
		// the next qualifying event.
		if e.metrics != nil {
			e.metrics.IncrementNotificationFailures()
		}
		if e.auditPublisher != nil {
			if auditErr := e.auditPublisher.Emit(ctx, audit.Event{
				Action:        audit.ActionNotificationFailed,
				UserID:        inviterID,
				ReferralCount: record.ReferralCount,
				Reason:        err.Error(),
			}); auditErr != nil {
				e.logger.WarnContext(ctx, "audit emit failed", "action", audit.ActionNotificationFailed, "error", auditErr)
			}
		}
		e.logger.ErrorContext(ctx, "goal notification delivery failed",
			"inviter_id", inviterID,
			"referral_count", record.ReferralCount,
			"error", err,
		)
		return nil
	}

	applied, err := e.store.MarkGoalNotified(ctx, inviterID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark goal notified")
	}
	if !applied {
		// A concurrent evaluation won the flag write after both delivered.
		e.logger.WarnContext(ctx, "goal already marked notified", "inviter_id", inviterID)
		return nil
	}

	if e.metrics != nil {
		e.metrics.IncrementGoalNotifications()
	}
	if e.auditPublisher != nil {
		if err := e.auditPublisher.Emit(ctx, audit.Event{
			Action:        audit.ActionGoalReached,
			UserID:        inviterID,
			ReferralCount: record.ReferralCount,
		}); err != nil {
			e.logger.WarnContext(ctx, "audit emit failed", "action", audit.ActionGoalReached, "error", err)
		}
	}
	e.logger.InfoContext(ctx, "referral goal reached",
		"inviter_id", inviterID,
		"referral_count", record.ReferralCount,
		"goal", e.goal,
	)
	return nil
}

// ReferralCount returns the inviter's current count, 0 for never-seen users.
// Reads go through the count cache when one is configured; cache failures fall
// back to the store.
func (e *Engine) ReferralCount(ctx context.Context, userID id.UserID) (int, error) {
	if userID.IsZero() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	if e.countCache != nil {
		count, ok, err := e.countCache.GetCount(ctx, userID)
		if err != nil {
			e.logger.WarnContext(ctx, "count cache read failed", "user_id", userID, "error", err)
		} else if ok {
			return count, nil
		}
	}

	count, err := e.store.GetCount(ctx, userID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read referral count")
	}

	if e.countCache != nil {
		if err := e.countCache.SetCount(ctx, userID, count); err != nil {
			e.logger.WarnContext(ctx, "count cache write failed", "user_id", userID, "error", err)
		}
	}
	return count, nil
}
