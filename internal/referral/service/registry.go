package service

import (
	"context"
	"fmt"
	"log/slog"

	"refhub/internal/audit"
	"refhub/internal/referral/metrics"
	"refhub/internal/referral/ports"
	id "refhub/pkg/domain"
	dErrors "refhub/pkg/domain-errors"
)

// Registry ensures every user that touches the system has exactly one record.
// It is a leaf component: the attribution engine assumes both parties exist
// before it runs.
type Registry struct {
	store          ports.Store
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher ports.AuditPublisher
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithRegistryMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

func WithRegistryAuditPublisher(publisher ports.AuditPublisher) RegistryOption {
	return func(r *Registry) {
		r.auditPublisher = publisher
	}
}

// NewRegistry constructs the user registry.
func NewRegistry(store ports.Store, opts ...RegistryOption) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("referral store is required")
	}
	reg := &Registry{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(reg)
		}
	}
	return reg, nil
}

// EnsureExists creates a default record for the user if none exists. Repeat
// calls are no-ops; duplicate prevention is the store's uniqueness constraint,
// not in-process locking.
func (r *Registry) EnsureExists(ctx context.Context, userID id.UserID) error {
	if userID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	created, err := r.store.CreateIfAbsent(ctx, userID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to ensure user record")
	}
	if !created {
		return nil
	}

	if r.metrics != nil {
		r.metrics.IncrementUsersRegistered()
	}
	if r.auditPublisher != nil {
		if err := r.auditPublisher.Emit(ctx, audit.Event{
			Action: audit.ActionUserRegistered,
			UserID: userID,
		}); err != nil {
			r.logger.WarnContext(ctx, "audit emit failed", "action", audit.ActionUserRegistered, "error", err)
		}
	}
	r.logger.InfoContext(ctx, "user registered", "user_id", userID)
	return nil
}
