package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	id "refhub/pkg/domain"
	"refhub/pkg/platform/httputil"
	authmw "refhub/pkg/platform/middleware/auth"
	"refhub/pkg/requestcontext"
)

// Service defines the attribution operations the handler depends on.
type Service interface {
	Attribute(ctx context.Context, newUserID, inviterID id.UserID) (bool, error)
	EvaluateGoal(ctx context.Context, inviterID id.UserID) error
	ReferralCount(ctx context.Context, userID id.UserID) (int, error)
	Goal() int
}

// Registry defines user record creation.
type Registry interface {
	EnsureExists(ctx context.Context, userID id.UserID) error
}

// Handler wires referral endpoints to the attribution engine.
type Handler struct {
	registry     Registry
	engine       Service
	logger       *slog.Logger
	jwtValidator authmw.JWTValidator
}

// New constructs a referral handler with its dependencies.
func New(registry Registry, engine Service, logger *slog.Logger, jwtValidator authmw.JWTValidator) *Handler {
	return &Handler{
		registry:     registry,
		engine:       engine,
		logger:       logger,
		jwtValidator: jwtValidator,
	}
}

// Register mounts referral endpoints on the router. The arrival endpoint is
// called by the bot transport; the progress endpoint is authenticated.
func (h *Handler) Register(r chi.Router) {
	r.Post("/events/arrival", h.handleArrival)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.RequireAuth(h.jwtValidator, h.logger))
		pr.Get("/referrals/{userID}", h.handleProgress)
	})
}

// handleArrival handles POST /events/arrival requests.
func (h *Handler) handleArrival(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[ArrivalRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	userID := req.ParsedUserID()
	inviterID := req.ParsedInviterID()

	// Both records must exist before the claim; the two upserts are
	// independent so they run concurrently.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.registry.EnsureExists(gctx, userID) })
	if !inviterID.IsZero() && inviterID != userID {
		g.Go(func() error { return h.registry.EnsureExists(gctx, inviterID) })
	}
	if err := g.Wait(); err != nil {
		h.logger.ErrorContext(ctx, "user registration failed",
			"request_id", requestID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	attributed := false
	if !inviterID.IsZero() {
		var err error
		attributed, err = h.engine.Attribute(ctx, userID, inviterID)
		if err != nil {
			h.logger.ErrorContext(ctx, "attribution failed",
				"request_id", requestID,
				"user_id", userID,
				"inviter_id", inviterID,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		if attributed {
			if err := h.engine.EvaluateGoal(ctx, inviterID); err != nil {
				// The attribution is already durable; goal evaluation errors
				// must not fail the arrival.
				h.logger.ErrorContext(ctx, "goal evaluation failed",
					"request_id", requestID,
					"inviter_id", inviterID,
					"error", err,
				)
			}
		}
	}

	h.logger.InfoContext(ctx, "arrival processed",
		"request_id", requestID,
		"user_id", userID,
		"attributed", attributed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, ArrivalResponse{
		UserID:     userID.Int64(),
		Attributed: attributed,
	})
}

// handleProgress handles GET /referrals/{userID} requests.
func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	count, err := h.engine.ReferralCount(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "progress lookup failed",
			"request_id", requestID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, NewProgressResponse(userID.Int64(), count, h.engine.Goal()))
}
