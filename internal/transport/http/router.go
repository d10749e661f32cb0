// Package httptransport assembles the HTTP surface: global middleware, the
// referral endpoints, health and metrics.
package httptransport

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	platformredis "refhub/internal/platform/redis"
	referralhandler "refhub/internal/referral/handler"
	"refhub/pkg/platform/middleware/logging"
	"refhub/pkg/platform/middleware/metadata"
	"refhub/pkg/platform/middleware/requestid"
	"refhub/pkg/platform/middleware/requesttime"
)

// Deps carries everything the router mounts. DB and Redis may be nil; the
// health endpoint skips what is not configured.
type Deps struct {
	Logger   *slog.Logger
	Referral *referralhandler.Handler
	DB       *sql.DB
	Redis    *platformredis.Client
}

// NewRouter wires all public endpoints.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(logging.Middleware(deps.Logger))
	r.Use(chimw.Timeout(30 * time.Second))

	deps.Referral.Register(r)

	r.Get("/healthz", healthHandler(deps))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func healthHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if deps.DB != nil {
			if err := deps.DB.PingContext(ctx); err != nil {
				deps.Logger.ErrorContext(ctx, "health check failed", "dependency", "postgres", "error", err)
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if deps.Redis != nil {
			if err := deps.Redis.Health(ctx); err != nil {
				deps.Logger.ErrorContext(ctx, "health check failed", "dependency", "redis", "error", err)
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
