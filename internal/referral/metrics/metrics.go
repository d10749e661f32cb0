package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	AttributionsTotal      prometheus.Counter
	AttributionsRejected   *prometheus.CounterVec
	GoalNotificationsTotal prometheus.Counter
	NotificationFailures   prometheus.Counter
	AttributionDurationMs  prometheus.Histogram
	UsersRegisteredTotal   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		AttributionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "refhub_referral_attributions_total",
			Help: "Total number of successful referral attributions",
		}),
		AttributionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "refhub_referral_attributions_rejected_total",
			Help: "Total number of rejected attribution attempts by reason",
		}, []string{"reason"}),
		GoalNotificationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "refhub_referral_goal_notifications_total",
			Help: "Total number of goal notifications delivered",
		}),
		NotificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "refhub_referral_notification_failures_total",
			Help: "Total number of failed goal notification deliveries",
		}),
		AttributionDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "refhub_referral_attribution_duration_ms",
			Help:    "Latency of attribution attempts in milliseconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}),
		UsersRegisteredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "refhub_referral_users_registered_total",
			Help: "Total number of user records created",
		}),
	}
}

func (m *Metrics) IncrementAttributions() {
	m.AttributionsTotal.Inc()
}

func (m *Metrics) IncrementRejected(reason string) {
	m.AttributionsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementGoalNotifications() {
	m.GoalNotificationsTotal.Inc()
}

func (m *Metrics) IncrementNotificationFailures() {
	m.NotificationFailures.Inc()
}

func (m *Metrics) ObserveAttributionDuration(d time.Duration) {
	m.AttributionDurationMs.Observe(float64(d.Microseconds()) / 1000.0)
}

func (m *Metrics) IncrementUsersRegistered() {
	m.UsersRegisteredTotal.Inc()
}
