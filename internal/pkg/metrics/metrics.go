package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courseseat_reservations_total",
			Help: "Reservation attempts by kind and result",
		},
		[]string{"kind", "result"},
	)

	PaymentConfirmations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courseseat_payment_confirmations_total",
			Help: "Payment confirmations by entry point and outcome",
		},
		[]string{"source", "outcome"},
	)

	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courseseat_webhook_events_total",
			Help: "Provider webhook deliveries by event type and handling status",
		},
		[]string{"event", "status"},
	)

	ConfirmationEmails = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courseseat_confirmation_emails_total",
			Help: "Confirmation email sends by outcome",
		},
		[]string{"outcome"},
	)

	ExpiredPending = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "courseseat_expired_pending_enrollments_total",
			Help: "Pending enrollments failed by the expiry sweep",
		},
	)

	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courseseat_admin_login_attempts_total",
			Help: "Admin login attempts by result",
		},
		[]string{"result"},
	)

	GatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "courseseat_gateway_request_duration_seconds",
			Help:    "Latency of payment gateway API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			Reservations,
			PaymentConfirmations,
			WebhookEvents,
			ConfirmationEmails,
			ExpiredPending,
			LoginAttempts,
			GatewayRequestDuration,
		)
	})
}
