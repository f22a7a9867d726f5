package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// Methods are nil-safe so services can run without a registry in tests.
type Metrics struct {
	ContactAttempts      *prometheus.CounterVec
	ComplianceRejections *prometheus.CounterVec
	Verifications        *prometheus.CounterVec
	ProviderLatency      *prometheus.HistogramVec
	ProviderErrors       *prometheus.CounterVec
	WebhookEvents        *prometheus.CounterVec
	CallTransitions      *prometheus.CounterVec
	BookingConflicts     prometheus.Counter
	HTTPDuration         *prometheus.HistogramVec
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ContactAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dunning_contact_attempts_total",
			Help: "Outbound contact attempts by channel and outcome",
		}, []string{"channel", "outcome"}),
		ComplianceRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dunning_compliance_rejections_total",
			Help: "Contact attempts rejected outside the permitted window",
		}, []string{"channel"}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dunning_identity_verifications_total",
			Help: "Identity verification outcomes",
		}, []string{"result"}),
		ProviderLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dunning_provider_request_duration_seconds",
			Help:    "Latency of third-party provider calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
		ProviderErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dunning_provider_errors_total",
			Help: "Provider failures by category",
		}, []string{"provider", "category"}),
		WebhookEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dunning_webhook_events_total",
			Help: "Webhook deliveries by event type and outcome",
		}, []string{"event_type", "outcome"}),
		CallTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dunning_call_transitions_total",
			Help: "Outbound call state transitions",
		}, []string{"state"}),
		BookingConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "dunning_booking_conflicts_total",
			Help: "Appointment bookings rejected for overlapping events",
		}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dunning_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) IncContactAttempt(channel, outcome string) {
	if m == nil {
		return
	}
	m.ContactAttempts.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) IncComplianceRejection(channel string) {
	if m == nil {
		return
	}
	m.ComplianceRejections.WithLabelValues(channel).Inc()
}

func (m *Metrics) IncVerification(result string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveProvider(provider, operation string, start time.Time) {
	if m == nil {
		return
	}
	m.ProviderLatency.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncProviderError(provider, category string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(provider, category).Inc()
}

func (m *Metrics) IncWebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) IncCallTransition(state string) {
	if m == nil {
		return
	}
	m.CallTransitions.WithLabelValues(state).Inc()
}

func (m *Metrics) IncBookingConflict() {
	if m == nil {
		return
	}
	m.BookingConflicts.Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}
