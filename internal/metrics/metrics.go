package metrics

import (
	"sync"

	"bookbite/internal/engine"
	"bookbite/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bookbite"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	grpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "gRPC requests by method and status code.",
		},
		[]string{"method", "code"},
	)

	validations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_validations_total",
			Help:      "Booking validations by result.",
		},
		[]string{"result"},
	)

	violations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_violations_total",
			Help:      "Booking rule violations by code.",
		},
		[]string{"code"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_transitions_total",
			Help:      "Reservation status changes by source, target and result.",
		},
		[]string{"from", "to", "result"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Reservation notifications by outcome.",
		},
		[]string{"result"},
	)

	hoursFallback = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_hours_fallback_total",
			Help:      "Slot computations that replaced malformed operating hours with the default window.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, grpcRequests, validations, violations, transitions, notifications, hoursFallback)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncGRPC increments the counter for a gRPC method and its status code.
func IncGRPC(method, code string) {
	grpcRequests.WithLabelValues(method, code).Inc()
}

// IncNotification counts a notification outcome: sent, retried or dead.
func IncNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}

// EngineObserver feeds engine outcomes into the counters above.
type EngineObserver struct{}

var _ engine.Observer = EngineObserver{}

func (EngineObserver) HoursFallback() {
	hoursFallback.Inc()
}

func (EngineObserver) Validated(v engine.ValidationErrors) {
	if len(v) == 0 {
		validations.WithLabelValues("accepted").Inc()
		return
	}
	validations.WithLabelValues("rejected").Inc()
	for _, code := range v.Codes() {
		violations.WithLabelValues(string(code)).Inc()
	}
}

func (EngineObserver) Transitioned(from, to models.ReservationStatus, err error) {
	result := "applied"
	if err != nil {
		result = "refused"
	}
	transitions.WithLabelValues(from.String(), to.String(), result).Inc()
}
