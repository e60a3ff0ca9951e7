// Package metrics exposes Prometheus collectors for booking outcomes.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Hasnainmunshi/diagnostic-management/internal/apperr"
)

type Recorder struct {
	bookings     *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	payments     *prometheus.CounterVec
	sideEffects  *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_attempts_total",
			Help: "Booking attempts by appointment kind and outcome.",
		}, []string{"kind", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appointment_transitions_total",
			Help: "Lifecycle transitions by action and outcome.",
		}, []string{"action", "outcome"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_confirmations_total",
			Help: "Payment confirmations by outcome.",
		}, []string{"outcome"}),
		sideEffects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "side_effects_total",
			Help: "Document and notification side effects by stage and outcome.",
		}, []string{"stage", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(r.bookings, r.transitions, r.payments, r.sideEffects, r.httpRequests, r.httpDuration)
	return r
}

// Outcome labels err by its domain kind.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return "validation"
	case errors.Is(err, apperr.ErrPastDate):
		return "past_date"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrSlotConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrOwnership), errors.Is(err, apperr.ErrForbidden):
		return "denied"
	case errors.Is(err, apperr.ErrAlreadyTerminal):
		return "terminal"
	case errors.Is(err, apperr.ErrAlreadyPaid):
		return "paid"
	case errors.Is(err, apperr.ErrPaymentNotCompleted):
		return "not_completed"
	case errors.Is(err, apperr.ErrPaymentLookup):
		return "lookup_failed"
	}
	return "error"
}

func (r *Recorder) Booking(kind string, err error) {
	if r == nil {
		return
	}
	r.bookings.WithLabelValues(kind, Outcome(err)).Inc()
}

func (r *Recorder) Transition(action string, err error) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(action, Outcome(err)).Inc()
}

func (r *Recorder) Payment(err error) {
	if r == nil {
		return
	}
	r.payments.WithLabelValues(Outcome(err)).Inc()
}

func (r *Recorder) SideEffect(stage string, err error) {
	if r == nil {
		return
	}
	r.sideEffects.WithLabelValues(stage, Outcome(err)).Inc()
}

func (r *Recorder) HTTP(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
