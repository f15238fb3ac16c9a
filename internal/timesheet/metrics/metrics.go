// Package metrics defines the Prometheus metrics of the timesheet service.
// Collectors are registered on the registerer handed to New so tests can use
// an isolated registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/timesheet-service/pkg/httputil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "timesheet"

// Metrics records entry lifecycle and HTTP measurements.
type Metrics struct {
	// EntryOperations counts create/update/delete calls.
	// Labels: operation, outcome ("ok" or an error kind such as "validation").
	EntryOperations *prometheus.CounterVec

	// TimesheetsCreated counts timesheets opened by the find-or-create locator.
	TimesheetsCreated prometheus.Counter

	// Reconciliations counts what happened to timesheets emptied by a delete.
	// Label: action ("deleted", "kept", "blocked").
	Reconciliations *prometheus.CounterVec

	// RaceRetries counts creates retried after losing the first-entry race.
	RaceRetries prometheus.Counter

	// RequestDuration measures HTTP handling time.
	// Labels: method, route (chi pattern), status.
	RequestDuration *prometheus.HistogramVec
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EntryOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entry_operations_total",
				Help:      "Total number of time entry operations, by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		TimesheetsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timesheets_created_total",
			Help:      "Total number of weekly timesheets created.",
		}),
		Reconciliations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "empty_timesheet_reconciliations_total",
				Help:      "Outcome of reconciling timesheets left without entries.",
			},
			[]string{"action"},
		),
		RaceRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timesheet_create_race_retries_total",
			Help:      "Entry creations retried after a concurrent request created the same weekly timesheet.",
		}),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

func (m *Metrics) EntryOperation(operation, outcome string) {
	m.EntryOperations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) TimesheetCreated() {
	m.TimesheetsCreated.Inc()
}

func (m *Metrics) Reconciled(action string) {
	m.Reconciliations.WithLabelValues(action).Inc()
}

func (m *Metrics) RaceRetried() {
	m.RaceRetries.Inc()
}

// Middleware observes request durations labelled with the matched route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := httputil.WrapResponseWriter(w)

		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		m.RequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(wrapped.Status())).
			Observe(time.Since(start).Seconds())
	})
}
