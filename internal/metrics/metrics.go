// Package metrics exposes Prometheus counters for the reservation lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "biblio"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	reservationsCreated  prometheus.Counter
	reservationsReturned prometheus.Counter
	reservationsRemoved  prometheus.Counter
	finesCharged         prometheus.Counter
	operationErrors      *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reservationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_created_total",
			Help:      "Reservations opened against an available book.",
		}),
		reservationsReturned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_returned_total",
			Help:      "Reservations closed by returning the book.",
		}),
		reservationsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_removed_total",
			Help:      "Reservations deleted.",
		}),
		finesCharged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fines_charged_total",
			Help:      "Sum of late fees frozen at return time.",
		}),
		operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Failed service operations by operation and error kind.",
		}, []string{"op", "kind"}),
	}
	reg.MustRegister(
		m.reservationsCreated,
		m.reservationsReturned,
		m.reservationsRemoved,
		m.finesCharged,
		m.operationErrors,
	)
	return m
}

func (m *Metrics) ReservationCreated() {
	if m == nil {
		return
	}
	m.reservationsCreated.Inc()
}

// ReservationReturned counts a return and adds its frozen fine, if any.
func (m *Metrics) ReservationReturned(fine *decimal.Decimal) {
	if m == nil {
		return
	}
	m.reservationsReturned.Inc()
	if fine != nil {
		m.finesCharged.Add(fine.InexactFloat64())
	}
}

func (m *Metrics) ReservationRemoved() {
	if m == nil {
		return
	}
	m.reservationsRemoved.Inc()
}

func (m *Metrics) OperationFailed(op, kind string) {
	if m == nil {
		return
	}
	m.operationErrors.WithLabelValues(op, kind).Inc()
}

// Handler serves the exposition format for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
