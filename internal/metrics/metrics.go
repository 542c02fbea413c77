package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type CheckoutMetrics struct {
	Checkouts   *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	Transitions *prometheus.CounterVec
	Restocked   prometheus.Counter
}

// NewCheckoutMetrics registers on reg. Pass prometheus.NewRegistry() in tests.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	m := &CheckoutMetrics{
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "motoshop",
			Subsystem: "checkout",
			Name:      "attempts_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "motoshop",
			Subsystem: "checkout",
			Name:      "duration_seconds",
			Help:      "Checkout latency including the transaction.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"outcome"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "motoshop",
			Subsystem: "orders",
			Name:      "status_transitions_total",
			Help:      "Committed order status transitions.",
		}, []string{"from", "to"}),
		Restocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "motoshop",
			Subsystem: "orders",
			Name:      "restocked_units_total",
			Help:      "Units returned to stock by cancellations.",
		}),
	}
	reg.MustRegister(m.Checkouts, m.Duration, m.Transitions, m.Restocked)
	return m
}

func (m *CheckoutMetrics) ObserveCheckout(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
	m.Duration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *CheckoutMetrics) ObserveTransition(from, to string, restocked int) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
	if restocked > 0 {
		m.Restocked.Add(float64(restocked))
	}
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
