package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.ObserveCheckout("success", 20*time.Millisecond)
	m.ObserveCheckout("success", 30*time.Millisecond)
	m.ObserveCheckout("out_of_stock", time.Millisecond)
	m.ObserveTransition("pending", "cancelled", 3)
	m.ObserveTransition("pending", "confirmed", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("out_of_stock")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Restocked))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("pending", "confirmed")))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "motoshop_checkout_attempts_total"))
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *CheckoutMetrics
	assert.NotPanics(t, func() {
		m.ObserveCheckout("success", time.Second)
		m.ObserveTransition("pending", "cancelled", 1)
	})
}
