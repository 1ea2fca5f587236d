package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestObserveBooking(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.ObserveBooking("book", "success")
	m.ObserveBooking("book", "retry")
	m.ObserveBooking("book", "retry")

	assert.Equal(t, 1.0, counterValue(t, m.BookingOperations.WithLabelValues("book", "success")))
	assert.Equal(t, 2.0, counterValue(t, m.TransactionRetries.WithLabelValues("book")))
}

func TestObserveBookingNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveBooking("book", "success") })
}
