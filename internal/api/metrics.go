package api

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for API calls.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	UnauthorizedTotal prometheus.Counter
}

// NewMetrics creates and registers the client metrics.
//
// Registration happens once per process; later calls return the same set.
//
// Metrics:
//   - plk_api_requests_total{operation,outcome}
//   - plk_api_request_duration_seconds{operation}
//   - plk_api_unauthorized_total
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "plk_api_requests_total",
					Help: "Total number of ProductLogik API requests",
				},
				[]string{"operation", "outcome"}, // outcome: ok or an error Kind
			),
			RequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "plk_api_request_duration_seconds",
					Help:    "Duration of ProductLogik API requests in seconds",
					Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
				},
				[]string{"operation"},
			),
			UnauthorizedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "plk_api_unauthorized_total",
					Help: "Number of 401 responses that ended the session",
				},
			),
		}
	})
	return globalMetrics
}

// WriteMetrics dumps the default registry to path in text exposition format.
func WriteMetrics(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return string(apiErr.Kind)
	}
	return "error"
}
