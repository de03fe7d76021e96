package crud

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts repository operations per table, operation and outcome.
// One Metrics is shared by every repository registered on the same registry.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics registers the repository collectors on reg
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "repository_operations_total",
				Help:      "Total number of repository operations",
			},
			[]string{"table", "operation", "outcome"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "repository_operation_duration_seconds",
				Help:      "Time taken by repository operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"table", "operation"},
		),
	}
}

func (m *Metrics) observe(table, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(table, op, Outcome(err)).Inc()
	m.duration.WithLabelValues(table, op).Observe(time.Since(start).Seconds())
}

// Outcome names the taxonomy class of err for metric labels
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidParam):
		return "invalid_param"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrFailure):
		return "failure"
	case errors.Is(err, ErrIdentify):
		return "identify"
	}
	return "error"
}
