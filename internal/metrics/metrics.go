// Package metrics records model operations as Prometheus metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/docket/internal/model"
)

const namespace = "docket"

// Collector implements model.Observer.
type Collector struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	RowsScanned       *prometheus.CounterVec
	RowsMatched       *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates a collector on a fresh registry, so several collectors can
// coexist in one process.
func New() *Collector {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collector's metrics on reg. g is used by
// WriteFile and may be nil when files are never written.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Model operations by outcome",
			},
			[]string{"model", "op", "outcome"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Model operation duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"model", "op"},
		),
		RowsScanned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_scanned_total",
				Help:      "Rows visited by query scans",
			},
			[]string{"model"},
		),
		RowsMatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_matched_total",
				Help:      "Rows returned by query scans",
			},
			[]string{"model"},
		),
		gatherer: g,
	}
}

// ObserveOperation implements model.Observer.
func (c *Collector) ObserveOperation(modelName, op, outcome string, elapsed time.Duration) {
	c.Operations.WithLabelValues(modelName, op, outcome).Inc()
	c.OperationDuration.WithLabelValues(modelName, op).Observe(elapsed.Seconds())
}

// ObserveScan implements model.Observer.
func (c *Collector) ObserveScan(modelName string, scanned, matched int) {
	c.RowsScanned.WithLabelValues(modelName).Add(float64(scanned))
	c.RowsMatched.WithLabelValues(modelName).Add(float64(matched))
}

// WriteFile writes every gathered metric to path in the text exposition
// format, replacing the file atomically.
func (c *Collector) WriteFile(path string) error {
	if c.gatherer == nil {
		return fmt.Errorf("write metrics %s: collector has no gatherer", path)
	}
	if err := prometheus.WriteToTextfile(path, c.gatherer); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}

var _ model.Observer = (*Collector)(nil)
