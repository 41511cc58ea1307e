package upload

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts import outcomes and volume
type Metrics struct {
	ImportsTotal    *prometheus.CounterVec
	RowsImported    prometheus.Counter
	ImportDuration  prometheus.Histogram
	RollbacksTotal  prometheus.Counter
	PendingSessions prometheus.Gauge
}

// NewMetrics registers the import metrics on the given registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ImportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "imports_total",
			Help: "Completed import runs by outcome.",
		}, []string{"outcome"}),
		RowsImported: factory.NewCounter(prometheus.CounterOpts{
			Name: "import_rows_inserted_total",
			Help: "Booking rows inserted by imports.",
		}),
		ImportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "import_duration_seconds",
			Help:    "Wall time of the insert-link-save phase of an import.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		RollbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "import_rollbacks_total",
			Help: "Import runs that required compensating rollback.",
		}),
		PendingSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "import_pending_decisions",
			Help: "Imports suspended on a duplicate decision.",
		}),
	}
}
