package metricsvc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/rollcall/core/importer"
)

// ImportRecorder exports import activity as prometheus metrics.
type ImportRecorder struct {
	rows     *prometheus.CounterVec
	imports  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ importer.Recorder = (*ImportRecorder)(nil)

// NewImportRecorder registers the import metrics on reg (prometheus.DefaultRegisterer when nil).
func NewImportRecorder(reg prometheus.Registerer) *ImportRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &ImportRecorder{
		rows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollcall",
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Total number of imported rows, by outcome.",
		}, []string{"format", "kind", "outcome"}),
		imports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollcall",
			Subsystem: "import",
			Name:      "runs_total",
			Help:      "Total number of completed imports.",
		}, []string{"format", "kind"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rollcall",
			Subsystem: "import",
			Name:      "duration_seconds",
			Help:      "Latency distribution of whole imports, OCR included.",
			Buckets: []float64{
				0.05, 0.1, 0.25, 0.5,
				1, 2.5, 5, 10,
				30, 60, 120,
			},
		}, []string{"format", "kind"}),
	}
}

func (rec *ImportRecorder) ObserveRow(format importer.Format, kind string, outcome importer.Outcome) {
	rec.rows.WithLabelValues(string(format), kind, string(outcome)).Inc()
}

func (rec *ImportRecorder) ObserveImport(format importer.Format, kind string, elapsed time.Duration) {
	rec.imports.WithLabelValues(string(format), kind).Inc()
	rec.duration.WithLabelValues(string(format), kind).Observe(elapsed.Seconds())
}
