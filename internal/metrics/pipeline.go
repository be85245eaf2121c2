package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eventradar/radar/internal/ingestion"
)

// PipelineCollector records per-source outcomes of extraction runs.
type PipelineCollector struct {
	sources    *prometheus.CounterVec
	candidates *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewPipelineCollector registers the pipeline metrics on registry.
func NewPipelineCollector(registry *prometheus.Registry) (*PipelineCollector, error) {
	sources := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "sources_total",
		Help:      "Sources processed, by outcome and error category.",
	}, []string{"source", "status", "category"})

	candidates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "candidates_total",
		Help:      "Extracted candidates, by outcome.",
	}, []string{"source", "outcome"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "source_duration_seconds",
		Help:      "Time spent fetching and extracting one source.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
	}, []string{"source"})

	for _, c := range []prometheus.Collector{sources, candidates, duration} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &PipelineCollector{sources: sources, candidates: candidates, duration: duration}, nil
}

// ObserveSource implements ingestion.Observer.
func (c *PipelineCollector) ObserveSource(r ingestion.SourceReport) {
	c.sources.WithLabelValues(r.Source, string(r.Status), r.ErrorCategory).Inc()

	if r.Status == ingestion.SourceSkipped || r.Status == ingestion.SourceInactive {
		return
	}
	c.candidates.WithLabelValues(r.Source, "added").Add(float64(r.Added))
	c.candidates.WithLabelValues(r.Source, "duplicate").Add(float64(r.Duplicates))
	c.candidates.WithLabelValues(r.Source, "dropped").Add(float64(r.Dropped))
	c.duration.WithLabelValues(r.Source).Observe(float64(r.DurationMs) / 1000)
}
