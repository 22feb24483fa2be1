// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UploadsTotal counts dataset uploads by outcome.
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waterscope",
		Name:      "uploads_total",
		Help:      "Number of dataset uploads by outcome.",
	}, []string{"outcome"})

	// ActiveDatasets tracks datasets currently held in the store.
	ActiveDatasets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "waterscope",
		Name:      "active_datasets",
		Help:      "Number of datasets currently available.",
	})

	// PlotsRenderedTotal counts rendered plots by kind.
	PlotsRenderedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waterscope",
		Name:      "plots_rendered_total",
		Help:      "Number of plots rendered by kind.",
	}, []string{"kind"})

	// PlotRenderDuration observes plot rendering latency by kind.
	PlotRenderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "waterscope",
		Name:      "plot_render_duration_seconds",
		Help:      "Plot rendering latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	// ParseErrorsTotal counts workbook rows or files that failed to parse.
	ParseErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "waterscope",
		Name:      "parse_errors_total",
		Help:      "Number of workbooks that failed to parse.",
	})

	// BatchJobsTotal counts batch jobs by final state.
	BatchJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waterscope",
		Name:      "batch_jobs_total",
		Help:      "Number of batch jobs by final state.",
	}, []string{"state"})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
