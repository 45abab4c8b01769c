// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "istat_engine"

// MetricsReporter counts pipeline events in a Prometheus registry. The CLI
// is a batch job, so the registry is written to a textfile on exit rather
// than served.
type MetricsReporter struct {
	Registry *prometheus.Registry

	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	dimensions    *prometheus.CounterVec
	labelMisses   *prometheus.CounterVec
	series        *prometheus.CounterVec
	observations  prometheus.Counter
	stages        *prometheus.CounterVec
}

// NewMetricsReporter registers the pipeline collectors on a fresh registry.
func NewMetricsReporter() *MetricsReporter {
	m := &MetricsReporter{
		Registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Remote SDMX calls by HTTP status (0 when no response).",
		}, []string{"status"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of remote SDMX calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		dimensions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dimensions_total",
			Help:      "Dimensions resolved or skipped.",
		}, []string{"outcome"}),
		labelMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "label_misses_total",
			Help:      "Codes whose label fell back to the raw code.",
		}, []string{"dimension"}),
		series: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_total",
			Help:      "Series written or skipped.",
		}, []string{"outcome"}),
		observations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_written_total",
			Help:      "Observations written across all Series Records.",
		}),
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stages_total",
			Help:      "Pipeline stage runs by result.",
		}, []string{"stage", "result"}),
	}
	m.Registry.MustRegister(m.fetches, m.fetchDuration, m.dimensions, m.labelMisses,
		m.series, m.observations, m.stages)
	return m
}

// WriteTextfile writes the registry to path in the text exposition format.
func (m *MetricsReporter) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

func (m *MetricsReporter) FetchFinished(_ string, status int, elapsed time.Duration, _ error) {
	m.fetches.WithLabelValues(strconv.Itoa(status)).Inc()
	m.fetchDuration.Observe(elapsed.Seconds())
}

func (m *MetricsReporter) DimensionResolved(_, _ string, _ int) {
	m.dimensions.WithLabelValues("resolved").Inc()
}

func (m *MetricsReporter) DimensionSkipped(_, _, _ string) {
	m.dimensions.WithLabelValues("skipped").Inc()
}

func (m *MetricsReporter) ConstraintRegionMissing(string) {
	m.dimensions.WithLabelValues("region_missing").Inc()
}

func (m *MetricsReporter) LabelMiss(_, dimension, _ string) {
	m.labelMisses.WithLabelValues(dimension).Inc()
}

func (m *MetricsReporter) SeriesWritten(_, _ string, observations int) {
	m.series.WithLabelValues("written").Inc()
	m.observations.Add(float64(observations))
}

func (m *MetricsReporter) SeriesSkipped(string, int, string) {
	m.series.WithLabelValues("skipped").Inc()
}

func (m *MetricsReporter) StageFinished(stage, _ string, _ time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.stages.WithLabelValues(stage, result).Inc()
}
