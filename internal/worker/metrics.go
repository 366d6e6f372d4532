package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry           *prometheus.Registry
	jobsTotal          *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec
	activeJobs         prometheus.Gauge
	operationsTotal    *prometheus.CounterVec
	outputsTotal       *prometheus.CounterVec
	lockConflictsTotal prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelmod_worker_jobs_total",
			Help: "Total worker jobs by source type and final status.",
		}, []string{"source_type", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelmod_worker_job_duration_seconds",
			Help:    "Total processing duration for each worker job.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source_type", "status"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pixelmod_worker_active_jobs",
			Help: "Current number of jobs being modified.",
		}),
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelmod_worker_operations_total",
			Help: "Queued operations replayed by the backend, by kind.",
		}, []string{"kind"}),
		outputsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelmod_worker_outputs_total",
			Help: "Images written by the worker, by mime type.",
		}, []string{"mime_type"}),
		lockConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelmod_worker_lock_conflicts_total",
			Help: "Exports that could not take their destination lock.",
		}),
	}

	registry.MustRegister(
		m.jobsTotal,
		m.jobDuration,
		m.activeJobs,
		m.operationsTotal,
		m.outputsTotal,
		m.lockConflictsTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
