// Package metrics provides Prometheus metrics for the news agent.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "newsagent"

var (
	// FetchedEntriesTotal counts entries returned by fetch targets.
	FetchedEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetched_entries_total",
			Help:      "Entries returned by fetch adapters",
		},
		[]string{"scanner"},
	)

	// FetchErrorsTotal counts failed fetch targets.
	FetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Fetch targets that failed",
		},
		[]string{"scanner"},
	)

	// UpsertsTotal counts upsert outcomes per kind.
	UpsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upserts_total",
			Help:      "Upsert outcomes by kind",
		},
		[]string{"kind", "result"},
	)

	// FilteredTotal counts entries dropped before the upsert engine.
	FilteredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filtered_entries_total",
			Help:      "Entries dropped by cutoff or relevance filtering",
		},
		[]string{"reason"},
	)

	// SummariesTotal counts summarization outcomes.
	SummariesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Summaries written, by producer",
		},
		[]string{"kind", "producer"},
	)

	// SummarizeDuration measures a single row's summarization.
	SummarizeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summarize_duration_seconds",
			Help:      "Time spent producing one summary",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// SummarizeInFlight tracks concurrently running summarization tasks.
	SummarizeInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "summarize_in_flight",
			Help:      "Summarization tasks currently running",
		},
	)

	// JobRunsTotal counts scheduled job executions by outcome.
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by status",
		},
		[]string{"job", "status"},
	)

	// JobDuration measures scheduled job runtime.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of scheduled jobs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"job"},
	)
)

// RecordFetch records the outcome of one fetch target.
func RecordFetch(scanner string, entries int, err error) {
	if err != nil {
		FetchErrorsTotal.WithLabelValues(scanner).Inc()
		return
	}
	FetchedEntriesTotal.WithLabelValues(scanner).Add(float64(entries))
}

// RecordUpsert records an upsert outcome.
func RecordUpsert(kind, result string) {
	UpsertsTotal.WithLabelValues(kind, result).Inc()
}

// RecordFiltered records an entry dropped before persistence.
func RecordFiltered(reason string) {
	FilteredTotal.WithLabelValues(reason).Inc()
}

// RecordSummary records a written summary and how long it took.
func RecordSummary(kind, producer string, seconds float64) {
	SummariesTotal.WithLabelValues(kind, producer).Inc()
	SummarizeDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordJob records a scheduled job run.
func RecordJob(job, status string, seconds float64) {
	JobRunsTotal.WithLabelValues(job, status).Inc()
	if status != "skipped" {
		JobDuration.WithLabelValues(job).Observe(seconds)
	}
}
