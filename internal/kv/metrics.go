package kv

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ActiveTransactions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kv_active_transactions",
			Help: "Number of transactions which are neither committed nor aborted.",
		},
	)

	CommitTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kv_commit_total",
			Help: "Total number of successful commits.",
		},
	)

	CommitFailureTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kv_commit_failure_total",
			Help: "Total number of commits which failed.",
		},
	)

	CommitRollbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kv_commit_rollback_total",
			Help: "Total number of commit hooks rolled back because their commit failed later on.",
		},
	)

	AbortTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kv_abort_total",
			Help: "Total number of aborted transactions.",
		},
	)

	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kv_commit_duration_seconds",
			Help:    "Duration of commits including their hooks in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
	)
)

// RegisterMetrics registers all metrics collectors with the given prometheus registerer.
func RegisterMetrics(registerer prometheus.Registerer) error {
	metrics := []prometheus.Collector{
		ActiveTransactions,
		CommitTotal,
		CommitFailureTotal,
		CommitRollbackTotal,
		AbortTotal,
		CommitDuration,
	}
	for _, metric := range metrics {
		if err := registerer.Register(metric); err != nil {
			return err
		}
	}
	return nil
}
