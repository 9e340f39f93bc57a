package txnlog

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RotationTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txnlog_rotation_total",
			Help: "Total number of log file rotations executed.",
		},
	)

	RotationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "txnlog_rotation_duration_seconds",
			Help:    "Duration of log file rotations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
	)

	AppendedEntryTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txnlog_appended_entry_total",
			Help: "Total number of entries appended to logs.",
		},
	)

	AppendedEntryBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txnlog_appended_entry_bytes_total",
			Help: "Total number of entry data bytes appended to logs.",
		},
	)

	WriteFailureTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txnlog_write_failure_total",
			Help: "Total number of appends which failed with an I/O error.",
		},
	)

	RollbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txnlog_rollback_total",
			Help: "Total number of transactions cut off the log again because their commit failed.",
		},
	)

	RecoveryTruncatedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txnlog_recovery_truncated_bytes_total",
			Help: "Total number of bytes cut off from log files by crash recovery.",
		},
	)

	RetentionDeletedFileTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txnlog_retention_deleted_file_total",
			Help: "Total number of log files deleted because they exceeded the retention.",
		},
	)

	PurgedFileTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txnlog_purged_file_total",
			Help: "Total number of log files deleted by purging.",
		},
	)
)

// RegisterMetrics registers all metrics collectors with the given prometheus registerer.
func RegisterMetrics(registerer prometheus.Registerer) error {
	metrics := []prometheus.Collector{
		RotationTotal,
		RotationDuration,
		AppendedEntryTotal,
		AppendedEntryBytes,
		WriteFailureTotal,
		RollbackTotal,
		RecoveryTruncatedBytes,
		RetentionDeletedFileTotal,
		PurgedFileTotal,
	}
	for _, metric := range metrics {
		if err := registerer.Register(metric); err != nil {
			return err
		}
	}
	return nil
}
