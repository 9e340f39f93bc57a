package logfile

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ReadEntryTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txnlog_read_entry_total",
			Help: "Total number of entries read from log files.",
		},
	)

	ReadEntryBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txnlog_read_entry_bytes_total",
			Help: "Total number of entry data bytes read from log files.",
		},
	)

	OrphanBlocksSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txnlog_orphan_blocks_skipped_total",
			Help: "Total number of continuation blocks skipped because the start of their entry was not available.",
		},
	)
)

// RegisterMetrics registers all metrics collectors with the given prometheus registerer.
func RegisterMetrics(registerer prometheus.Registerer) error {
	metrics := []prometheus.Collector{
		ReadEntryTotal,
		ReadEntryBytes,
		OrphanBlocksSkippedTotal,
	}
	for _, metric := range metrics {
		if err := registerer.Register(metric); err != nil {
			return err
		}
	}
	return nil
}
