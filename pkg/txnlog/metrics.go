package txnlog

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/backbone81/txnlog/internal/kv"
	"github.com/backbone81/txnlog/internal/logfile"
	inttxnlog "github.com/backbone81/txnlog/internal/txnlog"
)

// RegisterMetrics registers all metrics collectors with the given prometheus registerer.
func RegisterMetrics(registerer prometheus.Registerer) error {
	if err := inttxnlog.RegisterMetrics(registerer); err != nil {
		return err
	}
	if err := logfile.RegisterMetrics(registerer); err != nil {
		return err
	}
	if err := kv.RegisterMetrics(registerer); err != nil {
		return err
	}
	return nil
}
