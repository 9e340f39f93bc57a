package txnlog

import (
	"fmt"
)

// SyncPolicyImmediate is flushing the content of the log file to disk after every transaction. This reduces the
// chances of data loss because of hardware failure, but it has a negative impact on performance.
type SyncPolicyImmediate struct {
	file Syncer
}

// SyncPolicyImmediate implements SyncPolicy.
var _ SyncPolicy = (*SyncPolicyImmediate)(nil)

// NewSyncPolicyImmediate creates a new SyncPolicyImmediate.
func NewSyncPolicyImmediate() *SyncPolicyImmediate {
	return &SyncPolicyImmediate{}
}

func (s *SyncPolicyImmediate) Startup(file Syncer) error {
	s.file = file
	return nil
}

func (s *SyncPolicyImmediate) EntriesAppended(count int) error {
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("syncing the log file: %w", err)
	}
	return nil
}

func (s *SyncPolicyImmediate) Shutdown() error {
	if s.file == nil {
		return nil
	}
	// Rotation closes the file before EntriesAppended is called for the entries written to it.
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("syncing the log file: %w", err)
	}
	s.file = nil
	return nil
}
