package txnlog

import "errors"

var ErrSyncPolicyUnsupported = errors.New("unsupported sync policy")

// SyncPolicyType describes the type of sync policy to apply when writing to the log file.
type SyncPolicyType int

const (
	SyncPolicyTypeNone SyncPolicyType = iota
	SyncPolicyTypeImmediate
	SyncPolicyTypePeriodic
)

// String returns a string representation of the sync policy type.
func (s SyncPolicyType) String() string {
	switch s {
	case SyncPolicyTypeNone:
		return "none"
	case SyncPolicyTypeImmediate:
		return "immediate"
	case SyncPolicyTypePeriodic:
		return "periodic"
	default:
		return "unknown"
	}
}

// SyncPolicyTypes provides a list of supported sync policies. Helpful for writing tests and benchmarks which iterate
// over all possibilities.
var SyncPolicyTypes = []SyncPolicyType{
	SyncPolicyTypeNone,
	SyncPolicyTypeImmediate,
	SyncPolicyTypePeriodic,
}

// DefaultSyncPolicy is the sync policy type which makes every commit durable before it is reported successful.
const DefaultSyncPolicy = SyncPolicyTypeImmediate

// Syncer is implemented by the log file the sync policy flushes to stable storage.
type Syncer interface {
	Sync() error
}

// SyncPolicy is the interface every sync policy needs to implement. Every log has its own instance.
type SyncPolicy interface {
	// Startup is called when a log file was opened for writing.
	Startup(file Syncer) error

	// EntriesAppended is called after the entries of a transaction were written to the log file.
	EntriesAppended(count int) error

	// Shutdown is called before the log file is closed.
	Shutdown() error
}

// SyncPolicyFactory creates a new instance of a sync policy.
type SyncPolicyFactory func() SyncPolicy

// GetSyncPolicyFactory returns a factory for the sync policy matching the sync policy type. The periodic sync policy
// uses DefaultSyncAfterEntryCount and DefaultSyncEvery.
func GetSyncPolicyFactory(syncPolicyType SyncPolicyType) (SyncPolicyFactory, error) {
	switch syncPolicyType {
	case SyncPolicyTypeNone:
		return func() SyncPolicy { return NewSyncPolicyNone() }, nil
	case SyncPolicyTypeImmediate:
		return func() SyncPolicy { return NewSyncPolicyImmediate() }, nil
	case SyncPolicyTypePeriodic:
		return func() SyncPolicy { return NewSyncPolicyPeriodic(DefaultSyncAfterEntryCount, DefaultSyncEvery) }, nil
	default:
		return nil, ErrSyncPolicyUnsupported
	}
}
