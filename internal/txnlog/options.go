package txnlog

import (
	"time"

	"github.com/go-logr/logr"
)

// DefaultRetention is the age after which rotated log files are deleted.
const DefaultRetention = 72 * time.Hour

// StoreRotationCallback is the callback users can register for getting notified when a rotation of a log file
// happens. The parameters are the name of the log and the sequence numbers of the previous and the next file.
type StoreRotationCallback func(name string, previous uint64, next uint64)

// DefaultStoreRotationCallback provides a callback which does nothing.
var DefaultStoreRotationCallback StoreRotationCallback = func(name string, previous uint64, next uint64) {}

// Option describes the function signature which all store options need to implement.
type Option func(s *Store)

// WithMaxFileSize overwrites the default maximum size of a single log file. Every file holds at least one block, so
// values below the size of the file header plus one block are raised to that size.
func WithMaxFileSize(maxFileSize int64) Option {
	return func(s *Store) {
		s.maxFileSize = max(maxFileSize, 1)
	}
}

// WithRetention overwrites the default retention. Rotated log files which were last modified before the retention
// are deleted. A retention of zero or less disables the deletion.
func WithRetention(retention time.Duration) Option {
	return func(s *Store) {
		s.retention = retention
	}
}

// WithSyncPolicyNone overwrites the default sync policy with sync policy none.
func WithSyncPolicyNone() Option {
	return func(s *Store) {
		s.syncPolicyFactory = func() SyncPolicy {
			return NewSyncPolicyNone()
		}
	}
}

// WithSyncPolicyImmediate overwrites the default sync policy with sync policy immediate.
func WithSyncPolicyImmediate() Option {
	return func(s *Store) {
		s.syncPolicyFactory = func() SyncPolicy {
			return NewSyncPolicyImmediate()
		}
	}
}

// WithSyncPolicyPeriodic overwrites the default sync policy with sync policy periodic.
func WithSyncPolicyPeriodic(syncAfterEntryCount int, syncEvery time.Duration) Option {
	return func(s *Store) {
		s.syncPolicyFactory = func() SyncPolicy {
			return NewSyncPolicyPeriodic(syncAfterEntryCount, syncEvery).WithLogger(s.logger)
		}
	}
}

// WithRotationCallback sets the given callback for being triggered when a log file is rotated.
func WithRotationCallback(rotationCallback StoreRotationCallback) Option {
	return func(s *Store) {
		s.rotationCallback = rotationCallback
	}
}

// WithLogger sets the logger for the store.
func WithLogger(logger logr.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overwrites the clock the retention is evaluated against.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}
