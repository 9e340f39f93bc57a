package txnlog

import inttxnlog "github.com/backbone81/txnlog/internal/txnlog"

// Store manages all logs located in a single directory.
//
// Store is safe to use from multiple Go routines concurrently.
type Store = inttxnlog.Store

// Open opens the store for the logs in the given directory. The directory is created when it does not exist.
var Open = inttxnlog.Open

// Log is a handle for appending entries to a named log within a transaction. Retrieve it with Store.UseLog.
//
// Log is safe to use from multiple Go routines concurrently.
type Log = inttxnlog.Log

// Engine is the transactional engine entries are bound to. It is implemented by the engine returned by OpenEngine.
type Engine = inttxnlog.Engine

// LogName is the set of types a log can be named with.
type LogName = inttxnlog.LogName

// NameOf normalizes a log name to its string form. Integer names are formatted in decimal.
func NameOf[T LogName](name T) string {
	return inttxnlog.NameOf(name)
}

// ListLogs returns the names of all logs in the directory, sorted in ascending order.
var ListLogs = inttxnlog.ListLogs

// PurgeOptions select the log files Store.PurgeLogs deletes.
type PurgeOptions = inttxnlog.PurgeOptions

// Option configures a Store.
type Option = inttxnlog.Option

// StoreRotationCallback is notified when a log rotates into a new file.
type StoreRotationCallback = inttxnlog.StoreRotationCallback

// WithMaxFileSize overwrites the default maximum file size which causes rotation into a new file when reached.
var WithMaxFileSize = inttxnlog.WithMaxFileSize

// WithRetention overwrites the default retention period of log files. A retention of zero or below disables it.
var WithRetention = inttxnlog.WithRetention

// WithSyncPolicyNone overwrites the default sync policy with sync policy none.
var WithSyncPolicyNone = inttxnlog.WithSyncPolicyNone

// WithSyncPolicyImmediate overwrites the default sync policy with sync policy immediate.
var WithSyncPolicyImmediate = inttxnlog.WithSyncPolicyImmediate

// WithSyncPolicyPeriodic overwrites the default sync policy with sync policy periodic.
var WithSyncPolicyPeriodic = inttxnlog.WithSyncPolicyPeriodic

// WithRotationCallback sets the given callback for being triggered when a log rotates into a new file.
var WithRotationCallback = inttxnlog.WithRotationCallback

// WithLogger sets the logger the store reports rotation, retention, recovery and purging to.
var WithLogger = inttxnlog.WithLogger

// WithClock overwrites the clock retention is evaluated against.
var WithClock = inttxnlog.WithClock
