package txnlog

import "github.com/backbone81/txnlog/internal/kv"

// KVEngine is a transactional key-value store backed by pebble. Entries of a Log are bound to its transactions.
//
// KVEngine is safe to use from multiple Go routines concurrently.
type KVEngine = kv.Engine

// Txn is a transaction of a KVEngine.
type Txn = kv.Txn

// EngineOption configures a KVEngine.
type EngineOption = kv.Option

// OpenEngine opens the key-value engine in the given directory.
var OpenEngine = kv.Open

// WithFS overwrites the file system the key-value engine stores its data in.
var WithFS = kv.WithFS

// WithPebbleOptions overwrites the options pebble is opened with.
var WithPebbleOptions = kv.WithPebbleOptions

// WithSync overwrites if key-value engine commits are synced to stable storage.
var WithSync = kv.WithSync

// WithEngineLogger sets the logger of the key-value engine.
var WithEngineLogger = kv.WithLogger

// WithEngineClock overwrites the clock commit timestamps are derived from.
var WithEngineClock = kv.WithClock

// Timestamp converts a point in time into a timestamp as used by the log.
var Timestamp = kv.Timestamp

// Time converts a timestamp as used by the log into a point in time.
var Time = kv.Time
