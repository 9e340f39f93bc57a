package kv

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/go-logr/logr"
)

var (
	// ErrKeyNotFound is returned when a key does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrTransactionClosed is returned when an operation is attempted on a committed or aborted transaction.
	ErrTransactionClosed = errors.New("transaction already committed or aborted")

	// ErrUnknownTransaction is returned when no active transaction with the given id exists.
	ErrUnknownTransaction = errors.New("unknown transaction")

	// ErrEngineClosed is returned when the engine was closed.
	ErrEngineClosed = errors.New("engine is closed")

	// ErrHookFailed is returned when a commit hook failed and the transaction was aborted instead.
	ErrHookFailed = errors.New("commit hook failed")
)

// Engine is a transactional key-value store.
//
// Engine is safe to use from multiple Go routines concurrently.
type Engine struct {
	db *pebble.DB

	pebbleOptions *pebble.Options
	syncWrites    bool
	logger        logr.Logger

	// Serializes commits, including the invocation of their hooks.
	commitMutex sync.Mutex

	// Protects the fields below.
	mutex     sync.Mutex
	closed    bool
	clock     monotonicClock
	lastTxnID uint64
	active    map[uint64]*Txn
}

// Option describes the function signature which all engine options need to implement.
type Option func(e *Engine)

// WithFS overwrites the file system pebble is using. Helpful for tests with vfs.NewMem().
func WithFS(fs vfs.FS) Option {
	return func(e *Engine) {
		e.pebbleOptions.FS = fs
	}
}

// WithPebbleOptions overwrites the options pebble is opened with. Apply it before WithFS when combining both.
func WithPebbleOptions(options *pebble.Options) Option {
	return func(e *Engine) {
		if options == nil {
			options = &pebble.Options{}
		}
		e.pebbleOptions = options
	}
}

// WithSync controls if every commit waits for the pebble write-ahead log to reach stable storage. Defaults to true.
func WithSync(syncWrites bool) Option {
	return func(e *Engine) {
		e.syncWrites = syncWrites
	}
}

// WithClock overwrites the clock timestamps are derived from.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.clock.now = now
	}
}

// WithLogger sets the logger for the engine.
func WithLogger(logger logr.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Open opens or creates the engine in the given directory.
//
// To avoid resources leaking, the returned engine needs to be closed by calling Close().
func Open(directory string, options ...Option) (*Engine, error) {
	newEngine := Engine{
		pebbleOptions: &pebble.Options{},
		syncWrites:    true,
		logger:        logr.Discard(),
		clock: monotonicClock{
			now: time.Now,
		},
		active: make(map[uint64]*Txn),
	}
	for _, option := range options {
		option(&newEngine)
	}

	db, err := pebble.Open(directory, newEngine.pebbleOptions)
	if err != nil {
		return nil, fmt.Errorf("opening the key-value store in %q: %w", directory, err)
	}
	newEngine.db = db
	newEngine.logger.V(1).Info("Opened key-value store", "directory", directory)
	return &newEngine, nil
}

// Begin starts a new transaction. The transaction reads from a snapshot of the current state.
//
// To avoid resources leaking, the transaction needs to be finished by calling Commit() or Abort().
func (e *Engine) Begin() (*Txn, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}

	e.lastTxnID++
	txn := &Txn{
		engine:         e,
		id:             e.lastTxnID,
		startTimestamp: e.clock.Current(),
		snapshot:       e.db.NewSnapshot(),
		writes:         make(map[string]*write),
	}
	e.active[txn.id] = txn
	ActiveTransactions.Inc()
	return txn, nil
}

// RegisterHook registers the hook with the active transaction with the given id. Returns ErrUnknownTransaction when
// no such transaction is active.
func (e *Engine) RegisterHook(txnID uint64, hook Hook) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	txn, ok := e.active[txnID]
	if !ok || txn.committing {
		return fmt.Errorf("%w: %d", ErrUnknownTransaction, txnID)
	}
	txn.hooks = append(txn.hooks, hook)
	return nil
}

// IsActive reports if a transaction with the given id is active.
func (e *Engine) IsActive(txnID uint64) bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	_, ok := e.active[txnID]
	return ok
}

// OldestSnapshotTimestamp returns the start timestamp of the oldest active transaction. When no transaction is
// active, the current timestamp is returned.
func (e *Engine) OldestSnapshotTimestamp() float64 {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	result := e.clock.Current()
	for _, txn := range e.active {
		result = min(result, txn.startTimestamp)
	}
	return result
}

// Get reads the latest committed value of the key outside of any transaction.
func (e *Engine) Get(key []byte) ([]byte, error) {
	return get(e.db, key)
}

// Close aborts all active transactions and closes the engine.
func (e *Engine) Close() error {
	e.mutex.Lock()
	if e.closed {
		e.mutex.Unlock()
		return nil
	}
	e.closed = true
	active := make([]*Txn, 0, len(e.active))
	for _, txn := range e.active {
		active = append(active, txn)
	}
	e.mutex.Unlock()

	var errs []error
	for _, txn := range active {
		if err := txn.Abort(); err != nil && !errors.Is(err, ErrTransactionClosed) {
			errs = append(errs, err)
		}
	}
	if len(active) > 0 {
		e.logger.Info("Aborted active transactions on close", "count", len(active))
	}

	// Wait for a commit in flight.
	e.commitMutex.Lock()
	defer e.commitMutex.Unlock()
	errs = append(errs, e.db.Close())
	return errors.Join(errs...)
}

// finish removes the transaction from the set of active transactions.
func (e *Engine) finish(txn *Txn) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if _, ok := e.active[txn.id]; ok {
		delete(e.active, txn.id)
		ActiveTransactions.Dec()
	}
}

// nextCommitTimestamp reserves the commit timestamp and takes a snapshot of the hooks of the transaction. No hooks
// can be registered afterward.
func (e *Engine) nextCommitTimestamp(txn *Txn) (float64, []Hook) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	txn.committing = true
	return e.clock.Next(), txn.hooks
}

// detachHooks takes the hooks of the transaction. No hooks can be registered afterward.
func (e *Engine) detachHooks(txn *Txn) []Hook {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	txn.committing = true
	hooks := txn.hooks
	txn.hooks = nil
	return hooks
}

func (e *Engine) writeOptions() *pebble.WriteOptions {
	if e.syncWrites {
		return pebble.Sync
	}
	return pebble.NoSync
}

// reader is implemented by pebble.DB and pebble.Snapshot.
type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
}

func get(r reader, key []byte) ([]byte, error) {
	value, closer, err := r.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading key %q: %w", key, err)
	}
	defer func() {
		_ = closer.Close()
	}()
	return append([]byte(nil), value...), nil
}
