package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

// Txn is a single transaction. It reads from the snapshot taken when it began, overlaid with its own writes.
//
// A transaction is owned by the Go routine which began it. Only Abort may be called from other Go routines.
type Txn struct {
	engine         *Engine
	id             uint64
	startTimestamp float64
	snapshot       *pebble.Snapshot

	// Protects the fields below.
	mutex           sync.Mutex
	done            bool
	writes          map[string]*write
	commitTimestamp float64

	// Protected by the mutex of the engine.
	hooks      []Hook
	committing bool
}

type write struct {
	key    []byte
	value  []byte
	delete bool
}

// ID returns the id of the transaction. Ids start at 1.
func (t *Txn) ID() uint64 {
	return t.id
}

// StartTimestamp returns the timestamp of the snapshot the transaction reads from.
func (t *Txn) StartTimestamp() float64 {
	return t.startTimestamp
}

// CommitTimestamp returns the commit timestamp. It is zero unless the transaction committed successfully.
func (t *Txn) CommitTimestamp() float64 {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.commitTimestamp
}

// Get returns the value of the key as seen by this transaction.
func (t *Txn) Get(key []byte) ([]byte, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.done {
		return nil, ErrTransactionClosed
	}
	if pending, ok := t.writes[string(key)]; ok {
		if pending.delete {
			return nil, ErrKeyNotFound
		}
		return append([]byte(nil), pending.value...), nil
	}
	return get(t.snapshot, key)
}

// Set buffers setting the key to the value. The change becomes visible to others on commit.
func (t *Txn) Set(key []byte, value []byte) error {
	return t.buffer(key, value, false)
}

// Delete buffers removing the key. The change becomes visible to others on commit.
func (t *Txn) Delete(key []byte) error {
	return t.buffer(key, nil, true)
}

func (t *Txn) buffer(key []byte, value []byte, isDelete bool) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.done {
		return ErrTransactionClosed
	}
	keyCopy := append([]byte(nil), key...)
	t.writes[string(keyCopy)] = &write{
		key:    keyCopy,
		value:  append([]byte(nil), value...),
		delete: isDelete,
	}
	return nil
}

// Commit makes all changes of the transaction visible as a single atomic batch.
//
// The registered hooks are invoked in registration order with the commit timestamp before the batch is applied. When
// a hook fails, the remaining hooks are aborted, the hooks which already committed are rolled back, the batch is
// discarded and the error is returned. When applying the batch fails, all hooks are rolled back.
func (t *Txn) Commit(ctx context.Context) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.done {
		return ErrTransactionClosed
	}
	t.done = true
	defer t.release()

	e := t.engine
	e.commitMutex.Lock()
	defer e.commitMutex.Unlock()

	start := time.Now()
	timestamp, hooks := e.nextCommitTimestamp(t)
	info := CommitInfo{
		TxnID:     t.id,
		Timestamp: timestamp,
	}
	for i, hook := range hooks {
		if err := hook.OnCommit(ctx, info); err != nil {
			for _, remaining := range hooks[i+1:] {
				remaining.OnAbort(t.id)
			}
			CommitFailureTotal.Inc()
			err = fmt.Errorf("committing transaction %d: %w: %w", t.id, ErrHookFailed, err)
			return errors.Join(err, t.rollback(hooks[:i], info))
		}
	}

	if len(t.writes) > 0 {
		if err := t.apply(); err != nil {
			CommitFailureTotal.Inc()
			err = fmt.Errorf("committing transaction %d: %w", t.id, err)
			return errors.Join(err, t.rollback(hooks, info))
		}
	}

	t.commitTimestamp = timestamp
	CommitTotal.Inc()
	CommitDuration.Observe(time.Since(start).Seconds())
	return nil
}

// rollback undoes the hooks which already committed, newest first.
func (t *Txn) rollback(committed []Hook, info CommitInfo) error {
	var errs []error
	for i := len(committed) - 1; i >= 0; i-- {
		if err := committed[i].OnRollback(info); err != nil {
			t.engine.logger.Error(err, "Rolling back a commit hook failed", "txn", t.id)
			errs = append(errs, fmt.Errorf("rolling back a commit hook of transaction %d: %w", t.id, err))
		}
	}
	CommitRollbackTotal.Add(float64(len(committed)))
	return errors.Join(errs...)
}

func (t *Txn) apply() error {
	batch := t.engine.db.NewBatch()
	defer func() {
		_ = batch.Close()
	}()

	for _, pending := range t.writes {
		var err error
		if pending.delete {
			err = batch.Delete(pending.key, nil)
		} else {
			err = batch.Set(pending.key, pending.value, nil)
		}
		if err != nil {
			return fmt.Errorf("preparing batch: %w", err)
		}
	}
	if err := batch.Commit(t.engine.writeOptions()); err != nil {
		return fmt.Errorf("applying batch: %w", err)
	}
	return nil
}

// Abort discards all changes of the transaction and invokes the abort hooks.
func (t *Txn) Abort() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.done {
		return ErrTransactionClosed
	}
	t.done = true
	defer t.release()

	for _, hook := range t.engine.detachHooks(t) {
		hook.OnAbort(t.id)
	}
	AbortTotal.Inc()
	return nil
}

// release frees the resources of a finished transaction.
func (t *Txn) release() {
	t.writes = nil
	t.engine.finish(t)
	if err := t.snapshot.Close(); err != nil && !errors.Is(err, pebble.ErrClosed) {
		t.engine.logger.Error(err, "Closing the snapshot failed", "txn", t.id)
	}
}
