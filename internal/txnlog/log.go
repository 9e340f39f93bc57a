package txnlog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/backbone81/txnlog/internal/kv"
	"github.com/backbone81/txnlog/internal/logfile"
)

// Log is a handle for adding entries to a log. Entries are collected in memory until the transaction they were added
// for finishes. They are written to the log when the transaction commits and discarded when it aborts.
//
// A handle is bound to the transaction of its first entry until that transaction finishes. Multiple handles can be
// used for the same log, for example one per Go routine.
//
// Log is safe to use from multiple Go routines concurrently.
type Log struct {
	store *Store
	name  string

	// Protects the fields below.
	mutex    sync.Mutex
	released bool

	// The log store the handle is bound to. Nil when the handle is not bound.
	logStore *logStore
	txnID    uint64
	entries  [][]byte
}

// Name returns the name of the log.
func (l *Log) Name() string {
	return l.name
}

// TxnID returns the id of the transaction the handle is bound to. It is zero when the handle is not bound.
func (l *Log) TxnID() uint64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.txnID
}

// Pending returns the number of entries waiting for the transaction to finish.
func (l *Log) Pending() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return len(l.entries)
}

// AddEntry adds a copy of data as an entry for the transaction with the given id. The entry is written to the log
// when the transaction commits. No I/O happens before that.
//
// Returns ErrInvalidArgument for nil data or a zero transaction id, ErrUnknownTransaction when the transaction is not
// active and ErrAlreadyBound when the handle is bound to another transaction.
func (l *Log) AddEntry(data []byte, txnID uint64) error {
	if data == nil {
		return fmt.Errorf("%w: data must not be nil", ErrInvalidArgument)
	}
	if txnID == 0 {
		return fmt.Errorf("%w: transaction id must not be zero", ErrInvalidArgument)
	}
	if uint64(len(data)) > math.MaxUint32 {
		return fmt.Errorf("%w: entry of %d bytes exceeds the maximum entry size", ErrInvalidArgument, len(data))
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.released {
		return fmt.Errorf("%w: log handle %q was released", ErrInvalidArgument, l.name)
	}
	if l.logStore != nil && l.txnID != txnID {
		return fmt.Errorf("%w: log %q is bound to transaction %d", ErrAlreadyBound, l.name, l.txnID)
	}
	if l.logStore == nil {
		if err := l.bind(txnID); err != nil {
			return err
		}
	}
	l.entries = append(l.entries, bytes.Clone(data))
	return nil
}

// bind binds the handle to the transaction and registers the hook with the engine.
func (l *Log) bind(txnID uint64) error {
	logStore, err := l.store.bind(l.name)
	if err != nil {
		return err
	}
	if err := l.store.engine.RegisterHook(txnID, &logHook{log: l, txnID: txnID}); err != nil {
		l.store.unbind(logStore)
		if errors.Is(err, kv.ErrUnknownTransaction) {
			return fmt.Errorf("%w: %d", ErrUnknownTransaction, txnID)
		}
		return fmt.Errorf("registering the hook with transaction %d: %w", txnID, err)
	}
	l.logStore = logStore
	l.txnID = txnID
	return nil
}

// Release discards all pending entries and unbinds the handle. The handle can not be used afterward. Entries added
// for a transaction which commits after the release are lost.
func (l *Log) Release() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.logStore != nil {
		l.store.unbind(l.logStore)
	}
	l.logStore = nil
	l.txnID = 0
	l.entries = nil
	l.released = true
}

// detach takes the pending entries of the transaction and unbinds the handle. It reports false when the handle is
// no longer bound to the transaction.
func (l *Log) detach(txnID uint64) (*logStore, [][]byte, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.logStore == nil || l.txnID != txnID {
		return nil, nil, false
	}
	logStore, entries := l.logStore, l.entries
	l.logStore = nil
	l.txnID = 0
	l.entries = nil
	return logStore, entries, true
}

// logHook connects a log handle to the lifecycle of a single transaction.
type logHook struct {
	log   *Log
	txnID uint64

	// The log store and position the entries were appended at. Nil while nothing was appended.
	appended *logStore
	position logfile.Position
}

// logHook implements kv.Hook.
var _ kv.Hook = (*logHook)(nil)

func (h *logHook) OnCommit(ctx context.Context, info kv.CommitInfo) error {
	logStore, entries, ok := h.log.detach(h.txnID)
	if !ok {
		return nil
	}
	defer h.log.store.unbind(logStore)

	position, err := h.log.store.append(ctx, logStore, entries, Stamp{
		Earliest: h.log.store.engine.OldestSnapshotTimestamp(),
		Actual:   info.Timestamp,
	})
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		h.appended = logStore
		h.position = position
	}
	return nil
}

func (h *logHook) OnRollback(_ kv.CommitInfo) error {
	if h.appended == nil {
		return nil
	}
	logStore := h.appended
	h.appended = nil
	return h.log.store.rollback(logStore, h.position)
}

func (h *logHook) OnAbort(_ uint64) {
	logStore, _, ok := h.log.detach(h.txnID)
	if !ok {
		return
	}
	h.log.store.unbind(logStore)
}
