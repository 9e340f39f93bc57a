package kv

import "context"

// CommitInfo describes a transaction which is about to commit.
type CommitInfo struct {
	// TxnID is the id of the transaction.
	TxnID uint64

	// Timestamp is the commit timestamp of the transaction in milliseconds since the unix epoch.
	Timestamp float64
}

// Hook is the interface for taking part in the lifecycle of a transaction. Hooks are registered with
// Engine.RegisterHook and invoked exactly once, either with OnCommit or with OnAbort. When the commit fails after
// OnCommit succeeded on the hook, OnRollback follows.
type Hook interface {
	// OnCommit is invoked while the transaction commits. Returning an error fails the commit. No other transaction
	// commits while the hook is running.
	OnCommit(ctx context.Context, info CommitInfo) error

	// OnRollback undoes a successful OnCommit when a later hook or applying the changes fails. Hooks are rolled back
	// in reverse registration order before the commit returns, still without other transactions committing. An error
	// is reported together with the commit failure.
	OnRollback(info CommitInfo) error

	// OnAbort is invoked when the transaction is aborted, or when it fails to commit before OnCommit was invoked on
	// this hook.
	OnAbort(txnID uint64)
}

// HookFuncs adapts plain functions to the Hook interface. Nil functions are skipped.
type HookFuncs struct {
	Commit   func(ctx context.Context, info CommitInfo) error
	Rollback func(info CommitInfo) error
	Abort    func(txnID uint64)
}

// HookFuncs implements Hook.
var _ Hook = (*HookFuncs)(nil)

func (h *HookFuncs) OnCommit(ctx context.Context, info CommitInfo) error {
	if h.Commit == nil {
		return nil
	}
	return h.Commit(ctx, info)
}

func (h *HookFuncs) OnRollback(info CommitInfo) error {
	if h.Rollback == nil {
		return nil
	}
	return h.Rollback(info)
}

func (h *HookFuncs) OnAbort(txnID uint64) {
	if h.Abort == nil {
		return
	}
	h.Abort(txnID)
}
