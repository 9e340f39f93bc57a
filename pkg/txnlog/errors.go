package txnlog

import (
	"github.com/backbone81/txnlog/internal/kv"
	inttxnlog "github.com/backbone81/txnlog/internal/txnlog"
)

var (
	ErrInvalidArgument    = inttxnlog.ErrInvalidArgument
	ErrUnknownTransaction = inttxnlog.ErrUnknownTransaction
	ErrAlreadyBound       = inttxnlog.ErrAlreadyBound
	ErrWriteFailure       = inttxnlog.ErrWriteFailure
	ErrLogInUse           = inttxnlog.ErrLogInUse
	ErrStoreClosed        = inttxnlog.ErrStoreClosed
	ErrCorruptFormat      = inttxnlog.ErrCorruptFormat
	ErrTruncatedRead      = inttxnlog.ErrTruncatedRead

	// ErrHookFailed is returned by Txn.Commit when appending to a log failed and the transaction was aborted.
	ErrHookFailed = kv.ErrHookFailed
)
