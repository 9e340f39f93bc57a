package txnlog

import (
	"errors"

	"github.com/backbone81/txnlog/internal/encoding"
)

var (
	// ErrInvalidArgument is returned when an entry is added without data or without a transaction id.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnknownTransaction is returned when an entry is added for a transaction which is not active.
	ErrUnknownTransaction = errors.New("unknown transaction")

	// ErrAlreadyBound is returned when an entry is added to a log handle which is bound to a different transaction.
	ErrAlreadyBound = errors.New("log handle is already bound to a different transaction")

	// ErrWriteFailure is returned when appending to a log file failed.
	ErrWriteFailure = errors.New("writing to the log failed")

	// ErrLogInUse is returned when a log which is bound to an in-flight transaction is purged.
	ErrLogInUse = errors.New("log is in use by an in-flight transaction")

	// ErrStoreClosed is returned when the store was closed.
	ErrStoreClosed = errors.New("store is closed")

	// ErrCorruptFormat is returned when a log file does not describe a valid log structure.
	ErrCorruptFormat = encoding.ErrCorruptFormat

	// ErrTruncatedRead is returned when a log file ends within a structure.
	ErrTruncatedRead = encoding.ErrTruncatedRead
)
