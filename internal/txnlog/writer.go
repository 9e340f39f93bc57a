package txnlog

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-logr/logr"

	"github.com/backbone81/txnlog/internal/encoding"
	"github.com/backbone81/txnlog/internal/logfile"
	"github.com/backbone81/txnlog/internal/utils"
)

// DefaultMaxFileSize is the maximum size of a single log file in bytes.
const DefaultMaxFileSize = 16 * 1024 * 1024

// Stamp holds the timestamps every entry of a transaction is written with.
type Stamp struct {
	// Earliest is the start timestamp of the oldest snapshot still in use when the transaction committed.
	Earliest float64

	// Actual is the commit timestamp of the transaction.
	Actual float64
}

// RotationCallback is the callback users can register for getting notified when a rotation of a log file happens.
// The parameters are the sequence numbers of the previous and the next file.
type RotationCallback func(previous uint64, next uint64)

// DefaultRotationCallback provides a callback which does nothing.
var DefaultRotationCallback RotationCallback = func(previous uint64, next uint64) {}

// WriterConfig is the configuration required for a call to OpenWriter.
type WriterConfig struct {
	// Directory is the directory the log files are located in.
	Directory string

	// Name is the name of the log.
	Name string

	// MaxFileSize is the maximum size of a log file in bytes. Defaults to DefaultMaxFileSize. Values below the size
	// of the file header plus one block are raised to that size.
	MaxFileSize int64

	// SyncPolicy is the sync policy to apply. Defaults to SyncPolicyImmediate.
	SyncPolicy SyncPolicy

	// RotationCallback is invoked after every rotation. Defaults to DefaultRotationCallback.
	RotationCallback RotationCallback

	// Logger receives rotation and recovery messages. Defaults to logr.Discard().
	Logger logr.Logger
}

// Writer provides the main functionality for writing to a log. It abstracts away the fact that the log is split into
// blocks which are distributed over several files, and rotates into new files as necessary.
//
// The first file is only created when the first entry is appended. When the writer is opened on an existing log, it
// recovers the log and continues appending to the last file.
//
// Instances of Writer are NOT safe to use concurrently. You need to provide external synchronization.
type Writer struct {
	noCopy utils.NoCopy

	directory        string
	name             string
	maxBlocks        int64
	syncPolicy       SyncPolicy
	rotationCallback RotationCallback
	logger           logr.Logger

	// The file currently written to. Nil until the first append and after a failure.
	file *logfile.Writer

	// The position appending continues at when no file is open. The sequence is zero when the log has no files.
	resume logfile.Position

	// The start of a transaction which failed to be written. Everything from there on is cut off before the next
	// append.
	rollback    logfile.Position
	hasRollback bool

	// The start of the transaction appended last.
	last logfile.Position

	// Reports if the state of the files is unknown after closing failed.
	needsRecovery bool
}

// OpenWriter recovers the log described by the config and returns a writer appending to it.
//
// To avoid resources leaking, the returned writer needs to be closed by calling Close().
func OpenWriter(config WriterConfig) (*Writer, error) {
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = DefaultMaxFileSize
	}
	if config.SyncPolicy == nil {
		config.SyncPolicy = NewSyncPolicyImmediate()
	}
	if config.RotationCallback == nil {
		config.RotationCallback = DefaultRotationCallback
	}
	if config.Logger.GetSink() == nil {
		config.Logger = logr.Discard()
	}

	result, err := Recover(config.Directory, config.Name, config.Logger)
	if err != nil {
		return nil, fmt.Errorf("recovering the log %q: %w", config.Name, err)
	}
	return &Writer{
		directory:        config.Directory,
		name:             config.Name,
		maxBlocks:        logfile.MaxBlocksForFileSize(config.MaxFileSize),
		syncPolicy:       config.SyncPolicy,
		rotationCallback: config.RotationCallback,
		logger:           config.Logger,
		resume:           result.Resume,
	}, nil
}

// Name returns the name of the log.
func (w *Writer) Name() string {
	return w.name
}

// Sequence returns the sequence number of the file appends go to. It is zero when the log has no files yet.
func (w *Writer) Sequence() uint64 {
	if w.file != nil {
		return w.file.Sequence()
	}
	if w.hasRollback {
		return w.rollback.Sequence
	}
	return w.resume.Sequence
}

// Append writes the entries of a single transaction to the log and flushes them to the file. The sync policy decides
// if the file is synced to stable storage before Append returns.
//
// All entries are written with the given stamp. The last entry is marked as the last entry of the transaction. When
// writing fails, ErrWriteFailure is returned and everything written for the transaction is cut off again before the
// next append.
func (w *Writer) Append(entries [][]byte, stamp Stamp) error {
	if len(entries) == 0 {
		return nil
	}
	var totalBytes int
	for _, entry := range entries {
		if uint64(len(entry)) > math.MaxUint32 {
			return fmt.Errorf("%w: entry of %d bytes exceeds the maximum entry size", ErrInvalidArgument, len(entry))
		}
		totalBytes += len(entry)
	}

	if err := w.append(entries, stamp); err != nil {
		w.fail()
		WriteFailureTotal.Inc()
		return fmt.Errorf("%w: log %q: %w", ErrWriteFailure, w.name, err)
	}
	AppendedEntryTotal.Add(float64(len(entries)))
	AppendedEntryBytes.Add(float64(totalBytes))
	return nil
}

func (w *Writer) append(entries [][]byte, stamp Stamp) error {
	if err := w.prepare(); err != nil {
		return err
	}
	w.rollback = logfile.Position{
		Sequence: w.file.Sequence(),
		Offset:   w.file.Offset(),
	}
	w.hasRollback = true

	for i, data := range entries {
		var flags encoding.TxnFlags
		if i == len(entries)-1 {
			flags = encoding.LastEntryFlag
		}
		if err := w.appendEntry(data, stamp, flags); err != nil {
			return err
		}
	}
	if err := w.file.Flush(); err != nil {
		return err
	}
	if err := w.syncPolicy.EntriesAppended(len(entries)); err != nil {
		return err
	}
	w.last = w.rollback
	w.hasRollback = false
	return nil
}

// LastAppended returns the position the transaction appended last starts at.
func (w *Writer) LastAppended() logfile.Position {
	return w.last
}

// Rollback cuts the log off at the given position and discards everything appended from there on. The position must
// be the start of a transaction as returned by LastAppended. When cutting off fails, it is tried again before the next
// append.
func (w *Writer) Rollback(position logfile.Position) error {
	w.fail()
	w.rollback = position
	w.hasRollback = true
	if _, err := truncateLog(w.directory, w.name, position, w.logger); err != nil {
		return fmt.Errorf("rolling back the log %q to %s: %w", w.name, position, err)
	}
	w.resume = position
	w.hasRollback = false
	RollbackTotal.Inc()
	w.logger.V(1).Info("Rolled back log", "log", w.name, "position", position.String())
	return nil
}

// appendEntry writes the transaction header and the data of a single entry, starting new blocks as necessary.
func (w *Writer) appendEntry(data []byte, stamp Stamp, flags encoding.TxnFlags) error {
	if w.file.BlockRemaining() < encoding.TxnHeaderSize {
		// The transaction header is never split by the writer. The rest of the block stays empty.
		w.file.PadBlock()
		if err := w.startBlock(stamp, 0); err != nil {
			return err
		}
	}
	if err := w.file.WriteTxnHeader(encoding.TxnHeader{
		EarliestTimestamp: stamp.Earliest,
		ActualTimestamp:   stamp.Actual,
		DataLength:        uint32(len(data)),
		Flags:             flags,
	}); err != nil {
		return err
	}

	data = data[w.file.WriteData(data):]
	for len(data) > 0 {
		if err := w.startBlock(stamp, encoding.ContinuationFlag); err != nil {
			return err
		}
		data = data[w.file.WriteData(data):]
	}
	return nil
}

// startBlock begins a new block, rotating into a new file first when the current file is full.
func (w *Writer) startBlock(stamp Stamp, flags encoding.BlockFlags) error {
	if w.file.Full() {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	return w.file.StartBlock(encoding.BlockHeader{
		StartTimestamp: stamp.Actual,
		Flags:          flags,
	})
}

// prepare makes sure a file is open for appending. It creates the first file of the log, re-opens the file appending
// continues at, or cuts off the remains of a failed transaction.
func (w *Writer) prepare() error {
	if w.file != nil {
		return nil
	}
	if w.needsRecovery {
		result, err := Recover(w.directory, w.name, w.logger)
		if err != nil {
			return fmt.Errorf("recovering the log: %w", err)
		}
		w.resume = result.Resume
		w.needsRecovery = false
	}
	if w.hasRollback {
		if _, err := truncateLog(w.directory, w.name, w.rollback, w.logger); err != nil {
			return fmt.Errorf("rolling back a failed write: %w", err)
		}
		w.resume = w.rollback
		w.hasRollback = false
	}

	var file *logfile.Writer
	var err error
	if w.resume.Sequence == 0 {
		file, err = logfile.CreateFile(w.directory, w.name, 1, w.maxBlocks)
	} else {
		file, err = logfile.OpenFile(w.directory, w.name, w.resume.Sequence, w.resume.Offset, w.maxBlocks)
	}
	if err != nil {
		return err
	}
	if err := w.syncPolicy.Startup(file); err != nil {
		return errors.Join(err, file.Close())
	}
	w.file = file
	return nil
}

// fail drops the file after a failed write. The next append starts with rolling back the failed transaction.
func (w *Writer) fail() {
	if w.file == nil {
		return
	}
	_ = w.syncPolicy.Shutdown()
	_ = w.file.Close()
	w.file = nil
}

// rotate closes the current file and creates the next file to write to.
func (w *Writer) rotate() error {
	RotationTotal.Inc()
	start := time.Now()

	previous := w.file.Sequence()
	if err := w.file.Flush(); err != nil {
		return err
	}
	if err := w.syncPolicy.Shutdown(); err != nil {
		return err
	}
	file := w.file
	w.file = nil
	if err := file.Close(); err != nil {
		return err
	}

	next, err := logfile.CreateFile(w.directory, w.name, previous+1, w.maxBlocks)
	if err != nil {
		return err
	}
	w.file = next
	if err := w.syncPolicy.Startup(next); err != nil {
		return err
	}

	w.rotationCallback(previous, next.Sequence())
	w.logger.V(1).Info("Rotated log file", "log", w.name, "previous", previous, "next", next.Sequence())

	duration := time.Since(start).Seconds()
	if duration > 1.0 {
		w.logger.Info("Log file rotation was too slow", "log", w.name, "seconds", duration)
	}
	RotationDuration.Observe(duration)
	return nil
}

// Close closes the file currently written to. The writer can still be used afterward, it re-opens the file with the
// next append.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	syncErr := w.syncPolicy.Shutdown()
	closeErr := w.file.Close()
	w.resume = logfile.Position{
		Sequence: w.file.Sequence(),
		Offset:   w.file.Offset(),
	}
	w.file = nil
	if err := errors.Join(syncErr, closeErr); err != nil {
		w.needsRecovery = true
		return err
	}
	return nil
}
