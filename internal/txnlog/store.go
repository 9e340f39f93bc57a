package txnlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/backbone81/txnlog/internal/arena"
	"github.com/backbone81/txnlog/internal/kv"
	"github.com/backbone81/txnlog/internal/logfile"
)

// Engine is the transactional engine entries are bound to. It is implemented by kv.Engine.
type Engine interface {
	// RegisterHook registers the hook with the active transaction with the given id. Returns kv.ErrUnknownTransaction
	// when no such transaction is active.
	RegisterHook(txnID uint64, hook kv.Hook) error

	// OldestSnapshotTimestamp returns the start timestamp of the oldest snapshot still in use.
	OldestSnapshotTimestamp() float64
}

// kv.Engine implements Engine.
var _ Engine = (*kv.Engine)(nil)

// LogName is the set of types a log can be named with.
type LogName interface {
	~string | ~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// NameOf normalizes a log name to its string form. Integer names are formatted in decimal.
func NameOf[T LogName](name T) string {
	return fmt.Sprint(name)
}

// PurgeOptions select the log files PurgeLogs deletes.
type PurgeOptions struct {
	// Name restricts purging to the log with the given name. All logs are purged when empty.
	Name string

	// Destroy also deletes the file currently written to and drops the log from memory. Without Destroy, the file
	// currently written to is kept.
	Destroy bool
}

// Store manages all logs located in a single directory.
//
// Store is safe to use from multiple Go routines concurrently.
type Store struct {
	directory         string
	engine            Engine
	maxFileSize       int64
	retention         time.Duration
	syncPolicyFactory SyncPolicyFactory
	rotationCallback  StoreRotationCallback
	logger            logr.Logger
	now               func() time.Time

	// Serializes appending, rotation, recovery, retention and purging per log name.
	locks *arena.Arena

	// Protects the fields below.
	mutex  sync.Mutex
	closed bool
	logs   map[string]*logStore
}

// logStore is the in-memory state of a single log.
type logStore struct {
	name string

	// Protected by the lock of the name in the arena. Nil after the log store was closed.
	writer *Writer

	// The number of handles bound to an in-flight transaction. Protected by the mutex of the store.
	bound int
}

// Open opens the store for the logs in the given directory, creating the directory if necessary. Leftovers of
// interrupted file creations are removed.
//
// The engine may be nil for maintenance tasks like listing, reading and purging logs. Adding entries requires an
// engine.
//
// To avoid resources leaking, the returned store needs to be closed by calling Close().
func Open(directory string, engine Engine, options ...Option) (*Store, error) {
	newStore := Store{
		directory:   directory,
		engine:      engine,
		maxFileSize: DefaultMaxFileSize,
		retention:   DefaultRetention,
		syncPolicyFactory: func() SyncPolicy {
			return NewSyncPolicyImmediate()
		},
		rotationCallback: DefaultStoreRotationCallback,
		logger:           logr.Discard(),
		now:              time.Now,
		locks:            arena.New(),
		logs:             make(map[string]*logStore),
	}
	for _, option := range options {
		option(&newStore)
	}

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("creating the log directory %q: %w", directory, err)
	}
	removed, err := logfile.RemoveTemporaryFiles(directory)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		newStore.logger.Info("Removed temporary log files", "directory", directory, "count", len(removed))
	}
	return &newStore, nil
}

// Directory returns the directory the log files are located in.
func (s *Store) Directory() string {
	return s.directory
}

// UseLog returns a new handle for adding entries to the log with the given name. The log is opened when it is used
// for the first time: expired files are deleted and the log is recovered from an earlier crash.
func (s *Store) UseLog(name string) (*Log, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if s.engine == nil {
		return nil, fmt.Errorf("%w: the store was opened without an engine", ErrInvalidArgument)
	}
	if _, err := s.openLog(name); err != nil {
		return nil, err
	}
	return &Log{
		store: s,
		name:  name,
	}, nil
}

// ListLogs returns the names of all logs with at least one file in the directory of the store.
func (s *Store) ListLogs() ([]string, error) {
	return ListLogs(s.directory)
}

// ListLogs returns the names of all logs with at least one file in the directory, sorted in ascending order.
func ListLogs(directory string) ([]string, error) {
	return logfile.GetLogNames(directory)
}

// NewReader creates a reader for the log with the given name.
//
// To avoid resources leaking, the returned reader needs to be closed by calling Close().
func (s *Store) NewReader(name string, options QueryOptions) (*Reader, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return NewReader(s.directory, name, options)
}

// PurgeLogs deletes the files of a single log or of all logs and returns the paths of the deleted files.
//
// Purging is rejected with ErrLogInUse while a handle of a purged log is bound to an in-flight transaction, as the
// entries of that transaction would be written after the purge.
func (s *Store) PurgeLogs(options PurgeOptions) ([]string, error) {
	var names []string
	if options.Name != "" {
		if err := validateName(options.Name); err != nil {
			return nil, err
		}
		names = []string{options.Name}
	} else {
		fileNames, err := s.ListLogs()
		if err != nil {
			return nil, err
		}
		names = fileNames
		s.mutex.Lock()
		for name := range s.logs {
			names = append(names, name)
		}
		s.mutex.Unlock()
		slices.Sort(names)
		names = slices.Compact(names)
	}

	if err := s.checkNotInUse(names); err != nil {
		return nil, err
	}
	var removed []string
	for _, name := range names {
		files, err := s.purgeLog(name, options.Destroy)
		removed = append(removed, files...)
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// Close closes the files of all logs. Commits of transactions which are still bound to a log fail afterward.
func (s *Store) Close() error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil
	}
	s.closed = true
	logs := s.logs
	s.logs = nil
	s.mutex.Unlock()

	var errs []error
	for _, logStore := range logs {
		unlock := s.locks.Lock(logStore.name)
		if logStore.writer != nil {
			errs = append(errs, logStore.writer.Close())
			logStore.writer = nil
		}
		unlock()
	}
	return errors.Join(errs...)
}

// openLog returns the log store for the given name, opening it when it is not open yet.
func (s *Store) openLog(name string) (*logStore, error) {
	unlock := s.locks.Lock(name)
	defer unlock()

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil, ErrStoreClosed
	}
	existing, ok := s.logs[name]
	s.mutex.Unlock()
	if ok {
		return existing, nil
	}

	newLogStore := &logStore{
		name: name,
	}
	writer, err := OpenWriter(WriterConfig{
		Directory:   s.directory,
		Name:        name,
		MaxFileSize: s.maxFileSize,
		SyncPolicy:  s.syncPolicyFactory(),
		RotationCallback: func(previous uint64, next uint64) {
			s.rotationCallback(name, previous, next)
			if _, err := s.applyRetention(name, next); err != nil {
				s.logger.Error(err, "Applying the retention after rotation failed", "log", name)
			}
		},
		Logger: s.logger,
	})
	if err != nil {
		return nil, err
	}
	newLogStore.writer = writer
	if _, err := s.applyRetention(name, writer.Sequence()); err != nil {
		return nil, errors.Join(err, writer.Close())
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil, errors.Join(ErrStoreClosed, writer.Close())
	}
	s.logs[name] = newLogStore
	return newLogStore, nil
}

// bind returns the log store for the given name and counts a handle as bound to it.
func (s *Store) bind(name string) (*logStore, error) {
	for {
		s.mutex.Lock()
		if s.closed {
			s.mutex.Unlock()
			return nil, ErrStoreClosed
		}
		if existing, ok := s.logs[name]; ok {
			existing.bound++
			s.mutex.Unlock()
			return existing, nil
		}
		s.mutex.Unlock()

		// The log store was dropped by purging, it needs to be opened again.
		if _, err := s.openLog(name); err != nil {
			return nil, err
		}
	}
}

func (s *Store) unbind(logStore *logStore) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	logStore.bound--
}

// append writes the entries of a committed transaction to the log. It returns the position the transaction starts
// at for rolling it back.
func (s *Store) append(ctx context.Context, logStore *logStore, entries [][]byte, stamp Stamp) (logfile.Position, error) {
	if err := ctx.Err(); err != nil {
		return logfile.Position{}, err
	}

	unlock := s.locks.Lock(logStore.name)
	defer unlock()

	if logStore.writer == nil {
		return logfile.Position{}, fmt.Errorf("%w: log %q", ErrStoreClosed, logStore.name)
	}
	if err := logStore.writer.Append(entries, stamp); err != nil {
		return logfile.Position{}, err
	}
	return logStore.writer.LastAppended(), nil
}

// rollback cuts a transaction whose commit failed off the log again.
func (s *Store) rollback(logStore *logStore, position logfile.Position) error {
	unlock := s.locks.Lock(logStore.name)
	defer unlock()

	if logStore.writer == nil {
		return fmt.Errorf("%w: log %q", ErrStoreClosed, logStore.name)
	}
	return logStore.writer.Rollback(position)
}

func (s *Store) checkNotInUse(names []string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	for _, name := range names {
		if existing, ok := s.logs[name]; ok && existing.bound > 0 {
			return fmt.Errorf("%w: %q", ErrLogInUse, name)
		}
	}
	return nil
}

// purgeLog deletes the files of a single log, oldest first.
func (s *Store) purgeLog(name string, destroy bool) ([]string, error) {
	unlock := s.locks.Lock(name)
	defer unlock()

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil, ErrStoreClosed
	}
	existing, ok := s.logs[name]
	if ok && existing.bound > 0 {
		s.mutex.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrLogInUse, name)
	}
	if ok && destroy {
		delete(s.logs, name)
	}
	s.mutex.Unlock()

	sequences, err := logfile.GetSequences(s.directory, name)
	if err != nil {
		return nil, err
	}

	// Without destroy, the file currently written to is kept. For logs not opened by this store, that is the newest
	// file.
	keepFrom := uint64(0)
	switch {
	case destroy && ok:
		writer := existing.writer
		existing.writer = nil
		if writer != nil {
			if err := writer.Close(); err != nil {
				return nil, err
			}
		}
	case !destroy && ok:
		keepFrom = existing.writer.Sequence()
	case !destroy && len(sequences) > 0:
		keepFrom = sequences[len(sequences)-1]
	}

	var removed []string
	for _, sequence := range sequences {
		if keepFrom != 0 && sequence >= keepFrom {
			break
		}
		filePath := logfile.FilePath(s.directory, name, sequence)
		if err := os.Remove(filePath); err != nil {
			return removed, fmt.Errorf("removing the log file %q: %w", filePath, err)
		}
		removed = append(removed, filePath)
		PurgedFileTotal.Inc()
	}
	if len(removed) > 0 || destroy {
		s.logger.Info("Purged log", "log", name, "files", len(removed), "destroy", destroy)
	}
	return removed, nil
}

// applyRetention deletes the oldest files of the log which were last modified before the retention. Deletion stops
// at the first file which is not expired and never touches the file with the active sequence number or later ones.
// The caller must hold the lock of the name.
func (s *Store) applyRetention(name string, active uint64) ([]string, error) {
	if s.retention <= 0 {
		return nil, nil
	}
	sequences, err := logfile.GetSequences(s.directory, name)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-s.retention)
	var removed []string
	for _, sequence := range sequences {
		if sequence >= active {
			break
		}
		filePath := logfile.FilePath(s.directory, name, sequence)
		fileInfo, err := os.Stat(filePath)
		if err != nil {
			return removed, fmt.Errorf("reading the modification time of the log file %q: %w", filePath, err)
		}
		if !fileInfo.ModTime().Before(cutoff) {
			break
		}
		if err := os.Remove(filePath); err != nil {
			return removed, fmt.Errorf("removing the expired log file %q: %w", filePath, err)
		}
		removed = append(removed, filePath)
		RetentionDeletedFileTotal.Inc()
	}
	if len(removed) > 0 {
		s.logger.Info("Deleted expired log files", "log", name, "count", len(removed))
	}
	return removed, nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: log name must not be empty", ErrInvalidArgument)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: log name %q must not contain path separators", ErrInvalidArgument, name)
	}
	return nil
}
