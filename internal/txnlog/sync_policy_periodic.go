package txnlog

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

const (
	// DefaultSyncAfterEntryCount is the number of entries after which the periodic sync policy syncs by default.
	DefaultSyncAfterEntryCount = 1000

	// DefaultSyncEvery is the interval in which the periodic sync policy syncs by default.
	DefaultSyncEvery = time.Second
)

// SyncPolicyPeriodic is flushing log files to disk after having written some number of entries, or after some time
// interval has passed.
// As it starts a go routine, it carries its own mutex for synchronizing with that go routine.
type SyncPolicyPeriodic struct {
	mutex sync.Mutex

	syncAfterEntryCount int
	syncEvery           time.Duration
	logger              logr.Logger

	file              Syncer
	syncTicker        *time.Ticker
	shutdown          chan struct{}
	shutdownWaitGroup sync.WaitGroup

	unsyncedEntryCount int
}

// SyncPolicyPeriodic implements SyncPolicy.
var _ SyncPolicy = (*SyncPolicyPeriodic)(nil)

// NewSyncPolicyPeriodic creates a new SyncPolicyPeriodic.
func NewSyncPolicyPeriodic(syncAfterEntryCount int, syncEvery time.Duration) *SyncPolicyPeriodic {
	return &SyncPolicyPeriodic{
		syncAfterEntryCount: max(syncAfterEntryCount, 1),
		syncEvery:           max(syncEvery, 100*time.Microsecond),
		logger:              logr.Discard(),
	}
}

// WithLogger sets the logger failures of the background sync are reported to.
func (s *SyncPolicyPeriodic) WithLogger(logger logr.Logger) *SyncPolicyPeriodic {
	s.logger = logger
	return s
}

func (s *SyncPolicyPeriodic) Startup(file Syncer) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.file = file
	s.syncTicker = time.NewTicker(s.syncEvery)
	s.shutdown = make(chan struct{})
	s.shutdownWaitGroup.Add(1)
	go s.backgroundTask(s.syncTicker, s.shutdown)
	return nil
}

func (s *SyncPolicyPeriodic) EntriesAppended(count int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.unsyncedEntryCount += count
	if s.unsyncedEntryCount < s.syncAfterEntryCount {
		return nil
	}

	if err := s.syncNow(); err != nil {
		return err
	}
	return nil
}

func (s *SyncPolicyPeriodic) Shutdown() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.file == nil {
		return nil
	}

	s.syncTicker.Stop()
	close(s.shutdown)

	// We need to unlock the mutex while waiting for the shutdown, otherwise we run the risk of a deadlock.
	s.mutex.Unlock()
	s.shutdownWaitGroup.Wait()
	s.mutex.Lock()

	// Rotation closes the file in the middle of a transaction, so pending entries are synced regardless of the count.
	s.unsyncedEntryCount = max(s.unsyncedEntryCount, 1)
	err := s.syncNow()
	s.file = nil
	return err
}

func (s *SyncPolicyPeriodic) String() string {
	return "periodic"
}

func (s *SyncPolicyPeriodic) backgroundTask(ticker *time.Ticker, shutdown chan struct{}) {
	defer s.shutdownWaitGroup.Done()
	for {
		select {
		case <-ticker.C:
			s.periodicSync()
		case <-shutdown:
			return
		}
	}
}

func (s *SyncPolicyPeriodic) periodicSync() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.syncNow(); err != nil {
		s.logger.Error(err, "Periodic sync failed")
		return
	}
}

func (s *SyncPolicyPeriodic) syncNow() error {
	if s.unsyncedEntryCount == 0 || s.file == nil {
		return nil
	}

	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("syncing the log file: %w", err)
	}
	s.unsyncedEntryCount = 0
	return nil
}
