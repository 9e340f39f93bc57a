// Package arena provides mutual exclusion per name.
//
// Every name gets its own mutex, so work on unrelated names never contends. Mutexes only exist while they are held
// or waited for, which keeps the arena small no matter how many names it has seen.
package arena

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultShardCount is the number of shards an arena created with New is split into.
const DefaultShardCount = 32

// Arena hands out one mutex per name. The zero value is not usable, create instances with New.
//
// Instances of Arena are safe to use concurrently.
type Arena struct {
	shards []shard
}

type shard struct {
	mutex sync.Mutex
	locks map[string]*namedLock
}

type namedLock struct {
	mutex sync.Mutex

	// The number of goroutines holding or waiting for the mutex. Protected by the mutex of the shard.
	refs int
}

// New creates a new Arena with DefaultShardCount shards.
func New() *Arena {
	return NewWithShards(DefaultShardCount)
}

// NewWithShards creates a new Arena with the given number of shards. Names are distributed over the shards by their
// hash, the shards only protect the bookkeeping of the mutexes.
func NewWithShards(shardCount int) *Arena {
	shards := make([]shard, max(shardCount, 1))
	for i := range shards {
		shards[i].locks = make(map[string]*namedLock)
	}
	return &Arena{
		shards: shards,
	}
}

// Lock blocks until the mutex for the given name is acquired. The returned function releases the mutex and must be
// called exactly once.
func (a *Arena) Lock(name string) func() {
	s := a.shard(name)

	s.mutex.Lock()
	lock, ok := s.locks[name]
	if !ok {
		lock = &namedLock{}
		s.locks[name] = lock
	}
	lock.refs++
	s.mutex.Unlock()

	lock.mutex.Lock()
	return s.unlocker(name, lock)
}

// Len returns the number of names whose mutex is currently held or waited for.
func (a *Arena) Len() int {
	result := 0
	for i := range a.shards {
		s := &a.shards[i]
		s.mutex.Lock()
		result += len(s.locks)
		s.mutex.Unlock()
	}
	return result
}

// unlocker returns the function releasing the held lock of the name.
func (s *shard) unlocker(name string, lock *namedLock) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			lock.mutex.Unlock()

			s.mutex.Lock()
			defer s.mutex.Unlock()
			lock.refs--
			if lock.refs == 0 {
				delete(s.locks, name)
			}
		})
	}
}

func (a *Arena) shard(name string) *shard {
	return &a.shards[xxhash.Sum64String(name)%uint64(len(a.shards))]
}
