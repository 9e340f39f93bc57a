package utils

import (
	"bytes"
)

// LogFileRecorder provides a stub for a log file which records what is written to it in memory. It allows us to use a
// log file writer to prepare a buffer which can then be served by LogFileMemory to the readers.
type LogFileRecorder struct {
	bytes.Buffer

	// SyncCount counts the calls to Sync.
	SyncCount int
}

func (s *LogFileRecorder) Close() error {
	return nil
}

func (s *LogFileRecorder) Sync() error {
	s.SyncCount++
	return nil
}

func (s *LogFileRecorder) Name() string {
	return "in-memory-recorder"
}
