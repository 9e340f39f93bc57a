package utils

import (
	"errors"
)

// ErrInjected is the error returned by LogFileFailing.
var ErrInjected = errors.New("injected I/O error")

// LogFileFailing provides a stub for a log file which accepts FailAfter bytes and fails every write afterward. It
// allows us to test the handling of I/O errors in the middle of an append.
type LogFileFailing struct {
	LogFileRecorder

	// FailAfter is the number of bytes which are accepted before writes start failing.
	FailAfter int

	// FailSync lets every call to Sync fail.
	FailSync bool
}

func (s *LogFileFailing) Write(p []byte) (int, error) {
	remaining := max(s.FailAfter-s.Len(), 0)
	if len(p) <= remaining {
		return s.LogFileRecorder.Write(p)
	}
	n, _ := s.LogFileRecorder.Write(p[:remaining])
	return n, ErrInjected
}

func (s *LogFileFailing) Sync() error {
	if s.FailSync {
		return ErrInjected
	}
	return s.LogFileRecorder.Sync()
}
