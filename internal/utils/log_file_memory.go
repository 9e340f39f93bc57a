package utils

import (
	"bytes"
)

// LogFileMemory provides a read-only stub for a log file held in memory. It serves positional reads the same way
// an *os.File does.
type LogFileMemory struct {
	*bytes.Reader
}

// NewLogFileMemory returns a LogFileMemory serving the given data.
func NewLogFileMemory(data []byte) *LogFileMemory {
	return &LogFileMemory{
		Reader: bytes.NewReader(data),
	}
}

func (s *LogFileMemory) Close() error {
	return nil
}

func (s *LogFileMemory) Name() string {
	return "in-memory"
}
