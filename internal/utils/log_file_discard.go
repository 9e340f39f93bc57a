package utils

// LogFileDiscard provides a stub for a log file which discards all data. It allows us to run large scale benchmarks
// without filling up the disk or memory.
type LogFileDiscard struct{}

func (s *LogFileDiscard) Write(p []byte) (int, error) {
	return len(p), nil
}

func (s *LogFileDiscard) Close() error {
	return nil
}

func (s *LogFileDiscard) Sync() error {
	return nil
}

func (s *LogFileDiscard) Name() string {
	return "in-memory-discard"
}
