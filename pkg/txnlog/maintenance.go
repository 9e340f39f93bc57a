package txnlog

import (
	"github.com/backbone81/txnlog/internal/logfile"
	inttxnlog "github.com/backbone81/txnlog/internal/txnlog"
)

// Recover cuts the named log back to the last completely written transaction. Store does this when a log is first
// used, so calling it is only necessary for maintenance.
var Recover = inttxnlog.Recover

// RecoveryResult describes the state of a log after recovery.
type RecoveryResult = inttxnlog.RecoveryResult

// LogInfo is the content of a single log file.
type LogInfo = logfile.LogInfo

// ParseFile reads the log file at the given path with all its blocks and entries.
var ParseFile = logfile.ParseFile

// FilePath returns the path of the log file with the given name and sequence number in the directory.
var FilePath = logfile.FilePath

// GetSequences returns the sequence numbers of all files of the named log, sorted in ascending order.
var GetSequences = logfile.GetSequences
