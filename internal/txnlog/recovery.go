package txnlog

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-logr/logr"

	"github.com/backbone81/txnlog/internal/encoding"
	"github.com/backbone81/txnlog/internal/logfile"
)

// RecoveryResult describes the state of a log after recovery.
type RecoveryResult struct {
	// Resume is the position the next append continues at. The sequence is zero when the log has no files.
	Resume logfile.Position

	// TruncatedBytes is the number of bytes cut off from the file at the resume position.
	TruncatedBytes int64

	// RemovedFiles holds the paths of the files following the resume position which were deleted.
	RemovedFiles []string
}

// Recover brings the log with the given name back into a state which can be appended to.
//
// A crash or a failed write can leave the tail of a log behind with an incomplete block header, an incomplete entry,
// or complete entries of a transaction whose last entry is missing. Recover cuts off everything starting with the
// first entry of such a transaction, so that a transaction is either completely in the log or not at all.
//
// Files are scanned backward from the newest file until the scanned range contains the last entry of a transaction.
// Returns ErrCorruptFormat when the scanned files are inconsistent.
func Recover(directory string, name string, logger logr.Logger) (RecoveryResult, error) {
	sequences, err := logfile.GetSequences(directory, name)
	if err != nil {
		return RecoveryResult{}, err
	}
	if len(sequences) == 0 {
		return RecoveryResult{}, nil
	}

	lastSequence := sequences[len(sequences)-1]
	for first := len(sequences) - 1; ; first-- {
		scan, err := scanForRecovery(directory, name, sequences[first:])
		if err != nil {
			return RecoveryResult{}, err
		}
		if first > 0 && !scan.sawLastEntry {
			// The scanned range could start in the middle of a transaction.
			continue
		}
		return truncateLog(directory, name, scan.resumePosition(lastSequence), logger)
	}
}

// recoveryScan is the outcome of scanning a range of files of a log.
type recoveryScan struct {
	// Reports if any entry with the last entry flag was seen.
	sawLastEntry bool

	// The position of the first entry of a transaction which has no last entry.
	incomplete    logfile.Position
	hasIncomplete bool

	// The position of a block header which was cut short.
	cut    logfile.Position
	hasCut bool

	// The position after the last complete entry or skipped orphan block.
	end    logfile.Position
	hasEnd bool
}

func (s recoveryScan) resumePosition(lastSequence uint64) logfile.Position {
	switch {
	case s.hasIncomplete && (!s.hasCut || s.incomplete.Less(s.cut)):
		return s.incomplete
	case s.hasCut:
		return s.cut
	case s.hasEnd && s.end.Sequence == lastSequence:
		return s.end
	default:
		return logfile.Position{Sequence: lastSequence, Offset: encoding.FileHeaderSize}
	}
}

func scanForRecovery(directory string, name string, sequences []uint64) (recoveryScan, error) {
	var result recoveryScan
	assembler := logfile.NewAssembler()
	buffer := make([]byte, encoding.BlockSize)
	var entries []logfile.Entry

	for _, sequence := range sequences {
		cut, err := scanFileForRecovery(directory, name, sequence, assembler, buffer, entries, &result)
		if err != nil {
			return result, err
		}
		if cut {
			break
		}
	}

	if pending, ok := assembler.Pending(); ok && !result.hasIncomplete {
		result.incomplete = pending
		result.hasIncomplete = true
	}
	result.end, result.hasEnd = assembler.End()
	return result, nil
}

// scanFileForRecovery feeds all blocks of a single file to the assembler. It reports true when the file ends within a
// block header, which makes it the last file to consider.
func scanFileForRecovery(
	directory string,
	name string,
	sequence uint64,
	assembler *logfile.Assembler,
	buffer []byte,
	entries []logfile.Entry,
	result *recoveryScan,
) (bool, error) {
	reader, err := logfile.OpenLogFile(directory, name, sequence)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = reader.Close()
	}()

	blockCount := reader.BlockCount()
	for index := range blockCount {
		block, err := reader.ReadBlock(index, buffer)
		if errors.Is(err, encoding.ErrTruncatedRead) && index == blockCount-1 {
			result.cut = logfile.Position{Sequence: sequence, Offset: logfile.BlockOffset(index)}
			result.hasCut = true
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("reading the log file %q: %w", reader.FilePath(), err)
		}

		entries, err = assembler.Feed(sequence, block, entries[:0])
		if err != nil {
			return false, fmt.Errorf("reading the log file %q: %w", reader.FilePath(), err)
		}
		for _, entry := range entries {
			if !result.hasIncomplete {
				result.incomplete = entry.Position
				result.hasIncomplete = true
			}
			if entry.Header.Flags.IsLastEntry() {
				result.sawLastEntry = true
				result.hasIncomplete = false
			}
		}
	}
	return false, nil
}

// truncateLog cuts off the log at the given position. Files with a higher sequence number are deleted, newest first.
func truncateLog(directory string, name string, position logfile.Position, logger logr.Logger) (RecoveryResult, error) {
	result := RecoveryResult{
		Resume: position,
	}
	sequences, err := logfile.GetSequences(directory, name)
	if err != nil {
		return result, err
	}
	for i := len(sequences) - 1; i >= 0 && sequences[i] > position.Sequence; i-- {
		filePath := logfile.FilePath(directory, name, sequences[i])
		if err := os.Remove(filePath); err != nil {
			return result, fmt.Errorf("removing the log file %q: %w", filePath, err)
		}
		result.RemovedFiles = append(result.RemovedFiles, filePath)
	}

	filePath := logfile.FilePath(directory, name, position.Sequence)
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return result, fmt.Errorf("reading the size of the log file %q: %w", filePath, err)
	}
	if fileInfo.Size() > position.Offset {
		if err := os.Truncate(filePath, position.Offset); err != nil {
			return result, fmt.Errorf("truncating the log file %q to %d bytes: %w", filePath, position.Offset, err)
		}
		result.TruncatedBytes = fileInfo.Size() - position.Offset
		RecoveryTruncatedBytes.Add(float64(result.TruncatedBytes))
	}

	if result.TruncatedBytes > 0 || len(result.RemovedFiles) > 0 {
		logger.Info("Recovered log",
			"log", name,
			"resume", position.String(),
			"truncatedBytes", result.TruncatedBytes,
			"removedFiles", len(result.RemovedFiles),
		)
	}
	return result, nil
}
