package logfile

import (
	"errors"
	"fmt"

	"github.com/backbone81/txnlog/internal/encoding"
)

// BlockInfo describes a single block of a log file.
type BlockInfo struct {
	// Index is the position of the block within the file, starting at zero.
	Index int64

	// Offset is the offset in bytes from the start of the file where the block starts.
	Offset int64

	// Size is the number of bytes of the block present in the file, including the block header.
	Size int

	// Header is the block header.
	Header encoding.BlockHeader
}

// LogInfo is the content of a single log file.
type LogInfo struct {
	// FilePath is the path of the file.
	FilePath string

	// Sequence is the sequence number of the file.
	Sequence uint64

	// FileSize is the size of the file in bytes.
	FileSize int64

	// Header is the file header.
	Header encoding.FileHeader

	// Blocks holds every complete block header of the file.
	Blocks []BlockInfo

	// Entries holds every entry which is completed within the file. Entries which started in an earlier file are
	// not part of it.
	Entries []Entry

	// OrphanBlocks is the number of continuation blocks at the start of the file which were skipped because their
	// entry began in an earlier file.
	OrphanBlocks int

	// Incomplete reports if the file ends within an entry. The entry either continues in the next file or was cut
	// short by a crash.
	Incomplete bool

	// Truncated reports if the file ends within a block header.
	Truncated bool
}

// ParseFile reads the log file at the given path with all its blocks and entries.
//
// A file which ends within a block header or an entry is not an error, as this is what a crash leaves behind. Those
// conditions are reported in LogInfo instead. Returns ErrCorruptFormat when the structure of the file is invalid.
func ParseFile(filePath string) (LogInfo, error) {
	reader, err := Open(filePath)
	if err != nil {
		return LogInfo{}, err
	}
	defer func() {
		_ = reader.Close()
	}()

	result, err := Parse(reader)
	if err != nil {
		return result, fmt.Errorf("parsing the log file %q: %w", filePath, err)
	}
	return result, nil
}

// Parse reads all blocks and entries from the given reader.
func Parse(reader *Reader) (LogInfo, error) {
	result := LogInfo{
		FilePath: reader.FilePath(),
		Sequence: reader.Sequence(),
		FileSize: reader.FileSize(),
		Header:   reader.Header(),
	}

	assembler := NewAssembler()
	buffer := make([]byte, encoding.BlockSize)
	blockCount := reader.BlockCount()
	for index := range blockCount {
		block, err := reader.ReadBlock(index, buffer)
		if errors.Is(err, encoding.ErrTruncatedRead) && index == blockCount-1 {
			result.Truncated = true
			break
		}
		if err != nil {
			return result, err
		}
		result.Blocks = append(result.Blocks, BlockInfo{
			Index:  block.Index,
			Offset: block.Offset,
			Size:   encoding.BlockHeaderSize + len(block.Payload),
			Header: block.Header,
		})

		entryCount := len(result.Entries)
		result.Entries, err = assembler.Feed(result.Sequence, block, result.Entries)
		if err != nil {
			return result, err
		}
		for _, entry := range result.Entries[entryCount:] {
			ReadEntryTotal.Inc()
			ReadEntryBytes.Add(float64(len(entry.Data)))
		}
	}
	result.OrphanBlocks = assembler.OrphanBlocks()
	result.Incomplete = assembler.State() != AssemblerStateIdle
	return result, nil
}
