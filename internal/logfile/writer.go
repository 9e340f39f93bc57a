package logfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/backbone81/txnlog/internal/encoding"
	"github.com/backbone81/txnlog/internal/utils"
)

var (
	ErrBlockNotExhausted = errors.New("the current block still has space left")
	ErrFileFull          = errors.New("the log file holds its maximum number of blocks")
	ErrNoBlockSpace      = errors.New("not enough space left in the current block")
)

// WriterFile is an interface which needs to be implemented by the file to write to.
type WriterFile interface {
	io.WriteCloser
	Sync() error
	Name() string
}

// Writer provides functionality for writing blocks to a single log file. It only provides the block level primitives.
// Splitting entries over blocks and files is the job of the caller.
//
// All writes are collected in memory and written to the file on Flush.
//
// Instances of Writer are NOT safe to use concurrently. You need to provide external synchronization.
type Writer struct {
	noCopy utils.NoCopy

	// The path to the file the writer is writing to.
	filePath string

	// The file the writer is writing data to.
	file WriterFile

	// The sequence number of the file.
	sequence uint64

	// The logical size of the file in bytes, including bytes which are buffered but not yet flushed.
	offset int64

	// The maximum number of blocks the file may hold.
	maxBlocks int64

	// This buffer is used to combine multiple individual writes into a single file write.
	writeBuffer *bytes.Buffer

	// This is a temporary buffer for encoding headers. It helps with reducing the amount of memory allocations.
	scratchBuffer [max(encoding.FileHeaderSize, encoding.BlockHeaderSize, encoding.TxnHeaderSize)]byte
}

// MaxBlocksForFileSize returns the number of blocks a file with the given maximum size can hold. Every file holds at
// least one block, so a maximum file size below FileHeaderSize + BlockSize is effectively raised to that value.
func MaxBlocksForFileSize(maxFileSize int64) int64 {
	return max((maxFileSize-encoding.FileHeaderSize)/encoding.BlockSize, 1)
}

// BlockCountForFileSize returns the number of blocks, including a partial trailing block, a file of the given size
// holds.
func BlockCountForFileSize(fileSize int64) int64 {
	if fileSize <= encoding.FileHeaderSize {
		return 0
	}
	return (fileSize - encoding.FileHeaderSize + encoding.BlockSize - 1) / encoding.BlockSize
}

// BlockOffset returns the offset in bytes from the start of the file where the block with the given index starts.
func BlockOffset(index int64) int64 {
	return encoding.FileHeaderSize + index*encoding.BlockSize
}

// CreateFile creates a new log file in the given directory. It will create the new file with the file extension
// ".new" appended to the file name and rename it after the header has been written to. This ensures that the new
// log file is only visible in the directory when the header was correctly written and flushed to stable storage.
func CreateFile(directory string, name string, sequence uint64, maxBlocks int64) (*Writer, error) {
	filePath := FilePath(directory, name, sequence)
	writer, err := createFile(filePath, sequence, maxBlocks)
	if err != nil {
		return nil, fmt.Errorf("creating the log file %q: %w", filePath, err)
	}
	return writer, nil
}

func createFile(filePath string, sequence uint64, maxBlocks int64) (*Writer, error) {
	// Remove any temporary log file which might be there from an earlier failure.
	newFilePath := filePath + TemporaryFileExtension
	if err := os.Remove(newFilePath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing temporary file: %w", err)
	}

	file, err := os.OpenFile(newFilePath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o664) //nolint:gosec // We can not validate paths in a library.
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}

	var buffer [encoding.FileHeaderSize]byte
	if err := encoding.WriteFileHeader(file, buffer[:], encoding.DefaultFileHeader); err != nil {
		return nil, errors.Join(err, file.Close())
	}
	if err := file.Sync(); err != nil {
		return nil, errors.Join(fmt.Errorf("flushing the file header: %w", err), file.Close())
	}

	renamedFile, err := renameFile(file, encoding.FileHeaderSize, filePath)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	file = renamedFile

	return NewWriter(file, NewWriterConfig{
		FilePath:  filePath,
		Sequence:  sequence,
		Offset:    encoding.FileHeaderSize,
		MaxBlocks: maxBlocks,
	}), nil
}

// OpenFile opens an existing log file for appending. The file is truncated to the given offset first, which allows
// the caller to cut off an incomplete tail left behind by a crash.
func OpenFile(directory string, name string, sequence uint64, offset int64, maxBlocks int64) (*Writer, error) {
	filePath := FilePath(directory, name, sequence)
	file, err := os.OpenFile(filePath, os.O_RDWR, 0) //nolint:gosec // We can not validate paths in a library.
	if err != nil {
		return nil, fmt.Errorf("opening the log file %q: %w", filePath, err)
	}
	if err := file.Truncate(offset); err != nil {
		return nil, errors.Join(fmt.Errorf("truncating the log file %q to %d bytes: %w", filePath, offset, err), file.Close())
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, errors.Join(fmt.Errorf("seeking in the log file %q: %w", filePath, err), file.Close())
	}
	return NewWriter(file, NewWriterConfig{
		FilePath:  filePath,
		Sequence:  sequence,
		Offset:    offset,
		MaxBlocks: maxBlocks,
	}), nil
}

// NewWriterConfig is the configuration required for a call to NewWriter.
type NewWriterConfig struct {
	// FilePath is the path of the file. Defaults to the name of the file.
	FilePath string

	// Sequence is the sequence number of the file.
	Sequence uint64

	// Offset is the current size of the file in bytes. Must be at least the size of the file header.
	Offset int64

	// MaxBlocks is the maximum number of blocks the file may hold.
	MaxBlocks int64
}

// NewWriter creates a Writer from a file which is already open and positioned at the given offset.
func NewWriter(file WriterFile, config NewWriterConfig) *Writer {
	filePath := config.FilePath
	if filePath == "" {
		filePath = file.Name()
	}
	return &Writer{
		filePath:    filePath,
		file:        file,
		sequence:    config.Sequence,
		offset:      max(config.Offset, encoding.FileHeaderSize),
		maxBlocks:   max(config.MaxBlocks, 1),
		writeBuffer: bytes.NewBuffer(make([]byte, 0, encoding.BlockSize)),
	}
}

// FilePath returns the file path of the file this writer is writing to.
func (w *Writer) FilePath() string {
	return w.filePath
}

// Sequence returns the sequence number of the file.
func (w *Writer) Sequence() uint64 {
	return w.sequence
}

// Offset returns the logical size of the file in bytes, including buffered bytes.
func (w *Writer) Offset() int64 {
	return w.offset
}

// BlockCount returns the number of blocks in the file, including a partial trailing block.
func (w *Writer) BlockCount() int64 {
	return BlockCountForFileSize(w.offset)
}

// BlockRemaining returns the number of bytes left in the current block. It is zero when no block was started yet or
// the current block is exhausted.
func (w *Writer) BlockRemaining() int {
	if w.offset <= encoding.FileHeaderSize {
		return 0
	}
	used := (w.offset - encoding.FileHeaderSize) % encoding.BlockSize
	return int((encoding.BlockSize - used) % encoding.BlockSize)
}

// Full reports if the file can not take another block.
func (w *Writer) Full() bool {
	return w.BlockCount() >= w.maxBlocks
}

// PadBlock fills the remainder of the current block with zero bytes.
func (w *Writer) PadBlock() {
	remaining := w.BlockRemaining()
	if remaining == 0 {
		return
	}
	w.offset += int64(remaining)
	var zeros [encoding.TxnHeaderSize]byte
	for remaining > 0 {
		n := min(remaining, len(zeros))
		w.writeBuffer.Write(zeros[:n])
		remaining -= n
	}
}

// StartBlock begins a new block with the given header. The current block must be exhausted.
func (w *Writer) StartBlock(header encoding.BlockHeader) error {
	if w.BlockRemaining() != 0 {
		return ErrBlockNotExhausted
	}
	if w.Full() {
		return ErrFileFull
	}
	encoding.PutBlockHeader(w.scratchBuffer[:], header)
	w.writeBuffer.Write(w.scratchBuffer[:encoding.BlockHeaderSize])
	w.offset += encoding.BlockHeaderSize
	return nil
}

// WriteTxnHeader writes the transaction header into the current block. The header must fit into the block.
func (w *Writer) WriteTxnHeader(header encoding.TxnHeader) error {
	if w.BlockRemaining() < encoding.TxnHeaderSize {
		return ErrNoBlockSpace
	}
	encoding.PutTxnHeader(w.scratchBuffer[:], header)
	w.writeBuffer.Write(w.scratchBuffer[:encoding.TxnHeaderSize])
	w.offset += encoding.TxnHeaderSize
	return nil
}

// WriteData writes as many bytes of data as fit into the current block and returns the number of bytes written.
func (w *Writer) WriteData(data []byte) int {
	n := min(len(data), w.BlockRemaining())
	w.writeBuffer.Write(data[:n])
	w.offset += int64(n)
	return n
}

// Buffered returns the number of bytes not yet written to the file.
func (w *Writer) Buffered() int {
	return w.writeBuffer.Len()
}

// Flush writes all buffered bytes to the file.
func (w *Writer) Flush() error {
	if w.writeBuffer.Len() == 0 {
		return nil
	}
	n, err := w.file.Write(w.writeBuffer.Bytes())
	w.writeBuffer.Next(n)
	if err != nil {
		return fmt.Errorf("writing to the log file %q: %w", w.filePath, err)
	}
	return nil
}

// Sync flushes the content of the file to stable storage.
func (w *Writer) Sync() error {
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("syncing the log file %q: %w", w.filePath, err)
	}
	return nil
}

// Close writes all buffered bytes to the file and closes it.
func (w *Writer) Close() error {
	flushErr := w.Flush()
	closeErr := w.file.Close()
	return errors.Join(flushErr, closeErr)
}
