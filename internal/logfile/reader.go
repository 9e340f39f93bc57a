package logfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/backbone81/txnlog/internal/encoding"
	"github.com/backbone81/txnlog/internal/utils"
)

// ReaderFile is an interface which needs to be implemented by the file to read from.
type ReaderFile interface {
	io.ReaderAt
	io.Closer
	Name() string
}

// Reader provides positional access to the blocks of a single log file. Blocks are read with positional reads, which
// allows binary searching over the blocks of a file without reading the blocks in between.
//
// Instances of Reader are NOT safe to use concurrently. You need to provide external synchronization.
type Reader struct {
	noCopy utils.NoCopy

	// The log file to read from.
	file ReaderFile

	// The path of the file.
	filePath string

	// The sequence number of the file. Zero when the file name does not carry a sequence number.
	sequence uint64

	// The header of the log file.
	header encoding.FileHeader

	// The total size of the file in bytes at the time it was opened. Bytes appended afterward are not visible.
	fileSize int64
}

// Block is a single block of a log file.
type Block struct {
	// Index is the position of the block within the file, starting at zero.
	Index int64

	// Offset is the offset in bytes from the start of the file where the block starts.
	Offset int64

	// Header is the block header.
	Header encoding.BlockHeader

	// Payload is the part of the block following the block header. It is shorter than BlockPayloadSize for the
	// trailing block of a file.
	Payload []byte
}

// PayloadOffset returns the offset in bytes from the start of the file where the payload of the block starts.
func (b Block) PayloadOffset() int64 {
	return b.Offset + encoding.BlockHeaderSize
}

// OpenLogFile opens the log file with the given name and sequence number in the directory for reading.
//
// To avoid resources leaking, the returned Reader needs to be closed by calling Close().
func OpenLogFile(directory string, name string, sequence uint64) (*Reader, error) {
	return Open(FilePath(directory, name, sequence))
}

// Open opens the log file at the given path for reading.
//
// To avoid resources leaking, the returned Reader needs to be closed by calling Close().
// Returns an error if the file cannot be opened, read from or the header is malformed.
func Open(filePath string) (*Reader, error) {
	reader, err := open(filePath)
	if err != nil {
		return nil, fmt.Errorf("the log file %q: %w", filePath, err)
	}
	return reader, nil
}

func open(filePath string) (*Reader, error) {
	file, err := os.Open(filePath) //nolint:gosec // We can not validate paths in a library.
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	fileInfo, err := file.Stat()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("reading file size: %w", err), file.Close())
	}

	var sequence uint64
	if _, fileSequence, ok := ParseFileName(path.Base(filePath)); ok {
		sequence = fileSequence
	}

	reader, err := NewReader(file, NewReaderConfig{
		FilePath: filePath,
		Sequence: sequence,
		FileSize: fileInfo.Size(),
	})
	if err != nil {
		return nil, errors.Join(err, file.Close())
	}
	return reader, nil
}

// NewReaderConfig is the configuration required for a call to NewReader.
type NewReaderConfig struct {
	// FilePath is the path of the file. Defaults to the name of the file.
	FilePath string

	// Sequence is the sequence number of the file.
	Sequence uint64

	// FileSize is the total size in bytes of the log file.
	FileSize int64
}

// NewReader creates a Reader from a file which is already open. The file header is read and validated.
func NewReader(file ReaderFile, config NewReaderConfig) (*Reader, error) {
	var buffer [encoding.FileHeaderSize]byte
	header, err := encoding.ReadFileHeader(io.NewSectionReader(file, 0, config.FileSize), buffer[:])
	if err != nil {
		return nil, err
	}

	filePath := config.FilePath
	if filePath == "" {
		filePath = file.Name()
	}
	return &Reader{
		file:     file,
		filePath: filePath,
		sequence: config.Sequence,
		header:   header,
		fileSize: config.FileSize,
	}, nil
}

// FilePath returns the file path of the file this reader is reading from.
func (r *Reader) FilePath() string {
	return r.filePath
}

// Sequence returns the sequence number of the file.
func (r *Reader) Sequence() uint64 {
	return r.sequence
}

// Header returns the file header.
func (r *Reader) Header() encoding.FileHeader {
	return r.header
}

// FileSize returns the size of the file in bytes.
func (r *Reader) FileSize() int64 {
	return r.fileSize
}

// BlockCount returns the number of blocks in the file, including a partial trailing block.
func (r *Reader) BlockCount() int64 {
	return BlockCountForFileSize(r.fileSize)
}

// BlockHeader reads the header of the block with the given index. Returns ErrTruncatedRead if the file ends within
// the block header.
func (r *Reader) BlockHeader(index int64) (encoding.BlockHeader, error) {
	var buffer [encoding.BlockHeaderSize]byte
	n, err := r.readAt(buffer[:], BlockOffset(index))
	if err != nil {
		return encoding.BlockHeader{}, err
	}
	return encoding.DecodeBlockHeader(buffer[:n])
}

// ReadBlock reads the block with the given index. The buffer must hold at least BlockSize bytes, the payload of the
// returned block refers to it. Returns ErrTruncatedRead if the file ends within the block header.
func (r *Reader) ReadBlock(index int64, buffer []byte) (Block, error) {
	offset := BlockOffset(index)
	n, err := r.readAt(buffer[:encoding.BlockSize], offset)
	if err != nil {
		return Block{}, err
	}
	header, err := encoding.DecodeBlockHeader(buffer[:n])
	if err != nil {
		return Block{}, fmt.Errorf("block %d: %w", index, err)
	}
	return Block{
		Index:   index,
		Offset:  offset,
		Header:  header,
		Payload: buffer[encoding.BlockHeaderSize:n],
	}, nil
}

// readAt reads as many bytes as available up to the length of the buffer, limited by the file size seen at open.
func (r *Reader) readAt(buffer []byte, offset int64) (int, error) {
	if offset >= r.fileSize {
		return 0, fmt.Errorf("%w: offset %d is beyond the end of the file", encoding.ErrTruncatedRead, offset)
	}
	buffer = buffer[:min(int64(len(buffer)), r.fileSize-offset)]
	n, err := r.file.ReadAt(buffer, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("reading at offset %d: %w", offset, err)
	}
	return n, nil
}

// Close closes the file the Reader is reading from.
func (r *Reader) Close() error {
	if err := r.file.Close(); err != nil {
		return err
	}
	return nil
}
