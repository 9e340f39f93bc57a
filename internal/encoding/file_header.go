package encoding

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrCorruptFormat is returned when the bytes on disk do not describe a valid log structure.
	ErrCorruptFormat = errors.New("corrupt transaction log format")

	// ErrTruncatedRead is returned when fewer bytes are available than a structure needs. This happens at the tail of
	// a log file which was cut short by a crash and is therefore distinguishable from ErrCorruptFormat.
	ErrTruncatedRead = errors.New("truncated transaction log read")

	ErrFileHeaderInvalidMagicBytes  = fmt.Errorf("%w: invalid file header magic bytes", ErrCorruptFormat)
	ErrFileHeaderUnsupportedVersion = fmt.Errorf("%w: unsupported file header version", ErrCorruptFormat)
)

// FileHeader is located at the start of every log file.
type FileHeader struct {
	// These are the magic bytes to identify a log file. This must always be "TXNL". Encoded as four bytes.
	Magic [4]byte

	// The version of the file format. Encoded as two bytes.
	Version uint16
}

// FileHeaderSize provides the size in bytes of the file header.
const FileHeaderSize = 4 + 2

// Magic holds the magic bytes expected at the start of the file.
var Magic = [4]byte{'T', 'X', 'N', 'L'}

// FormatVersion provides the currently supported file format version.
const FormatVersion = 1

// DefaultFileHeader provides the header every new log file is written with.
var DefaultFileHeader = FileHeader{
	Magic:   Magic,
	Version: FormatVersion,
}

// WriteFileHeader writes the file header to the writer.
// The buffer is required to avoid allocations and should be big enough to hold the full header temporarily.
func WriteFileHeader(writer io.Writer, buffer []byte, header FileHeader) error {
	copy(buffer[:4], header.Magic[:])
	Endian.PutUint16(buffer[4:6], header.Version)
	if _, err := writer.Write(buffer[:FileHeaderSize]); err != nil {
		return fmt.Errorf("writing file header: %w", err)
	}
	return nil
}

// ReadFileHeader reads the file header from the reader.
// The buffer is required to avoid allocations and should be big enough to hold the full header temporarily.
// Returns ErrTruncatedRead when the reader ends early and ErrCorruptFormat when magic bytes or version do not match.
func ReadFileHeader(reader io.Reader, buffer []byte) (FileHeader, error) {
	if _, err := io.ReadFull(reader, buffer[:FileHeaderSize]); err != nil {
		return FileHeader{}, readError("file header", err)
	}
	return DecodeFileHeader(buffer)
}

// DecodeFileHeader decodes and validates the file header from the start of the buffer.
func DecodeFileHeader(buffer []byte) (FileHeader, error) {
	if len(buffer) < FileHeaderSize {
		return FileHeader{}, fmt.Errorf("%w: file header needs %d bytes but got %d", ErrTruncatedRead, FileHeaderSize, len(buffer))
	}

	var result FileHeader
	copy(result.Magic[:], buffer[:4])
	result.Version = Endian.Uint16(buffer[4:6])

	if result.Magic != Magic {
		return FileHeader{}, ErrFileHeaderInvalidMagicBytes
	}
	if result.Version != FormatVersion {
		return FileHeader{}, ErrFileHeaderUnsupportedVersion
	}
	return result, nil
}

// readError maps short reads to ErrTruncatedRead and keeps every other error as is.
func readError(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: reading %s: %w", ErrTruncatedRead, what, err)
	}
	return fmt.Errorf("reading %s: %w", what, err)
}
