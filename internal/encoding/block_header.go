package encoding

import (
	"fmt"
	"math"
)

// BlockFlags is the bitmask stored in every block header.
type BlockFlags uint16

const (
	// ContinuationFlag marks a block whose payload starts with the remaining bytes of an entry (or transaction
	// header) which began in the previous block. No transaction header is re-emitted for those bytes.
	ContinuationFlag BlockFlags = 1 << iota
)

// IsContinuation reports if the continuation flag is set.
func (f BlockFlags) IsContinuation() bool {
	return f&ContinuationFlag != 0
}

// BlockHeader is located at the start of every block.
type BlockHeader struct {
	// The commit timestamp of the first record which begins or continues in this block. Used by range reads to
	// binary search over blocks. Encoded as eight bytes.
	StartTimestamp float64

	// Flags describing the block content. Encoded as two bytes.
	Flags BlockFlags
}

// BlockHeaderSize provides the size in bytes of the block header.
const BlockHeaderSize = 8 + 2

// PutBlockHeader encodes the block header into the start of the buffer. The buffer must hold at least
// BlockHeaderSize bytes.
func PutBlockHeader(buffer []byte, header BlockHeader) {
	Endian.PutUint64(buffer[0:8], math.Float64bits(header.StartTimestamp))
	Endian.PutUint16(buffer[8:10], uint16(header.Flags))
}

// DecodeBlockHeader decodes the block header from the start of the buffer.
func DecodeBlockHeader(buffer []byte) (BlockHeader, error) {
	if len(buffer) < BlockHeaderSize {
		return BlockHeader{}, fmt.Errorf("%w: block header needs %d bytes but got %d", ErrTruncatedRead, BlockHeaderSize, len(buffer))
	}
	return BlockHeader{
		StartTimestamp: math.Float64frombits(Endian.Uint64(buffer[0:8])),
		Flags:          BlockFlags(Endian.Uint16(buffer[8:10])),
	}, nil
}
