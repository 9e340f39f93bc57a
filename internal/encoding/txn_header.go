package encoding

import (
	"fmt"
	"math"
)

// TxnHeader precedes the data of every entry. It is written exactly once at the position the entry begins. When
// the entry spans multiple blocks, the following blocks carry the remaining bytes without another header.
type TxnHeader struct {
	// The oldest unreleased snapshot timestamp at the time the entry was written. Encoded as eight bytes.
	EarliestTimestamp float64

	// The commit timestamp of the transaction the entry belongs to. Encoded as eight bytes.
	ActualTimestamp float64

	// The length of the entry data in bytes. Encoded as four bytes.
	DataLength uint32

	// Flags describing the entry. Encoded as two bytes.
	Flags TxnFlags
}

// TxnFlags is the bitmask stored in every transaction header.
type TxnFlags uint16

const (
	// LastEntryFlag marks the last entry of a transaction. Entries following the last flagged entry belong to a
	// transaction which was not completely written.
	LastEntryFlag TxnFlags = 1 << iota
)

// IsLastEntry reports if the last entry flag is set.
func (f TxnFlags) IsLastEntry() bool {
	return f&LastEntryFlag != 0
}

// TxnHeaderSize provides the size in bytes of the transaction header.
const TxnHeaderSize = 8 + 8 + 4 + 2

// PutTxnHeader encodes the transaction header into the start of the buffer. The buffer must hold at least
// TxnHeaderSize bytes.
func PutTxnHeader(buffer []byte, header TxnHeader) {
	Endian.PutUint64(buffer[0:8], math.Float64bits(header.EarliestTimestamp))
	Endian.PutUint64(buffer[8:16], math.Float64bits(header.ActualTimestamp))
	Endian.PutUint32(buffer[16:20], header.DataLength)
	Endian.PutUint16(buffer[20:22], uint16(header.Flags))
}

// DecodeTxnHeader decodes the transaction header from the start of the buffer.
func DecodeTxnHeader(buffer []byte) (TxnHeader, error) {
	if len(buffer) < TxnHeaderSize {
		return TxnHeader{}, fmt.Errorf("%w: transaction header needs %d bytes but got %d", ErrTruncatedRead, TxnHeaderSize, len(buffer))
	}
	return TxnHeader{
		EarliestTimestamp: math.Float64frombits(Endian.Uint64(buffer[0:8])),
		ActualTimestamp:   math.Float64frombits(Endian.Uint64(buffer[8:16])),
		DataLength:        Endian.Uint32(buffer[16:20]),
		Flags:             TxnFlags(Endian.Uint16(buffer[20:22])),
	}, nil
}

// IsZero reports if the header consists of zero bytes only. The writer never produces such a header, as commit
// timestamps are always positive. It shows up as padding or as zero filled space at the end of a crashed file.
func (h TxnHeader) IsZero() bool {
	return h == TxnHeader{}
}
