package logfile

import (
	"bytes"
	"fmt"

	"github.com/backbone81/txnlog/internal/encoding"
)

// Position identifies a byte in a log made up of multiple files.
type Position struct {
	// Sequence is the sequence number of the file.
	Sequence uint64

	// Offset is the offset in bytes from the start of the file.
	Offset int64
}

// Less reports if the position is located before the other position.
func (p Position) Less(other Position) bool {
	if p.Sequence != other.Sequence {
		return p.Sequence < other.Sequence
	}
	return p.Offset < other.Offset
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Sequence, p.Offset)
}

// Entry is a single entry reconstructed from the blocks of a log.
type Entry struct {
	// Header is the transaction header the entry was written with.
	Header encoding.TxnHeader

	// Data is the payload of the entry.
	Data []byte

	// Position is the location of the transaction header of the entry.
	Position Position

	// Next is the position after the last byte of the entry.
	Next Position
}

// Timestamp returns the commit timestamp of the entry.
func (e Entry) Timestamp() float64 {
	return e.Header.ActualTimestamp
}

// AssemblerState describes what the assembler expects at the start of the next block.
type AssemblerState int

const (
	// AssemblerStateIdle is the state between entries. The next block must not be a continuation block.
	AssemblerStateIdle AssemblerState = iota

	// AssemblerStateHeaderFragment is the state after a block ended within a transaction header. The next block must
	// be a continuation block starting with the remaining header bytes.
	AssemblerStateHeaderFragment

	// AssemblerStateData is the state after a block ended within the data of an entry. The next block must be a
	// continuation block starting with the remaining data bytes.
	AssemblerStateData
)

// String returns a string representation of the state.
func (s AssemblerState) String() string {
	switch s {
	case AssemblerStateIdle:
		return "idle"
	case AssemblerStateHeaderFragment:
		return "header fragment"
	case AssemblerStateData:
		return "data"
	default:
		return "unknown"
	}
}

// Assembler turns a stream of consecutive blocks into entries. The blocks might come from multiple consecutive files.
//
// The payload of a block is one of:
//   - a transaction header with the complete data of the entry
//   - a transaction header with the first part of the data, continued in the next block
//   - the remaining data of an entry from the previous block, completed in this block
//   - the middle part of the data of an entry, continued in the next block
//
// The first two cases can repeat within a block, and the last two cases can be followed by the first two. A
// transaction header itself can be split between two blocks.
//
// Instances of Assembler are NOT safe to use concurrently. You need to provide external synchronization.
type Assembler struct {
	state AssemblerState

	// Reports if any block was fed to the assembler yet.
	started bool

	// Reports if continuation blocks at the start of the stream are being skipped.
	skippingOrphans bool

	// The number of blocks skipped because the start of their entry is not part of the stream.
	orphanBlocks int

	// The bytes of a transaction header split between two blocks.
	headerFragment    [encoding.TxnHeaderSize]byte
	headerFragmentLen int

	// The entry currently being assembled.
	current Entry

	// The number of data bytes missing for the current entry to be complete.
	remaining uint32

	// The position after the last byte which belongs to a complete entry.
	end Position
}

// NewAssembler creates a new Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// State returns the current state of the assembler.
func (a *Assembler) State() AssemblerState {
	return a.state
}

// OrphanBlocks returns the number of continuation blocks skipped at the start of the stream.
func (a *Assembler) OrphanBlocks() int {
	return a.orphanBlocks
}

// Pending returns the position of the entry currently being assembled. It reports false when no entry is in
// progress.
func (a *Assembler) Pending() (Position, bool) {
	if a.state == AssemblerStateIdle {
		return Position{}, false
	}
	return a.current.Position, true
}

// End returns the position after the last byte of the last complete entry, or after the last skipped orphan block.
// It reports false when neither was seen yet.
func (a *Assembler) End() (Position, bool) {
	return a.end, a.end != Position{}
}

// Feed processes the next block of the stream, read from the file with the given sequence number. Complete entries
// are appended to entries and returned. The data of the returned entries does not refer to the block.
//
// Continuation blocks at the very start of the stream belong to an entry which began before the stream and are
// skipped. Returns ErrCorruptFormat when the block does not match the state of the assembler.
func (a *Assembler) Feed(sequence uint64, block Block, entries []Entry) ([]Entry, error) {
	first := !a.started
	a.started = true

	if block.Header.Flags.IsContinuation() {
		if a.state == AssemblerStateIdle {
			if !first && !a.skippingOrphans {
				return entries, fmt.Errorf("%w: continuation block %d in file %d without an entry in progress",
					encoding.ErrCorruptFormat, block.Index, sequence)
			}
			a.skippingOrphans = true
			a.orphanBlocks++
			OrphanBlocksSkippedTotal.Inc()
			a.end = Position{Sequence: sequence, Offset: block.PayloadOffset() + int64(len(block.Payload))}
			return entries, nil
		}
	} else {
		if a.state != AssemblerStateIdle {
			return entries, fmt.Errorf("%w: block %d in file %d starts new entries while the entry at %s is incomplete",
				encoding.ErrCorruptFormat, block.Index, sequence, a.current.Position)
		}
		a.skippingOrphans = false
	}

	payload := block.Payload
	payloadOffset := block.PayloadOffset()
	for len(payload) > 0 {
		consumed := 0
		switch a.state {
		case AssemblerStateIdle:
			if len(payload) < encoding.TxnHeaderSize {
				if isZero(payload) {
					// Padding up to the end of the block.
					return entries, nil
				}
				a.current = Entry{Position: Position{Sequence: sequence, Offset: payloadOffset}}
				a.headerFragmentLen = copy(a.headerFragment[:], payload)
				a.state = AssemblerStateHeaderFragment
				return entries, nil
			}
			header, err := encoding.DecodeTxnHeader(payload)
			if err != nil {
				return entries, err
			}
			if header.IsZero() {
				// Zero fill up to the end of the block.
				return entries, nil
			}
			a.beginEntry(header, Position{Sequence: sequence, Offset: payloadOffset})
			consumed = encoding.TxnHeaderSize

		case AssemblerStateHeaderFragment:
			consumed = copy(a.headerFragment[a.headerFragmentLen:], payload)
			a.headerFragmentLen += consumed
			if a.headerFragmentLen < encoding.TxnHeaderSize {
				break
			}
			header, err := encoding.DecodeTxnHeader(a.headerFragment[:])
			if err != nil {
				return entries, err
			}
			if header.IsZero() {
				return entries, fmt.Errorf("%w: empty transaction header at %s", encoding.ErrCorruptFormat, a.current.Position)
			}
			a.headerFragmentLen = 0
			a.beginEntry(header, a.current.Position)

		case AssemblerStateData:
			n := int(min(uint32(len(payload)), a.remaining))
			a.current.Data = append(a.current.Data, payload[:n]...)
			a.remaining -= uint32(n)
			consumed = n
		}
		payload = payload[consumed:]
		payloadOffset += int64(consumed)

		if a.state == AssemblerStateData && a.remaining == 0 {
			a.end = Position{Sequence: sequence, Offset: payloadOffset}
			a.current.Next = a.end
			entries = append(entries, a.current)
			a.current = Entry{}
			a.state = AssemblerStateIdle
		}
	}
	return entries, nil
}

func (a *Assembler) beginEntry(header encoding.TxnHeader, position Position) {
	a.current = Entry{
		Header: header,
		// The length is not trusted for the allocation, a corrupt header could claim gigabytes.
		Data:     make([]byte, 0, min(header.DataLength, encoding.BlockSize)),
		Position: position,
	}
	a.remaining = header.DataLength
	a.state = AssemblerStateData
}

func isZero(data []byte) bool {
	return len(bytes.Trim(data, "\x00")) == 0
}
