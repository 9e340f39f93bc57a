// Package encoding provides the binary layout of transaction log files.
//
// A log file starts with a file header followed by fixed size blocks:
//
//	file   := fileHeader block*
//	fileHeader := magic [4]byte, version uint16
//	block  := blockHeader payload
//	blockHeader := startTimestamp float64, flags uint16
//	payload := (txnHeader data)* padding?      // no CONTINUATION flag
//	         | data (txnHeader data)* padding? // CONTINUATION flag
//	txnHeader := earliestTimestamp float64, actualTimestamp float64, dataLength uint32, flags uint16
//
// All numbers are big-endian. Every block is BlockSize bytes long except the trailing block of a file, which
// may end early. Timestamps are milliseconds since the unix epoch.
package encoding

import "encoding/binary"

// Endian is the endianness all multi-byte values are serialized with, independent of the host.
var Endian = binary.BigEndian

const (
	// BlockSize is the size in bytes of a full block including its header.
	BlockSize = 4096

	// BlockPayloadSize is the number of bytes available for transaction headers and data in a block.
	BlockPayloadSize = BlockSize - BlockHeaderSize
)
