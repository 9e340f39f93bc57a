package encoding_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/backbone81/txnlog/internal/encoding"
)

var _ = Describe("BlockHeader", func() {
	It("should encode big-endian", func() {
		var buffer [encoding.BlockHeaderSize]byte
		encoding.PutBlockHeader(buffer[:], encoding.BlockHeader{
			StartTimestamp: 1.0,
			Flags:          encoding.ContinuationFlag,
		})
		Expect(buffer[:]).To(Equal([]byte{0x3f, 0xf0, 0, 0, 0, 0, 0, 0, 0x00, 0x01}))
	})

	DescribeTable("Decoding encoded block headers",
		func(header encoding.BlockHeader) {
			var buffer [encoding.BlockHeaderSize]byte
			encoding.PutBlockHeader(buffer[:], header)
			gotHeader, err := encoding.DecodeBlockHeader(buffer[:])
			Expect(err).ToNot(HaveOccurred())
			Expect(gotHeader).To(Equal(header))
			Expect(gotHeader.Flags.IsContinuation()).To(Equal(header.Flags&encoding.ContinuationFlag != 0))
		},
		Entry("When the block starts new records", encoding.BlockHeader{StartTimestamp: 1700000000123.5}),
		Entry("When the block continues a record", encoding.BlockHeader{StartTimestamp: 1700000000123.5, Flags: encoding.ContinuationFlag}),
	)

	It("should report a truncated read for a short buffer", func() {
		var buffer [encoding.BlockHeaderSize]byte
		Expect(encoding.DecodeBlockHeader(buffer[:encoding.BlockHeaderSize-1])).Error().To(MatchError(encoding.ErrTruncatedRead))
	})
})
