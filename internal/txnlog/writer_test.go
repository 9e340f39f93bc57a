package txnlog_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/backbone81/txnlog/internal/encoding"
	"github.com/backbone81/txnlog/internal/logfile"
	"github.com/backbone81/txnlog/internal/txnlog"
)

var _ = Describe("Writer", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "test-txnlog-writer-*")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	openWriter := func(maxFileSize int64) *txnlog.Writer {
		writer, err := txnlog.OpenWriter(txnlog.WriterConfig{
			Directory:   dir,
			Name:        "example",
			MaxFileSize: maxFileSize,
			Logger:      GinkgoLogr,
		})
		Expect(err).ToNot(HaveOccurred())
		return writer
	}

	stamp := func(timestamp float64) txnlog.Stamp {
		return txnlog.Stamp{Earliest: timestamp - 0.5, Actual: timestamp}
	}

	filePath := func(sequence uint64) string {
		return logfile.FilePath(dir, "example", sequence)
	}

	fileSize := func(sequence uint64) int64 {
		info, err := os.Stat(filePath(sequence))
		Expect(err).ToNot(HaveOccurred())
		return info.Size()
	}

	It("should create the first file with the first append", func() {
		writer := openWriter(0)
		Expect(writer.Sequence()).To(BeZero())
		Expect(writer.Append(nil, stamp(1))).To(Succeed())
		Expect(logfile.GetSequences(dir, "example")).To(BeEmpty())

		Expect(writer.Append([][]byte{[]byte("foo")}, stamp(1))).To(Succeed())
		Expect(writer.Sequence()).To(Equal(uint64(1)))
		Expect(writer.Close()).To(Succeed())
		Expect(logfile.GetSequences(dir, "example")).To(Equal([]uint64{1}))
	})

	It("should stamp blocks and entries", func() {
		writer := openWriter(0)
		Expect(writer.Append([][]byte{pattern(5000, 1)}, stamp(7))).To(Succeed())
		Expect(writer.Close()).To(Succeed())

		info, err := logfile.ParseFile(filePath(1))
		Expect(err).ToNot(HaveOccurred())
		Expect(info.Blocks).To(HaveLen(2))
		for _, block := range info.Blocks {
			Expect(block.Header.StartTimestamp).To(Equal(7.0))
		}
		Expect(info.Entries).To(HaveLen(1))
		Expect(info.Entries[0].Header).To(Equal(encoding.TxnHeader{
			EarliestTimestamp: 6.5,
			ActualTimestamp:   7,
			DataLength:        5000,
			Flags:             encoding.LastEntryFlag,
		}))
	})

	It("should start a new block when the transaction header does not fit", func() {
		writer := openWriter(0)
		Expect(writer.Append([][]byte{pattern(encoding.BlockPayloadSize-encoding.TxnHeaderSize-14, 1)}, stamp(1))).To(Succeed())
		Expect(writer.Append([][]byte{[]byte("foo")}, stamp(2))).To(Succeed())
		Expect(writer.Close()).To(Succeed())

		info, err := logfile.ParseFile(filePath(1))
		Expect(err).ToNot(HaveOccurred())
		Expect(info.FileSize).To(Equal(int64(encoding.FileHeaderSize + encoding.BlockSize + encoding.BlockHeaderSize + encoding.TxnHeaderSize + 3)))
		Expect(info.Blocks).To(HaveLen(2))
		Expect(info.Blocks[1].Header).To(Equal(encoding.BlockHeader{StartTimestamp: 2}))
		Expect(info.Entries).To(HaveLen(2))
		Expect(info.Entries[1].Position).To(Equal(logfile.Position{
			Sequence: 1,
			Offset:   encoding.FileHeaderSize + encoding.BlockSize + encoding.BlockHeaderSize,
		}))
	})

	It("should rotate into new files and continue entries there", func() {
		var rotations [][2]uint64
		writer, err := txnlog.OpenWriter(txnlog.WriterConfig{
			Directory:   dir,
			Name:        "example",
			MaxFileSize: encoding.FileHeaderSize + encoding.BlockSize,
			RotationCallback: func(previous uint64, next uint64) {
				rotations = append(rotations, [2]uint64{previous, next})
			},
		})
		Expect(err).ToNot(HaveOccurred())
		for i := range 3 {
			Expect(writer.Append([][]byte{pattern(4000, byte(i))}, stamp(float64(i+1)))).To(Succeed())
		}
		Expect(writer.Close()).To(Succeed())

		Expect(rotations).To(Equal([][2]uint64{{1, 2}, {2, 3}}))
		second, err := logfile.ParseFile(filePath(2))
		Expect(err).ToNot(HaveOccurred())
		Expect(second.Blocks[0].Header.Flags.IsContinuation()).To(BeTrue())
		Expect(second.OrphanBlocks).To(Equal(1))
		Expect(entryData(readAll(dir, "example", txnlog.QueryOptions{}))).To(Equal([][]byte{
			pattern(4000, 0),
			pattern(4000, 1),
			pattern(4000, 2),
		}))
	})

	It("should continue in the last file after reopening", func() {
		writer := openWriter(0)
		Expect(writer.Append([][]byte{[]byte("foo")}, stamp(1))).To(Succeed())
		Expect(writer.Close()).To(Succeed())

		writer = openWriter(0)
		Expect(writer.Sequence()).To(Equal(uint64(1)))
		Expect(writer.Append([][]byte{[]byte("bar")}, stamp(2))).To(Succeed())
		Expect(writer.Close()).To(Succeed())

		info, err := logfile.ParseFile(filePath(1))
		Expect(err).ToNot(HaveOccurred())
		Expect(info.Blocks).To(HaveLen(1))
		Expect(entryData(info.Entries)).To(Equal([][]byte{[]byte("foo"), []byte("bar")}))
	})

	It("should cut off a failed transaction before the next append", func() {
		writer := openWriter(encoding.FileHeaderSize + encoding.BlockSize)
		Expect(writer.Append([][]byte{[]byte("foo")}, stamp(1))).To(Succeed())

		// A directory in place of the temporary file lets the rotation into the second file fail.
		blocker := filePath(2) + logfile.TemporaryFileExtension
		Expect(os.MkdirAll(filepath.Join(blocker, "content"), 0o755)).To(Succeed())
		Expect(writer.Append([][]byte{pattern(5000, 1)}, stamp(2))).To(MatchError(txnlog.ErrWriteFailure))

		Expect(os.RemoveAll(blocker)).To(Succeed())
		Expect(writer.Append([][]byte{[]byte("ok")}, stamp(3))).To(Succeed())
		Expect(writer.Close()).To(Succeed())
		Expect(entryData(readAll(dir, "example", txnlog.QueryOptions{}))).To(Equal([][]byte{
			[]byte("foo"),
			[]byte("ok"),
		}))
	})

	It("should roll back the transaction appended last", func() {
		writer := openWriter(encoding.FileHeaderSize + encoding.BlockSize)
		Expect(writer.Append([][]byte{[]byte("foo")}, stamp(1))).To(Succeed())
		Expect(writer.LastAppended()).To(Equal(logfile.Position{Sequence: 1, Offset: encoding.FileHeaderSize}))
		size := fileSize(1)

		Expect(writer.Append([][]byte{[]byte("bar"), pattern(5000, 1)}, stamp(2))).To(Succeed())
		position := writer.LastAppended()
		Expect(position).To(Equal(logfile.Position{Sequence: 1, Offset: size}))
		Expect(logfile.GetSequences(dir, "example")).To(Equal([]uint64{1, 2}))

		Expect(writer.Rollback(position)).To(Succeed())
		Expect(logfile.GetSequences(dir, "example")).To(Equal([]uint64{1}))
		Expect(fileSize(1)).To(Equal(size))
		Expect(writer.Sequence()).To(Equal(uint64(1)))

		Expect(writer.Append([][]byte{[]byte("baz")}, stamp(3))).To(Succeed())
		Expect(writer.Close()).To(Succeed())
		Expect(entryData(readAll(dir, "example", txnlog.QueryOptions{}))).To(Equal([][]byte{
			[]byte("foo"),
			[]byte("baz"),
		}))
	})

	for _, syncPolicyType := range txnlog.SyncPolicyTypes {
		It("should write with sync policy "+syncPolicyType.String(), func() {
			factory, err := txnlog.GetSyncPolicyFactory(syncPolicyType)
			Expect(err).ToNot(HaveOccurred())
			writer, err := txnlog.OpenWriter(txnlog.WriterConfig{
				Directory:   dir,
				Name:        "example",
				MaxFileSize: encoding.FileHeaderSize + 2*encoding.BlockSize,
				SyncPolicy:  factory(),
			})
			Expect(err).ToNot(HaveOccurred())

			var entries [][]byte
			for i := range 20 {
				entry := pattern(1500, byte(i))
				entries = append(entries, entry)
				Expect(writer.Append([][]byte{entry}, stamp(float64(i+1)))).To(Succeed())
			}
			Expect(writer.Close()).To(Succeed())
			Expect(entryData(readAll(dir, "example", txnlog.QueryOptions{}))).To(Equal(entries))
		})
	}

	Context("When recovering", func() {
		It("should cut off an incomplete entry", func() {
			writer := openWriter(0)
			Expect(writer.Append([][]byte{[]byte("foo")}, stamp(1))).To(Succeed())
			Expect(writer.Append([][]byte{pattern(100, 1)}, stamp(2))).To(Succeed())
			Expect(writer.Close()).To(Succeed())
			Expect(os.Truncate(filePath(1), fileSize(1)-50)).To(Succeed())

			result, err := txnlog.Recover(dir, "example", GinkgoLogr)
			Expect(err).ToNot(HaveOccurred())
			complete := int64(encoding.FileHeaderSize + encoding.BlockHeaderSize + encoding.TxnHeaderSize + 3)
			Expect(result.Resume).To(Equal(logfile.Position{Sequence: 1, Offset: complete}))
			Expect(result.TruncatedBytes).To(Equal(int64(encoding.TxnHeaderSize + 50)))
			Expect(fileSize(1)).To(Equal(complete))

			writer = openWriter(0)
			Expect(writer.Append([][]byte{[]byte("bar")}, stamp(3))).To(Succeed())
			Expect(writer.Close()).To(Succeed())
			Expect(entryData(readAll(dir, "example", txnlog.QueryOptions{}))).To(Equal([][]byte{
				[]byte("foo"),
				[]byte("bar"),
			}))
		})

		It("should cut off a transaction without its last entry", func() {
			writer := openWriter(0)
			Expect(writer.Append([][]byte{pattern(10, 1), pattern(10, 2)}, stamp(1))).To(Succeed())
			Expect(writer.Append([][]byte{pattern(10, 3), pattern(10, 4)}, stamp(2))).To(Succeed())
			Expect(writer.Close()).To(Succeed())
			Expect(os.Truncate(filePath(1), fileSize(1)-encoding.TxnHeaderSize-10)).To(Succeed())

			writer = openWriter(0)
			Expect(writer.Close()).To(Succeed())
			Expect(fileSize(1)).To(Equal(int64(encoding.FileHeaderSize + encoding.BlockHeaderSize + 2*(encoding.TxnHeaderSize+10))))
			Expect(entryData(readAll(dir, "example", txnlog.QueryOptions{}))).To(Equal([][]byte{
				pattern(10, 1),
				pattern(10, 2),
			}))
		})

		It("should cut off an entry continued in a file without blocks", func() {
			writer := openWriter(encoding.FileHeaderSize + encoding.BlockSize)
			Expect(writer.Append([][]byte{pattern(100, 1)}, stamp(1))).To(Succeed())
			Expect(writer.Append([][]byte{pattern(5000, 2)}, stamp(2))).To(Succeed())
			Expect(writer.Close()).To(Succeed())
			Expect(logfile.GetSequences(dir, "example")).To(Equal([]uint64{1, 2}))
			Expect(os.Truncate(filePath(2), encoding.FileHeaderSize)).To(Succeed())

			result, err := txnlog.Recover(dir, "example", GinkgoLogr)
			Expect(err).ToNot(HaveOccurred())
			complete := int64(encoding.FileHeaderSize + encoding.BlockHeaderSize + encoding.TxnHeaderSize + 100)
			Expect(result.Resume).To(Equal(logfile.Position{Sequence: 1, Offset: complete}))
			Expect(result.RemovedFiles).To(Equal([]string{filePath(2)}))
			Expect(logfile.GetSequences(dir, "example")).To(Equal([]uint64{1}))
			Expect(fileSize(1)).To(Equal(complete))
		})

		It("should cut off a truncated block header", func() {
			writer := openWriter(0)
			Expect(writer.Append([][]byte{pattern(encoding.BlockPayloadSize-encoding.TxnHeaderSize, 1)}, stamp(1))).To(Succeed())
			Expect(writer.Close()).To(Succeed())
			Expect(fileSize(1)).To(Equal(int64(encoding.FileHeaderSize + encoding.BlockSize)))

			file, err := os.OpenFile(filePath(1), os.O_WRONLY|os.O_APPEND, 0)
			Expect(err).ToNot(HaveOccurred())
			Expect(file.Write([]byte{1, 2, 3, 4})).To(Equal(4))
			Expect(file.Close()).To(Succeed())

			result, err := txnlog.Recover(dir, "example", GinkgoLogr)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Resume).To(Equal(logfile.Position{Sequence: 1, Offset: encoding.FileHeaderSize + encoding.BlockSize}))
			Expect(result.TruncatedBytes).To(Equal(int64(4)))
		})

		It("should leave a consistent log untouched", func() {
			writer := openWriter(encoding.FileHeaderSize + encoding.BlockSize)
			for i := range 3 {
				Expect(writer.Append([][]byte{pattern(4000, byte(i))}, stamp(float64(i+1)))).To(Succeed())
			}
			Expect(writer.Close()).To(Succeed())
			sizes := fileSizes(dir, "example")

			result, err := txnlog.Recover(dir, "example", GinkgoLogr)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Resume).To(Equal(logfile.Position{Sequence: 3, Offset: sizes[2]}))
			Expect(result.TruncatedBytes).To(BeZero())
			Expect(result.RemovedFiles).To(BeEmpty())
			Expect(fileSizes(dir, "example")).To(Equal(sizes))
		})

		It("should report an empty log", func() {
			result, err := txnlog.Recover(dir, "example", GinkgoLogr)
			Expect(err).ToNot(HaveOccurred())
			Expect(result).To(Equal(txnlog.RecoveryResult{}))
		})

		It("should report corruption", func() {
			writer := openWriter(0)
			Expect(writer.Append([][]byte{[]byte("foo")}, stamp(1))).To(Succeed())
			Expect(writer.Close()).To(Succeed())
			Expect(os.WriteFile(filePath(1), []byte("XXXX\x00\x01"), 0o600)).To(Succeed())

			Expect(txnlog.Recover(dir, "example", GinkgoLogr)).Error().To(MatchError(txnlog.ErrCorruptFormat))
		})
	})
})
