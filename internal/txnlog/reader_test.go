package txnlog_test

import (
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/backbone81/txnlog/internal/encoding"
	"github.com/backbone81/txnlog/internal/logfile"
	"github.com/backbone81/txnlog/internal/txnlog"
)

var _ = Describe("Reader", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "test-txnlog-reader-*")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	// writeLog writes transactions with the commit timestamps 1 to count. Transactions hold between one and three
	// entries of varying size, which spreads them over blocks and files.
	writeLog := func(count int, maxFileSize int64) {
		writer, err := txnlog.OpenWriter(txnlog.WriterConfig{
			Directory:   dir,
			Name:        "example",
			MaxFileSize: maxFileSize,
			SyncPolicy:  txnlog.NewSyncPolicyNone(),
		})
		Expect(err).ToNot(HaveOccurred())
		for i := range count {
			var entries [][]byte
			for j := range i%3 + 1 {
				entries = append(entries, pattern((i*397+j*1231)%3000, byte(i)))
			}
			timestamp := float64(i + 1)
			Expect(writer.Append(entries, txnlog.Stamp{Earliest: timestamp - 1, Actual: timestamp})).To(Succeed())
		}
		Expect(writer.Close()).To(Succeed())
	}

	filterEntries := func(entries []txnlog.Entry, keep func(timestamp float64) bool) []txnlog.Entry {
		var result []txnlog.Entry
		for _, entry := range entries {
			if keep(entry.Timestamp()) {
				result = append(result, entry)
			}
		}
		return result
	}

	It("should return nothing for an empty log", func() {
		Expect(readAll(dir, "example", txnlog.QueryOptions{})).To(BeEmpty())
		Expect(readAll(dir, "example", txnlog.Between(1, 2))).To(BeEmpty())
	})

	It("should not return entries after the reader was closed", func() {
		writeLog(10, 0)
		reader, err := txnlog.NewReader(dir, "example", txnlog.QueryOptions{})
		Expect(err).ToNot(HaveOccurred())
		Expect(reader.Next()).To(BeTrue())
		Expect(reader.Close()).To(Succeed())
		Expect(reader.Next()).To(BeFalse())
		Expect(reader.Err()).ToNot(HaveOccurred())
	})

	Context("With many files", func() {
		const maxFileSize = encoding.FileHeaderSize + encoding.BlockSize
		const transactions = 100

		var all []txnlog.Entry

		BeforeEach(func() {
			writeLog(transactions, maxFileSize)
			Expect(len(fileSizes(dir, "example"))).To(BeNumerically(">", 10))
			all = readAll(dir, "example", txnlog.QueryOptions{})
		})

		It("should read all entries in commit order", func() {
			expected := 0
			for i := range transactions {
				expected += i%3 + 1
			}
			Expect(all).To(HaveLen(expected))
			for i := 1; i < len(all); i++ {
				Expect(all[i].Timestamp()).To(BeNumerically(">=", all[i-1].Timestamp()))
				Expect(all[i-1].Position.Less(all[i].Position)).To(BeTrue())
			}
		})

		DescribeTable("Reading a range equals filtering all entries",
			func(start float64, end float64) {
				Expect(readAll(dir, "example", txnlog.Between(start, end))).To(Equal(filterEntries(all, func(timestamp float64) bool {
					return start <= timestamp && timestamp <= end
				})))

				exclusive := txnlog.Between(start, end)
				exclusive.ExclusiveEnd = true
				Expect(readAll(dir, "example", exclusive)).To(Equal(filterEntries(all, func(timestamp float64) bool {
					return start <= timestamp && timestamp < end
				})))
			},
			Entry("When the range covers everything", 0.0, 1000.0),
			Entry("When the range is a single transaction", 42.0, 42.0),
			Entry("When the range starts at the first transaction", 1.0, 10.0),
			Entry("When the range ends at the last transaction", 90.0, 100.0),
			Entry("When the range is in the middle", 33.5, 66.5),
			Entry("When the range is before the log", -10.0, 0.5),
			Entry("When the range is after the log", 100.5, 200.0),
			Entry("When the range is empty", 50.0, 40.0),
		)

		It("should read all entries since a timestamp", func() {
			for _, start := range []float64{0, 1, 2, 17, 50.5, 99, 100, 101} {
				Expect(readAll(dir, "example", txnlog.Since(start))).To(Equal(filterEntries(all, func(timestamp float64) bool {
					return start <= timestamp
				})))
			}
		})

		It("should read all entries until a timestamp", func() {
			for _, end := range []float64{0, 1, 2, 17, 50.5, 99, 100, 101} {
				Expect(readAll(dir, "example", txnlog.Until(end))).To(Equal(filterEntries(all, func(timestamp float64) bool {
					return timestamp <= end
				})))
			}
		})

		It("should skip entries which started in a deleted file", func() {
			Expect(os.Remove(logfile.FilePath(dir, "example", 1))).To(Succeed())

			// Continuation blocks are skipped until the first file starting with a new entry.
			first := uint64(2)
			for ; ; first++ {
				info, err := logfile.ParseFile(logfile.FilePath(dir, "example", first))
				Expect(err).ToNot(HaveOccurred())
				if !info.Blocks[0].Header.Flags.IsContinuation() {
					break
				}
			}
			var expected []txnlog.Entry
			for _, entry := range all {
				if entry.Position.Sequence >= first {
					expected = append(expected, entry)
				}
			}
			Expect(expected).ToNot(BeEmpty())
			Expect(readAll(dir, "example", txnlog.QueryOptions{})).To(Equal(expected))
			Expect(readAll(dir, "example", txnlog.Since(0))).To(Equal(expected))
		})

		It("should report a corrupt file in the middle of the log", func() {
			filePath := logfile.FilePath(dir, "example", 3)
			file, err := os.OpenFile(filePath, os.O_WRONLY, 0)
			Expect(err).ToNot(HaveOccurred())
			Expect(file.WriteAt([]byte("XXXX"), 0)).To(Equal(4))
			Expect(file.Close()).To(Succeed())

			reader, err := txnlog.NewReader(dir, "example", txnlog.QueryOptions{})
			Expect(err).ToNot(HaveOccurred())
			count := 0
			for reader.Next() {
				count++
			}
			Expect(reader.Err()).To(MatchError(txnlog.ErrCorruptFormat))
			Expect(count).To(BeNumerically("<", len(all)))
			Expect(reader.Close()).To(Succeed())
		})
	})

	Context("With a truncated tail", func() {
		BeforeEach(func() {
			writeLog(20, 0)
		})

		It("should end the log within an entry", func() {
			all := readAll(dir, "example", txnlog.QueryOptions{})
			last := all[len(all)-1]
			Expect(os.Truncate(logfile.FilePath(dir, "example", 1), last.Position.Offset+encoding.TxnHeaderSize)).To(Succeed())

			Expect(readAll(dir, "example", txnlog.QueryOptions{})).To(Equal(all[:len(all)-1]))
		})

		It("should end the log within a block header", func() {
			all := readAll(dir, "example", txnlog.QueryOptions{})
			Expect(os.Truncate(logfile.FilePath(dir, "example", 1), logfile.BlockOffset(1)+4)).To(Succeed())

			result := readAll(dir, "example", txnlog.QueryOptions{})
			Expect(result).ToNot(BeEmpty())
			Expect(all[:len(result)]).To(Equal(result))
			Expect(result[len(result)-1].Next.Offset).To(BeNumerically("<=", logfile.BlockOffset(1)))
		})
	})
})
