package logfile_test

import (
	"os"
	"path"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/backbone81/txnlog/internal/logfile"
)

var _ = Describe("Naming", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "test-naming-*")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	touch := func(fileName string) {
		Expect(os.WriteFile(path.Join(dir, fileName), nil, 0o600)).To(Succeed())
	}

	It("should build file names", func() {
		Expect(logfile.FileName("example", 1)).To(Equal("example.1.txnlog"))
		Expect(logfile.FilePath("/tmp", "example", 12)).To(Equal("/tmp/example.12.txnlog"))
	})

	DescribeTable("Parsing file names",
		func(fileName string, wantName string, wantSequence uint64, wantOk bool) {
			name, sequence, ok := logfile.ParseFileName(fileName)
			Expect(ok).To(Equal(wantOk))
			Expect(name).To(Equal(wantName))
			Expect(sequence).To(Equal(wantSequence))
		},
		Entry("When the name is valid", "example.1.txnlog", "example", uint64(1), true),
		Entry("When the log name contains dots", "my.log.42.txnlog", "my.log", uint64(42), true),
		Entry("When the log name is an integer", "7.3.txnlog", "7", uint64(3), true),
		Entry("When the extension is wrong", "example.1.wal", "", uint64(0), false),
		Entry("When the file is temporary", "example.1.txnlog.new", "", uint64(0), false),
		Entry("When the sequence is missing", "example.txnlog", "", uint64(0), false),
		Entry("When the sequence is zero", "example.0.txnlog", "", uint64(0), false),
		Entry("When the sequence has leading zeros", "example.01.txnlog", "", uint64(0), false),
		Entry("When the sequence is not a number", "example.x.txnlog", "", uint64(0), false),
		Entry("When the log name is empty", ".1.txnlog", "", uint64(0), false),
	)

	It("should return sequences in numeric order", func() {
		for _, fileName := range []string{"a.10.txnlog", "a.2.txnlog", "a.1.txnlog", "b.5.txnlog", "a.3.txnlog.new"} {
			touch(fileName)
		}
		Expect(logfile.GetSequences(dir, "a")).To(Equal([]uint64{1, 2, 10}))
		Expect(logfile.GetSequences(dir, "b")).To(Equal([]uint64{5}))
		Expect(logfile.GetSequences(dir, "c")).To(BeEmpty())
	})

	It("should return sorted unique log names", func() {
		for _, fileName := range []string{"zeta.1.txnlog", "alpha.2.txnlog", "alpha.1.txnlog", "other.txt"} {
			touch(fileName)
		}
		Expect(os.Mkdir(path.Join(dir, "beta.1.txnlog"), 0o700)).To(Succeed())
		Expect(logfile.GetLogNames(dir)).To(Equal([]string{"alpha", "zeta"}))
	})

	It("should remove temporary files only", func() {
		touch("a.1.txnlog")
		touch("a.2.txnlog.new")
		touch("unrelated.new")

		removed, err := logfile.RemoveTemporaryFiles(dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(removed).To(ConsistOf(path.Join(dir, "a.2.txnlog.new")))
		Expect(path.Join(dir, "a.1.txnlog")).To(BeAnExistingFile())
		Expect(path.Join(dir, "unrelated.new")).To(BeAnExistingFile())
	})

	It("should fail for a missing directory", func() {
		_, err := logfile.GetSequences(path.Join(dir, "missing"), "a")
		Expect(err).To(MatchError(os.ErrNotExist))
	})
})
