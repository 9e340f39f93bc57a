package filter_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/backbone81/txnlog/internal/encoding"
	"github.com/backbone81/txnlog/internal/filter"
	"github.com/backbone81/txnlog/internal/logfile"
)

var _ = Describe("Filter", func() {
	entry := logfile.Entry{
		Position: logfile.Position{Sequence: 3, Offset: 16},
		Header: encoding.TxnHeader{
			EarliestTimestamp: 99.5,
			ActualTimestamp:   100.25,
			DataLength:        3,
			Flags:             encoding.LastEntryFlag,
		},
		Data: []byte("foo"),
	}

	DescribeTable("Matching entries",
		func(expression string, want bool) {
			f, err := filter.Compile(expression)
			Expect(err).ToNot(HaveOccurred())
			Expect(f.Match(entry)).To(Equal(want))
		},
		Entry("When the expression is empty", "", true),
		Entry("When the expression is blank", "   ", true),
		Entry("When the timestamp is in range", "timestamp >= 100.0 && timestamp < 101.0", true),
		Entry("When the timestamp is out of range", "timestamp > 100.25", false),
		Entry("When comparing the earliest timestamp", "earliest < timestamp", true),
		Entry("When comparing the length", "length == 3", true),
		Entry("When checking the last entry", "last", true),
		Entry("When checking the flags", "flags == 1", true),
		Entry("When checking the position", "sequence == 3 && offset == 16", true),
		Entry("When checking the data", "data == b'foo'", true),
		Entry("When checking a data prefix", "string(data).startsWith('ba')", false),
	)

	DescribeTable("Rejecting invalid expressions",
		func(expression string) {
			Expect(filter.Compile(expression)).Error().To(MatchError(filter.ErrInvalidExpression))
		},
		Entry("When the expression does not parse", "timestamp >="),
		Entry("When the variable is unknown", "partition == 1"),
		Entry("When the expression is not a boolean", "length + 1"),
		Entry("When the types do not match", "length == 'foo'"),
	)

	It("should match everything with the zero value", func() {
		var f *filter.Filter
		Expect(f.Enabled()).To(BeFalse())
		Expect(f.Match(entry)).To(BeTrue())
	})
})
