package txnlog_test

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble/vfs"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/backbone81/txnlog/pkg/txnlog"
)

var _ = Describe("TxnLog", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "test-txnlog-*")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("should log committed transactions only", func() {
		engine, err := txnlog.OpenEngine("db",
			txnlog.WithFS(vfs.NewMem()),
			txnlog.WithSync(false),
			txnlog.WithEngineLogger(GinkgoLogr),
		)
		Expect(err).ToNot(HaveOccurred())
		defer func() {
			Expect(engine.Close()).To(Succeed())
		}()

		store, err := txnlog.Open(filepath.Join(dir, "logs"), engine, txnlog.WithLogger(GinkgoLogr))
		Expect(err).ToNot(HaveOccurred())
		defer func() {
			Expect(store.Close()).To(Succeed())
		}()

		log, err := store.UseLog(txnlog.NameOf(7))
		Expect(err).ToNot(HaveOccurred())
		defer log.Release()

		var commits []float64
		for i, commit := range []bool{true, false, true} {
			txn, err := engine.Begin()
			Expect(err).ToNot(HaveOccurred())
			Expect(log.AddEntry([]byte{byte(i)}, txn.ID())).To(Succeed())
			if commit {
				Expect(txn.Commit(context.Background())).To(Succeed())
				commits = append(commits, txn.CommitTimestamp())
			} else {
				Expect(txn.Abort()).To(Succeed())
			}
		}

		Expect(txnlog.ListLogs(filepath.Join(dir, "logs"))).To(Equal([]string{"7"}))
		reader, err := store.NewReader("7", txnlog.Since(commits[1]))
		Expect(err).ToNot(HaveOccurred())
		Expect(reader.Next()).To(BeTrue())
		Expect(reader.Value().Data).To(Equal([]byte{2}))
		Expect(reader.Value().Timestamp()).To(Equal(commits[1]))
		Expect(reader.Next()).To(BeFalse())
		Expect(reader.Err()).ToNot(HaveOccurred())
		Expect(reader.Close()).To(Succeed())
	})

	It("should register all metrics", func() {
		registry := prometheus.NewRegistry()
		Expect(txnlog.RegisterMetrics(registry)).To(Succeed())
		families, err := registry.Gather()
		Expect(err).ToNot(HaveOccurred())
		Expect(families).ToNot(BeEmpty())
		Expect(txnlog.RegisterMetrics(registry)).ToNot(Succeed())
	})
})
