package txnlog

import inttxnlog "github.com/backbone81/txnlog/internal/txnlog"

// Reader provides functionality to read a log. It abstracts away the fact that the log is split into blocks which are
// distributed over several files.
//
// Instances of this struct are NOT safe for concurrent use. Either use it on a single Go routine or provide your own
// external synchronization.
type Reader = inttxnlog.Reader

// NewReader creates a new Reader for the named log in the directory. Use Store.NewReader for logs of an open store.
var NewReader = inttxnlog.NewReader

// Entry is a single entry read from a log.
type Entry = inttxnlog.Entry

// QueryOptions restrict the entries a Reader returns by their commit timestamp.
type QueryOptions = inttxnlog.QueryOptions

// Since returns query options for all entries with a commit timestamp of at least start.
var Since = inttxnlog.Since

// Between returns query options for all entries with a commit timestamp between start and end, both inclusive.
var Between = inttxnlog.Between

// Until returns query options for all entries with a commit timestamp of at most end.
var Until = inttxnlog.Until
