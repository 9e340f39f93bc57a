// Package txnlog provides a transaction log engine. Entries are attached to transactions of a transactional
// key-value engine and appended to named logs when the transaction commits. Entries of aborted transactions never
// reach the log.
//
//   - A log is identified by its name and is stored as a sequence of files in a single directory. Files are named
//     after the log with a zero padded sequence number and a `.txnlog` file extension.
//   - Every file starts with a file header and is split into blocks of 4 KiB. Every block starts with a block header
//     carrying the commit timestamp of the first transaction written to it. Entries larger than the remaining space
//     are continued in the following blocks, and across files.
//   - Every entry carries the commit timestamp of its transaction and the start timestamp of the oldest snapshot at
//     commit time. Readers locate a start timestamp by a binary search over the block headers.
//   - After a crash, the tail of a log is cut back to the last completely written transaction.
//   - Files older than the retention period are deleted, and logs can be purged explicitly.
package txnlog
