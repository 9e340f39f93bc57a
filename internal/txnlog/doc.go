// Package txnlog provides named, rotating binary logs which receive entries atomically with the commit of a
// transaction.
//
// The on-disk structure looks like this:
//
//   - Every log is made up of multiple files located in the same directory. The files are named
//     `{logName}.{sequence}.txnlog` with the sequence starting at 1 and increasing by one with every rotation.
//   - Each file starts with a file header made up of the magic bytes "TXNL" and the format version. After the file
//     header, blocks of 4096 bytes follow one after the other. Only the last block of a file may be shorter.
//   - Each block starts with a block header holding the commit timestamp of its first record and a flags field. The
//     rest of the block holds transaction headers, each followed by the data of its entry. Entries which do not fit
//     into the block continue in the next block, which is then marked with the continuation flag and starts with the
//     remaining bytes directly.
//   - The transaction header holds the oldest snapshot timestamp at commit time, the commit timestamp, the length of
//     the data and a flags field marking the last entry of a transaction.
//
// Entries are collected with a Log handle bound to a transaction of the key-value engine. They are written when the
// transaction commits, and discarded when it aborts.
package txnlog
