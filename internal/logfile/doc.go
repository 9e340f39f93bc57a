// Package logfile reads and writes single transaction log files.
//
//   - A log belongs to a log name and is made up of multiple files. All files of all logs are located in the same
//     directory. Every file is named `{logName}.{sequence}.txnlog`, the sequence starting at 1 and increasing by one
//     on every rotation.
//   - Each file starts with a file header, followed by fixed size blocks. Entries are stored as a transaction header
//     followed by the entry data. Entries which do not fit into the remaining space of a block continue in the next
//     block, which is marked with the continuation flag. That next block may be the first block of the next file.
//   - The Writer appends blocks to a single file. The Reader provides positional access to the blocks of a single
//     file. The Assembler turns a stream of blocks into entries and is shared by everything which reads entries.
package logfile
