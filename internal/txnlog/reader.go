package txnlog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/backbone81/txnlog/internal/encoding"
	"github.com/backbone81/txnlog/internal/logfile"
	"github.com/backbone81/txnlog/internal/utils"
)

// Entry is a single entry read from a log.
type Entry = logfile.Entry

// QueryOptions restrict the entries a Reader returns by their commit timestamp. The zero value returns all entries.
type QueryOptions struct {
	// Start is the smallest commit timestamp to return. Only applied when HasStart is set.
	Start    float64
	HasStart bool

	// End is the largest commit timestamp to return. Only applied when HasEnd is set.
	End    float64
	HasEnd bool

	// ExclusiveEnd excludes entries with a commit timestamp equal to End.
	ExclusiveEnd bool
}

// Since returns query options for all entries with a commit timestamp of at least start.
func Since(start float64) QueryOptions {
	return QueryOptions{Start: start, HasStart: true}
}

// Between returns query options for all entries with a commit timestamp between start and end, both inclusive.
func Between(start float64, end float64) QueryOptions {
	return QueryOptions{Start: start, HasStart: true, End: end, HasEnd: true}
}

// Until returns query options for all entries with a commit timestamp of at most end.
func Until(end float64) QueryOptions {
	return QueryOptions{End: end, HasEnd: true}
}

func (q QueryOptions) beforeStart(timestamp float64) bool {
	return q.HasStart && timestamp < q.Start
}

func (q QueryOptions) afterEnd(timestamp float64) bool {
	if !q.HasEnd {
		return false
	}
	if q.ExclusiveEnd {
		return timestamp >= q.End
	}
	return timestamp > q.End
}

// Reader provides the main functionality for reading entries from a log. It abstracts away the fact that the log is
// split into blocks which are distributed over several files.
//
// Without a start timestamp, all files are read from the oldest to the newest. With a start timestamp, the block to
// start with is located by a binary search over the start timestamps of the blocks, first across the files and then
// within the file.
//
// The reader sees the files as they were when they were opened. A log file which ends within a block header or
// within an entry marks the end of the log.
//
// Instances of Reader are NOT safe to use concurrently. You need to provide external synchronization.
type Reader struct {
	noCopy utils.NoCopy

	directory string
	name      string
	options   QueryOptions
	sequences []uint64

	// The index into sequences of the file to read next.
	index int

	// The file currently read from. Nil when the next file needs to be opened.
	file *logfile.Reader

	// The index of the next block to read from the file.
	block int64

	assembler *logfile.Assembler
	buffer    []byte
	pending   []logfile.Entry
	value     logfile.Entry
	err       error
	done      bool
}

// NewReader creates a new reader for the log with the given name in the directory. A log without files is empty.
//
// To avoid resources leaking, the returned reader needs to be closed by calling Close().
func NewReader(directory string, name string, options QueryOptions) (*Reader, error) {
	sequences, err := logfile.GetSequences(directory, name)
	if err != nil {
		return nil, err
	}
	reader := &Reader{
		directory: directory,
		name:      name,
		options:   options,
		sequences: sequences,
		assembler: logfile.NewAssembler(),
		buffer:    make([]byte, encoding.BlockSize),
	}
	if options.HasStart {
		if err := reader.seek(options.Start); err != nil {
			return nil, errors.Join(err, reader.Close())
		}
	}
	return reader, nil
}

// Next advances to the next entry. It returns false when no more entries are available or an error occurred. Check
// Err() to tell the two apart.
func (r *Reader) Next() bool {
	if r.done {
		return false
	}
	for {
		for len(r.pending) > 0 {
			entry := r.pending[0]
			r.pending = r.pending[1:]
			if r.options.beforeStart(entry.Timestamp()) {
				continue
			}
			if r.options.afterEnd(entry.Timestamp()) {
				r.finish(nil)
				return false
			}
			r.value = entry
			logfile.ReadEntryTotal.Inc()
			logfile.ReadEntryBytes.Add(float64(len(entry.Data)))
			return true
		}

		ok, err := r.readBlock()
		if err != nil {
			r.finish(fmt.Errorf("reading the log %q: %w", r.name, err))
			return false
		}
		if !ok {
			r.finish(nil)
			return false
		}
	}
}

// Value returns the entry Next advanced to.
func (r *Reader) Value() Entry {
	return r.value
}

// Err returns the error which stopped Next.
func (r *Reader) Err() error {
	return r.err
}

// Close closes the file currently read from.
func (r *Reader) Close() error {
	r.done = true
	r.pending = nil
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *Reader) finish(err error) {
	r.err = err
	r.value = logfile.Entry{}
	if closeErr := r.Close(); closeErr != nil && r.err == nil {
		r.err = closeErr
	}
}

// readBlock feeds the next block to the assembler. It reports false at the end of the log.
func (r *Reader) readBlock() (bool, error) {
	for {
		if r.file == nil {
			if r.index >= len(r.sequences) {
				return false, nil
			}
			file, err := logfile.OpenLogFile(r.directory, r.name, r.sequences[r.index])
			if err != nil {
				return false, err
			}
			r.file = file
		}

		blockCount := r.file.BlockCount()
		if r.block >= blockCount {
			if err := r.nextFile(); err != nil {
				return false, err
			}
			continue
		}

		block, err := r.file.ReadBlock(r.block, r.buffer)
		if errors.Is(err, encoding.ErrTruncatedRead) && r.block == blockCount-1 {
			if r.index < len(r.sequences)-1 {
				return false, fmt.Errorf("%w: the log file %q ends within a block header but is followed by another file",
					encoding.ErrCorruptFormat, r.file.FilePath())
			}
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("the log file %q: %w", r.file.FilePath(), err)
		}
		r.block++

		r.pending, err = r.assembler.Feed(r.file.Sequence(), block, r.pending[:0])
		if err != nil {
			return false, fmt.Errorf("the log file %q: %w", r.file.FilePath(), err)
		}
		return true, nil
	}
}

func (r *Reader) nextFile() error {
	err := r.file.Close()
	r.file = nil
	r.index++
	r.block = 0
	return err
}

// seek positions the reader on the first block which might hold entries with a commit timestamp of at least start.
//
// This is the last block with a start timestamp below start, or the first block when there is none. As the entry in
// progress at the beginning of a continuation block started in an earlier block, the reader steps back over
// continuation blocks to the block the entry started in.
func (r *Reader) seek(start float64) error {
	if len(r.sequences) == 0 {
		return nil
	}

	var searchErr error
	fileIndex := sort.Search(len(r.sequences), func(i int) bool {
		timestamp, ok, err := r.firstBlockTimestamp(i)
		if err != nil {
			searchErr = err
			return true
		}
		// A file without blocks can only be the newest file.
		return !ok || timestamp >= start
	})
	if searchErr != nil {
		return searchErr
	}
	fileIndex = max(fileIndex-1, 0)

	if err := r.openFile(fileIndex); err != nil {
		return err
	}
	blockCount := r.file.BlockCount()
	blockIndex := sort.Search(int(blockCount), func(i int) bool {
		header, err := r.file.BlockHeader(int64(i))
		if err != nil {
			// A truncated block header can only be the last block.
			return true
		}
		return header.StartTimestamp >= start
	})
	r.block = max(int64(blockIndex)-1, 0)

	return r.stepBackOverContinuations()
}

// stepBackOverContinuations moves the reader back until it is positioned on a block which is not a continuation
// block, crossing into earlier files as necessary. Continuation blocks at the start of the oldest file are skipped by
// the assembler.
func (r *Reader) stepBackOverContinuations() error {
	for {
		header, err := r.file.BlockHeader(r.block)
		if errors.Is(err, encoding.ErrTruncatedRead) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("the log file %q: %w", r.file.FilePath(), err)
		}
		if !header.Flags.IsContinuation() {
			return nil
		}
		if r.block > 0 {
			r.block--
			continue
		}
		if r.index == 0 {
			return nil
		}
		if err := r.openFile(r.index - 1); err != nil {
			return err
		}
		r.block = max(r.file.BlockCount()-1, 0)
	}
}

// openFile switches the reader to the file with the given index into sequences.
func (r *Reader) openFile(index int) error {
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return err
		}
		r.file = nil
	}
	file, err := logfile.OpenLogFile(r.directory, r.name, r.sequences[index])
	if err != nil {
		return err
	}
	r.file = file
	r.index = index
	r.block = 0
	return nil
}

// firstBlockTimestamp returns the start timestamp of the first block of the file with the given index into
// sequences. It reports false when the file has no complete block header.
func (r *Reader) firstBlockTimestamp(index int) (float64, bool, error) {
	file, err := logfile.OpenLogFile(r.directory, r.name, r.sequences[index])
	if err != nil {
		return 0, false, err
	}
	defer func() {
		_ = file.Close()
	}()

	header, err := file.BlockHeader(0)
	if errors.Is(err, encoding.ErrTruncatedRead) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("the log file %q: %w", file.FilePath(), err)
	}
	return header.StartTimestamp, true, nil
}
