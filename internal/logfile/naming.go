package logfile

import (
	"fmt"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"
)

const (
	// FileExtension is the extension every log file carries.
	FileExtension = ".txnlog"

	// TemporaryFileExtension is appended to log files while they are created.
	TemporaryFileExtension = ".new"
)

// FileName returns the file name of the log file for the given log name and sequence number.
func FileName(name string, sequence uint64) string {
	return name + "." + strconv.FormatUint(sequence, 10) + FileExtension
}

// FilePath returns the path of the log file for the given log name and sequence number within the directory.
func FilePath(directory string, name string, sequence uint64) string {
	return path.Join(directory, FileName(name, sequence))
}

// ParseFileName splits a log file name into log name and sequence number. It reports false for file names which do
// not follow the `{logName}.{sequence}.txnlog` pattern.
func ParseFileName(fileName string) (string, uint64, bool) {
	base, found := strings.CutSuffix(fileName, FileExtension)
	if !found {
		return "", 0, false
	}
	index := strings.LastIndexByte(base, '.')
	if index <= 0 {
		return "", 0, false
	}
	name := base[:index]
	sequence, err := strconv.ParseUint(base[index+1:], 10, 64)
	if err != nil || sequence == 0 {
		return "", 0, false
	}
	if FileName(name, sequence) != fileName {
		// Reject non-canonical forms like leading zeros or a plus sign, they would map two files onto one sequence.
		return "", 0, false
	}
	return name, sequence, true
}

// GetSequences returns the sequence numbers of all files of the given log in ascending order.
func GetSequences(directory string, name string) ([]uint64, error) {
	dirEntries, err := os.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("reading directory %q: %w", directory, err)
	}

	var result []uint64
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() {
			continue
		}
		fileName, sequence, ok := ParseFileName(dirEntry.Name())
		if !ok || fileName != name {
			continue
		}
		result = append(result, sequence)
	}

	// The file names returned by os.ReadDir() are sorted lexically, which does not match the numeric order of the
	// sequence numbers.
	slices.Sort(result)
	return result, nil
}

// GetLogNames returns the names of all logs with at least one file in the directory, sorted in ascending order.
func GetLogNames(directory string) ([]string, error) {
	dirEntries, err := os.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("reading directory %q: %w", directory, err)
	}

	var result []string
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() {
			continue
		}
		name, _, ok := ParseFileName(dirEntry.Name())
		if !ok {
			continue
		}
		result = append(result, name)
	}
	slices.Sort(result)
	return slices.Compact(result), nil
}

// RemoveTemporaryFiles removes the leftovers of log files whose creation was interrupted. It returns the paths of
// the removed files.
func RemoveTemporaryFiles(directory string) ([]string, error) {
	dirEntries, err := os.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("reading directory %q: %w", directory, err)
	}

	var removed []string
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() {
			continue
		}
		fileName, found := strings.CutSuffix(dirEntry.Name(), TemporaryFileExtension)
		if !found {
			continue
		}
		if _, _, ok := ParseFileName(fileName); !ok {
			continue
		}
		filePath := path.Join(directory, dirEntry.Name())
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("removing temporary log file %q: %w", filePath, err)
		}
		removed = append(removed, filePath)
	}
	return removed, nil
}
