//go:build !windows

package logfile

import (
	"fmt"
	"os"
)

// renameFile will rename the log file while being open. This works on linux but not on windows.
func renameFile(file *os.File, offset int64, newFilePath string) (*os.File, error) {
	oldFilePath := file.Name()
	if err := renameFileImpl(oldFilePath, newFilePath); err != nil {
		return nil, fmt.Errorf("renaming the log file from %q to %q: %w", oldFilePath, newFilePath, err)
	}
	return file, nil
}

func renameFileImpl(oldFilePath string, newFilePath string) error {
	if err := os.Rename(oldFilePath, newFilePath); err != nil {
		return err
	}
	return nil
}
