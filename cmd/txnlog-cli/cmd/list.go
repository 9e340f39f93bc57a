package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/backbone81/txnlog/pkg/txnlog"
)

// listCmd represents the list command.
var listCmd = &cobra.Command{
	Use:          "list",
	Short:        "Lists all transaction logs in the directory.",
	Long:         `Lists all transaction logs in the directory together with the number of files and their total size.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := txnlog.ListLogs(directory)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Printf("No transaction log found in %q.\n", directory)
			return nil
		}

		fmt.Printf("%-32s %8s %14s\n", "Name", "Files", "Bytes")
		for _, name := range names {
			sequences, err := txnlog.GetSequences(directory, name)
			if err != nil {
				return err
			}
			var totalSize int64
			for _, sequence := range sequences {
				fileInfo, err := os.Stat(txnlog.FilePath(directory, name, sequence))
				if err != nil {
					return err
				}
				totalSize += fileInfo.Size()
			}
			fmt.Printf("%-32s %8d %14d\n", name, len(sequences), totalSize)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
