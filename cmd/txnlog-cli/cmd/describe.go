package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backbone81/txnlog/pkg/txnlog"
)

var (
	describeLog    string
	describeBlocks bool
)

// describeCmd represents the describe command.
var describeCmd = &cobra.Command{
	Use:          "describe",
	Short:        "Provides detailed information about the files of transaction logs.",
	Long:         `Provides detailed information about the files of transaction logs.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := logNames(describeLog)
		if err != nil {
			return err
		}
		for _, name := range names {
			sequences, err := txnlog.GetSequences(directory, name)
			if err != nil {
				return err
			}
			if len(sequences) == 0 {
				return fmt.Errorf("no file found for the log %q in %q", name, directory)
			}

			for _, sequence := range sequences {
				info, err := txnlog.ParseFile(txnlog.FilePath(directory, name, sequence))
				if err != nil {
					return err
				}
				printLogInfo(info)
			}
		}
		return nil
	},
}

func printLogInfo(info txnlog.LogInfo) {
	fmt.Printf("File:          %s\n", info.FilePath)
	fmt.Printf("Magic:         %s\n", info.Header.Magic)
	fmt.Printf("Version:       %d\n", info.Header.Version)
	fmt.Printf("Size:          %d\n", info.FileSize)
	fmt.Printf("Blocks:        %d\n", len(info.Blocks))
	fmt.Printf("Entries:       %d\n", len(info.Entries))
	fmt.Printf("Orphan Blocks: %d\n", info.OrphanBlocks)
	fmt.Printf("Incomplete:    %t\n", info.Incomplete)
	fmt.Printf("Truncated:     %t\n", info.Truncated)
	if len(info.Entries) > 0 {
		fmt.Printf("First Commit:  %s\n", formatTimestamp(info.Entries[0].Timestamp()))
		fmt.Printf("Last Commit:   %s\n", formatTimestamp(info.Entries[len(info.Entries)-1].Timestamp()))
	}
	if describeBlocks {
		for _, block := range info.Blocks {
			fmt.Printf("  Block %5d  offset %10d  size %4d  start %s  continuation %t\n",
				block.Index,
				block.Offset,
				block.Size,
				formatTimestamp(block.Header.StartTimestamp),
				block.Header.Flags.IsContinuation(),
			)
		}
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(describeCmd)

	describeCmd.Flags().StringVarP(
		&describeLog,
		"log",
		"l",
		"",
		"The name of the log to describe. All logs are described when empty.",
	)

	describeCmd.Flags().BoolVarP(
		&describeBlocks,
		"blocks",
		"b",
		false,
		"Print every block header.",
	)
}
