package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backbone81/txnlog/pkg/txnlog"
)

var recoverLog string

// recoverCmd represents the recover command.
var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Cuts transaction logs back to the last completely written transaction.",
	Long: `Cuts transaction logs back to the last completely written transaction. This happens automatically when a log
is used, the command is meant for inspecting logs left behind by a crash. The logs must not be in use by a running
process.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := logNames(recoverLog)
		if err != nil {
			return err
		}
		for _, name := range names {
			result, err := txnlog.Recover(directory, name, logger)
			if err != nil {
				return err
			}
			fmt.Printf("%s: resume at %s, truncated %d bytes, removed %d files\n",
				name,
				result.Resume,
				result.TruncatedBytes,
				len(result.RemovedFiles),
			)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recoverCmd)

	recoverCmd.Flags().StringVarP(&recoverLog, "log", "l", "", "The name of the log to recover. All logs are recovered when empty.")
}
