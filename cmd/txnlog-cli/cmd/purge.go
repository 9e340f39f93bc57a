package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backbone81/txnlog/pkg/txnlog"
)

var (
	purgeLog     string
	purgeDestroy bool
)

// purgeCmd represents the purge command.
var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Deletes the files of transaction logs.",
	Long: `Deletes all files of transaction logs but the newest one. With --destroy, the newest file is deleted as well.
The logs must not be in use by a running process.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := txnlog.Open(directory, nil, txnlog.WithLogger(logger))
		if err != nil {
			return err
		}
		removed, purgeErr := store.PurgeLogs(txnlog.PurgeOptions{
			Name:    purgeLog,
			Destroy: purgeDestroy,
		})
		for _, filePath := range removed {
			fmt.Printf("Removed %s\n", filePath)
		}
		if err := store.Close(); err != nil && purgeErr == nil {
			purgeErr = err
		}
		return purgeErr
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)

	purgeCmd.Flags().StringVarP(&purgeLog, "log", "l", "", "The name of the log to purge. All logs are purged when empty.")
	purgeCmd.Flags().BoolVar(&purgeDestroy, "destroy", false, "Delete the newest file as well.")
}
