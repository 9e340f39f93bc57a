package cmd

import (
	"log/slog"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/backbone81/txnlog/pkg/txnlog"
)

var (
	directory string
	verbosity int
	logger    logr.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "txnlog-cli",
	Short: "A tool for inspecting and maintaining transaction logs.",
	Long:  `A tool for inspecting and maintaining transaction logs.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logr.FromSlogHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.Level(-verbosity),
		}))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&directory,
		"directory",
		"d",
		".",
		"The directory the transaction logs are located in.",
	)

	rootCmd.PersistentFlags().IntVarP(
		&verbosity,
		"verbosity",
		"v",
		0,
		"The verbosity of the log output. Higher values produce more output.",
	)
}

// logNames returns the given log name, or all logs in the directory when the name is empty.
func logNames(name string) ([]string, error) {
	if name != "" {
		return []string{name}, nil
	}
	return txnlog.ListLogs(directory)
}
