package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/backbone81/txnlog/internal/filter"
	"github.com/backbone81/txnlog/pkg/txnlog"
)

var (
	readLog          string
	readStart        string
	readEnd          string
	readExclusiveEnd bool
	readWhere        string
	readData         bool
	readLimit        int
)

// readCmd represents the read command.
var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Prints the entries of a transaction log.",
	Long: `Prints the entries of a transaction log. The entries can be restricted to a range of commit timestamps with
--start and --end, and filtered by a CEL expression with --where. Timestamps are given either in milliseconds since
the unix epoch or in RFC 3339 format.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if readLog == "" {
			return errors.New("the name of the log is required")
		}

		var options txnlog.QueryOptions
		if readStart != "" {
			start, err := parseTimestamp(readStart)
			if err != nil {
				return fmt.Errorf("parsing the start timestamp: %w", err)
			}
			options.Start = start
			options.HasStart = true
		}
		if readEnd != "" {
			end, err := parseTimestamp(readEnd)
			if err != nil {
				return fmt.Errorf("parsing the end timestamp: %w", err)
			}
			options.End = end
			options.HasEnd = true
			options.ExclusiveEnd = readExclusiveEnd
		}

		where, err := filter.Compile(readWhere)
		if err != nil {
			return err
		}

		reader, err := txnlog.NewReader(directory, readLog, options)
		if err != nil {
			return err
		}
		defer func() {
			if err := reader.Close(); err != nil {
				logger.Error(err, "Closing the reader failed")
			}
		}()

		printed := 0
		for reader.Next() {
			if readLimit > 0 && printed >= readLimit {
				break
			}
			entry := reader.Value()
			ok, err := where.Match(entry)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			printEntry(entry)
			printed++
		}
		if err := reader.Err(); err != nil {
			return err
		}
		logger.V(1).Info("Read entries", "log", readLog, "printed", printed)
		return nil
	},
}

func printEntry(entry txnlog.Entry) {
	fmt.Printf("%s  commit %s  earliest %s  length %d  last %t\n",
		entry.Position,
		formatTimestamp(entry.Header.ActualTimestamp),
		formatTimestamp(entry.Header.EarliestTimestamp),
		entry.Header.DataLength,
		entry.Header.Flags.IsLastEntry(),
	)
	if readData {
		fmt.Print(hex.Dump(entry.Data))
	}
}

// parseTimestamp parses milliseconds since the unix epoch or an RFC 3339 time into a log timestamp.
func parseTimestamp(value string) (float64, error) {
	if timestamp, err := strconv.ParseFloat(value, 64); err == nil {
		return timestamp, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return 0, err
	}
	return txnlog.Timestamp(t), nil
}

func formatTimestamp(timestamp float64) string {
	return fmt.Sprintf("%.3f (%s)", timestamp, txnlog.Time(timestamp).UTC().Format(time.RFC3339Nano))
}

func init() {
	rootCmd.AddCommand(readCmd)

	readCmd.Flags().StringVarP(&readLog, "log", "l", "", "The name of the log to read.")
	readCmd.Flags().StringVarP(&readStart, "start", "s", "", "The smallest commit timestamp to print.")
	readCmd.Flags().StringVarP(&readEnd, "end", "e", "", "The largest commit timestamp to print.")
	readCmd.Flags().BoolVar(&readExclusiveEnd, "exclusive-end", false, "Do not print entries committed at the end timestamp.")
	readCmd.Flags().StringVarP(&readWhere, "where", "w", "", "A CEL expression entries need to match to be printed.")
	readCmd.Flags().BoolVar(&readData, "data", false, "Print a hex dump of the entry data.")
	readCmd.Flags().IntVarP(&readLimit, "limit", "n", 0, "The maximum number of entries to print. Zero prints all.")
}
