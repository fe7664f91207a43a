package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"codevolt/internal/sim"
)

var (
	replayInput     string
	replaySpeed     float64
	replayPrintOnly bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay an event log file",
	Long:  "replay feeds event rows from a JSONL log back into GreptimeDB, Postgres or STDOUT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		log, closeLog, err := newLogger(false)
		if err != nil {
			return err
		}
		defer closeLog()
		writers, err := newWriters(cmd.Context(), writerOptions{printOnly: replayPrintOnly, log: log})
		if err != nil {
			return err
		}
		mw := sim.NewMultiWriter(writers...)
		defer mw.Close()
		return sim.ReplayLogFile(replayInput, mw, replaySpeed)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to event log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print events to STDOUT instead of exporting them")
	replayCmd.MarkFlagRequired("input")
}
