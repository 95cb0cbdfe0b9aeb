package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/unixpickle/vidcap/runlog"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history [run-id]",
		Short: "List training runs or the epochs of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ctx.config.HistoryPath()
			out := cmd.OutOrStdout()
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "No training runs recorded.")
				return nil
			}
			history, err := runlog.Open(path)
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer history.Close()

			runs, err := history.Runs(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return printRuns(cmd, history, runs)
			}
			run, err := findRun(runs, args[0])
			if err != nil {
				return err
			}
			return printEpochs(cmd, history, run)
		},
	}
}

func findRun(runs []*runlog.Run, prefix string) (*runlog.Run, error) {
	var match *runlog.Run
	for _, run := range runs {
		if strings.HasPrefix(run.ID, prefix) {
			if match != nil {
				return nil, fmt.Errorf("run id %q is ambiguous", prefix)
			}
			match = run
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no run with id %q", prefix)
	}
	return match, nil
}

func printRuns(cmd *cobra.Command, history *runlog.Log, runs []*runlog.Run) error {
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No training runs recorded.")
		return nil
	}
	var rows [][]string
	for _, run := range runs {
		epochs, err := history.Epochs(cmd.Context(), run.ID)
		if err != nil {
			return err
		}
		last, loss, rate := "-", "-", "-"
		if len(epochs) > 0 {
			e := epochs[len(epochs)-1]
			last = strconv.Itoa(e.Epoch)
			loss = strconv.FormatFloat(e.Loss, 'f', 4, 64)
			rate = strconv.FormatFloat(e.LearningRate, 'g', 4, 64)
		}
		rows = append(rows, []string{
			shortID(run.ID),
			humanize.Time(run.StartedAt),
			strconv.Itoa(run.StartEpoch),
			last,
			loss,
			rate,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Run", "Started", "From", "Last Epoch", "Loss", "LR"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
	return nil
}

func printEpochs(cmd *cobra.Command, history *runlog.Log, run *runlog.Run) error {
	epochs, err := history.Epochs(cmd.Context(), run.ID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s, started %s from epoch %d\n", run.ID,
		run.StartedAt.Local().Format(time.DateTime), run.StartEpoch)
	if len(epochs) == 0 {
		fmt.Fprintln(out, "No completed epochs.")
		return nil
	}
	var rows [][]string
	for _, e := range epochs {
		rows = append(rows, []string{
			strconv.Itoa(e.Epoch),
			strconv.FormatFloat(e.Loss, 'f', 4, 64),
			strconv.FormatFloat(e.LearningRate, 'g', 4, 64),
			e.Duration.Round(time.Second).String(),
			e.EncoderPath,
			e.DecoderPath,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Epoch", "Loss", "LR", "Time", "Encoder", "Decoder"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
