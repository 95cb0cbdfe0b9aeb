package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var sample bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize the dataset",
		Long: "Load the dataset and list its videos with their frame counts and the\n" +
			"number of segments that can be sampled. With --sample, a clip is\n" +
			"assembled for every listed video to check the frames.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			logger, err := ctx.newLogger("")
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			data, err := loadDataset(cfg, logger, false)
			if err != nil {
				return err
			}

			var totalFrames, totalSegments, sampleable int
			for _, rec := range data.Records {
				totalFrames += rec.Duration
				n := rec.NumSegments(data.SamplesPerVideo)
				totalSegments += n
				if n > 0 {
					sampleable++
				}
			}

			headers := []string{"Video", "Frames", "FPS", "Length", "Captions", "Segments"}
			aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}
			if sample {
				headers = append(headers, "Sample")
				aligns = append(aligns, alignLeft)
			}
			var rows [][]string
			for i, rec := range data.Records {
				if limit > 0 && i >= limit {
					break
				}
				length := "-"
				if rec.FPS > 0 {
					seconds := float64(rec.Duration) / rec.FPS
					length = time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
				}
				row := []string{
					rec.ID,
					humanize.Comma(int64(rec.Duration)),
					strconv.FormatFloat(rec.FPS, 'f', 2, 64),
					length,
					strconv.Itoa(len(rec.Sentences)),
					strconv.Itoa(rec.NumSegments(data.SamplesPerVideo)),
				}
				if sample {
					status := "ok"
					if _, err := data.Get(i); err != nil {
						status = err.Error()
					}
					row = append(row, status)
				}
				rows = append(rows, row)
			}

			out := cmd.OutOrStdout()
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable(headers, rows, aligns))
			}
			fmt.Fprintf(out, "%s videos (%s with segments), %s segments, %s frames\n",
				humanize.Comma(int64(data.Len())), humanize.Comma(int64(sampleable)),
				humanize.Comma(int64(totalSegments)), humanize.Comma(int64(totalFrames)))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of videos to list (0 for all)")
	cmd.Flags().BoolVar(&sample, "sample", false, "Assemble a clip for every listed video")
	return cmd
}
