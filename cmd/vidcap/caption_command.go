package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unixpickle/vidcap/anycap"
	"github.com/unixpickle/vidcap/vocab"
)

func newCaptionCommand(ctx *commandContext) *cobra.Command {
	var epoch int
	var limit int

	cmd := &cobra.Command{
		Use:   "caption",
		Short: "Caption videos with a trained model",
		Long: "Load the encoder and decoder checkpoints of an epoch (the latest by\n" +
			"default) and greedily caption the center clip of each video.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			logger, err := ctx.newLogger("")
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			v, err := vocab.Load(cfg.ResolvePath(cfg.Paths.Vocab))
			if err != nil {
				if errors.Is(err, vocab.ErrNotFound) {
					return fmt.Errorf("%w (run \"vidcap vocab\" or train first)", err)
				}
				return err
			}
			enc, dec, err := buildModels(cfg, device(), v)
			if err != nil {
				return err
			}

			encLayout, decLayout := checkpointLayouts(cfg)
			if epoch == 0 {
				epochs, err := encLayout.Epochs()
				if err != nil {
					return err
				}
				for i := len(epochs) - 1; i >= 0; i-- {
					if decLayout.Exists(epochs[i]) {
						epoch = epochs[i]
						break
					}
				}
				if epoch == 0 {
					return fmt.Errorf("no checkpoints in %s", encLayout.Dir())
				}
			}
			if err := encLayout.Load(epoch, enc.Parameters()); err != nil {
				return err
			}
			if err := decLayout.Load(epoch, dec.Parameters()); err != nil {
				return err
			}
			logger.Infow("loaded checkpoints", "epoch", epoch)

			data, err := loadDataset(cfg, logger, false)
			if err != nil {
				return err
			}
			var rows [][]string
			for i := 0; i < data.Len() && (limit <= 0 || i < limit); i++ {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				sample, err := data.Video(i)
				if err != nil {
					logger.Warnw("could not load clip", "video", data.Records[i].ID, "error", err)
					continue
				}
				reference := ""
				if rec := data.Records[i]; len(rec.Sentences) > 0 {
					reference = rec.Sentences[0]
				}
				caption := anycap.Caption(enc, dec, v, sample.Clip, cfg.Model.MaxSeqLen)
				rows = append(rows, []string{sample.ID, caption, reference})
			}
			if len(rows) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Video", "Caption", "Reference"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&epoch, "epoch", 0, "Checkpoint epoch (0 for the latest)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of videos to caption (0 for all)")
	return cmd
}
