package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/unixpickle/vidcap/anycap"
	"github.com/unixpickle/vidcap/runlog"
	"github.com/unixpickle/vidcap/train"
)

func newTrainCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Train an encoder and decoder",
		Long: "Train a clip encoder and caption decoder end-to-end, saving both\n" +
			"after every epoch. Use --start-from-ep to resume from checkpoints.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			logger, err := ctx.newLogger(filepath.Join(cfg.Paths.Models, "train.log"))
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			v, err := loadVocab(cfg, logger)
			if err != nil {
				return err
			}
			data, err := loadDataset(cfg, logger, true)
			if err != nil {
				return err
			}
			data = withSegments(data, logger)
			if data.Len() < cfg.Training.BatchSize {
				return fmt.Errorf("only %d trainable videos for batch size %d", data.Len(),
					cfg.Training.BatchSize)
			}

			c := device()
			enc, dec, err := buildModels(cfg, c, v)
			if err != nil {
				return err
			}
			batches := &anycap.Loader{
				Source: data,
				Collator: &anycap.Collator{
					Creator: c,
					Vocab:   v,
					MaxLen:  cfg.Model.MaxSeqLen,
				},
				BatchSize: cfg.Training.BatchSize,
				Workers:   cfg.Training.Workers,
				DropLast:  true,
			}

			if err := os.MkdirAll(cfg.Paths.Models, 0o755); err != nil {
				return fmt.Errorf("create model directory: %w", err)
			}
			history, err := runlog.Open(cfg.HistoryPath())
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer history.Close()

			logger.Infow("training data",
				"videos", humanize.Comma(int64(data.Len())),
				"batches", batches.NumBatches(),
				"vocab", v.Len())

			o := &train.Orchestrator{
				Config: trainConfig(cfg),
				Device: c,
				Trainer: &anycap.Trainer{
					Encoder: enc,
					Decoder: dec,
					Shards:  cfg.Training.Shards,
				},
				Batches: batches,
				History: history,
				Logger:  logger,
			}
			err = o.Run(cmd.Context())
			if errors.Is(err, train.ErrNothingToTrain) {
				return fmt.Errorf("%w, aborting training", err)
			}
			return err
		},
	}
}
