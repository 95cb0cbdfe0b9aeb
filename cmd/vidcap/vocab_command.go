package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/unixpickle/vidcap/vocab"
)

func newVocabCommand(ctx *commandContext) *cobra.Command {
	var rebuild bool
	var show int

	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Build or show the caption vocabulary",
		Long: "Load the vocabulary, building it from the annotation file if it does not\n" +
			"exist yet, and print its most frequent tokens.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			logger, err := ctx.newLogger("")
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if rebuild {
				path := cfg.ResolvePath(cfg.Paths.Vocab)
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("remove vocabulary: %w", err)
				}
			}
			v, err := loadVocab(cfg, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			kind := "characters"
			if v.TokenLevel {
				kind = "words"
			}
			fmt.Fprintf(out, "%d tokens (%s, min frequency %d)\n", v.Len(), kind, v.MinFreq)

			var rows [][]string
			for id := vocab.UnknownID + 1; id < v.Len() && id <= vocab.UnknownID+show; id++ {
				rows = append(rows, []string{strconv.Itoa(id), v.Token(id)})
			}
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable([]string{"ID", "Token"}, rows,
					[]columnAlignment{alignRight, alignLeft}))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Rebuild the vocabulary from the annotation file")
	cmd.Flags().IntVar(&show, "show", 20, "Number of tokens to print")
	return cmd
}
