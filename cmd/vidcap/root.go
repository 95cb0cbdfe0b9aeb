package main

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unixpickle/vidcap/internal/config"
	"github.com/unixpickle/vidcap/internal/logging"
)

type commandContext struct {
	configFlag string
	verbose    bool

	// flagValues receives the configuration flags; only
	// explicitly set flags are copied into config.
	flagValues config.Config

	config *config.Config
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{flagValues: config.Default()}

	rootCmd := &cobra.Command{
		Use:           "vidcap",
		Short:         "Train and run video captioning models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["skipConfigLoad"] == "true" {
				return nil
			}
			return ctx.loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path (default "+config.DefaultPath+")")
	flags.BoolVarP(&ctx.verbose, "verbose", "v", false, "Enable debug logging")
	bindConfigFlags(flags, &ctx.flagValues)

	rootCmd.AddCommand(newTrainCommand(ctx))
	rootCmd.AddCommand(newVocabCommand(ctx))
	rootCmd.AddCommand(newExtractCommand(ctx))
	rootCmd.AddCommand(newInspectCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newCaptionCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

func (c *commandContext) loadConfig(cmd *cobra.Command) error {
	cfg, _, err := config.Load(strings.TrimSpace(c.configFlag))
	if err != nil {
		return err
	}
	if err := applyFlags(cmd.Flags(), cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.config = cfg
	return nil
}

// newLogger creates a logger, optionally copying entries
// to logFile.
func (c *commandContext) newLogger(logFile string) (*zap.SugaredLogger, error) {
	verbose := c.verbose
	if c.config != nil {
		verbose = verbose || c.config.Logging.Verbose
	}
	return logging.New(logging.Options{Verbose: verbose, LogFile: logFile})
}
