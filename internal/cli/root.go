// Package cli wires the chapterfacts command tree.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kittclouds/chapterfacts/pkg/config"
	"github.com/kittclouds/chapterfacts/pkg/logger"
)

// options holds state shared by every subcommand of one command tree.
type options struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "chapterfacts",
		Short: "chapterfacts: chapter-scoped fact memory",
		Long: `chapterfacts keeps a versioned, chapter-scoped memory of facts extracted
from a serialized story. Facts are ingested chapter by chapter; updates
supersede older versions without erasing them, so any chapter can be
queried for exactly what was known at that point.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.initConfig(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Cleanup()
		},
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default is ./chapterfacts.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("store", "", "store path (JSONL file or SQLite database)")
	flags.String("backend", "", "store backend (jsonl, sqlite)")
	flags.String("vocabulary", "", "vocabulary YAML file (default is the built-in vocabulary)")

	rootCmd.AddCommand(
		newIngestCommand(opts),
		newQueryCommand(opts),
		newTimelineCommand(opts),
		newChainCommand(opts),
		newShowCommand(opts),
		newVerifyCommand(opts),
		newStatsCommand(opts),
		newExportCommand(opts),
		newImportCommand(opts),
		newEvalCommand(opts),
	)
	return rootCmd
}

// Execute runs the command tree.
func Execute() error {
	return NewRootCommand().Execute()
}

// initConfig reads config file and ENV variables, then binds flags.
func (o *options) initConfig(cmd *cobra.Command) error {
	v, err := config.InitViper(o.cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	bindings := map[string]string{
		"log.level":       "log-level",
		"log.format":      "log-format",
		"store.path":      "store",
		"store.backend":   "backend",
		"vocabulary.path": "vocabulary",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return err
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	o.v = v
	o.cfg = cfg

	return logger.Initialize(cfg.Log.Level, cfg.JSONLogs())
}
