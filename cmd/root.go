// Package cmd holds the collabhub command line.
package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/techagentng/collabhub/config"
)

var (
	conf *config.Config

	rootCmd = &cobra.Command{
		Use:          "collabhub",
		Short:        "Conversations and social graph for businesses and influencers",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load()
			if err != nil {
				return err
			}
			conf = c
			setupLogger(conf)
			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd, workerCmd, migrateCmd, seedCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func setupLogger(c *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	level := zerolog.InfoLevel
	if c.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if c.IsDevelopment() {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
		return
	}
	log.Logger = zerolog.New(os.Stdout).
		With().
		Timestamp().
		Logger()
}
