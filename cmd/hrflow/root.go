package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sicko7947/hrflow/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	settings   *config.Settings
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "hrflow",
		Short:         "HR policy design workflow with human approval gates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			s, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.settings = s
			log.Logger = newLogger(s.Log.Level, s.Log.Format)
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml")

	cmd.AddCommand(
		newServeCommand(opts),
		newWorkerCommand(opts),
		newSweepCommand(opts),
	)
	return cmd
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if format == "json" {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
