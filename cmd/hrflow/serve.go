package main

import (
	"context"
	"fmt"

	"github.com/sicko7947/hrflow/api"
	"github.com/sicko7947/hrflow/config"
	"github.com/sicko7947/hrflow/hitl"
	"github.com/spf13/cobra"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var (
		withWorker  bool
		withSweeper bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "Run the HTTP API. With the in-memory broker the agent worker always runs in this process.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			rt, err := newRuntime(ctx, root.settings)
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.Close(context.Background()); err != nil {
					rt.logger.Error().Err(err).Msg("Shutdown incomplete")
				}
			}()

			if withWorker || root.settings.Broker.Backend == config.BackendMemory {
				w, err := rt.newWorker(ctx)
				if err != nil {
					return err
				}
				if err := w.Start(ctx); err != nil {
					return err
				}
			}

			if withSweeper {
				sweeper := hitl.NewSweeper(rt.reviews, root.settings.HITL.SweepSchedule, rt.logger)
				if err := sweeper.Start(ctx); err != nil {
					return err
				}
				defer sweeper.Stop()
			}

			app := api.NewServer(rt.store, rt.bus, rt.reviews,
				api.WithLogger(rt.logger),
				api.WithConfig(rt.core),
				api.WithMetrics(rt.metrics),
			).App()

			errCh := make(chan error, 1)
			go func() {
				rt.logger.Info().Str("address", root.settings.Server.Addr).Msg("Starting HTTP server")
				errCh <- app.Listen(root.settings.Server.Addr)
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("http server stopped: %w", err)
			case <-ctx.Done():
			}

			rt.logger.Info().Msg("Shutting down server...")
			if err := app.ShutdownWithTimeout(root.settings.Server.ShutdownTimeout); err != nil {
				rt.logger.Error().Err(err).Msg("Server forced to shutdown")
			}
			rt.logger.Info().Msg("Server stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also run the agent worker in this process")
	cmd.Flags().BoolVar(&withSweeper, "with-sweeper", true, "run the HITL expiry sweeper")
	return cmd
}
