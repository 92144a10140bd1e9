package main

import (
	"context"
	"errors"

	"github.com/sicko7947/hrflow/config"
	"github.com/spf13/cobra"
)

var errMemoryBroker = errors.New("the worker needs a shared broker; set broker.backend to amqp or use serve")

func newWorkerCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume agent tasks and HITL decisions from the broker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if root.settings.Broker.Backend == config.BackendMemory {
				return errMemoryBroker
			}

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

			w, err := rt.newWorker(ctx)
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			rt.logger.Info().Msg("Worker stopping")
			return nil
		},
	}
}
