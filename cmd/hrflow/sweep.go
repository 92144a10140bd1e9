package main

import (
	"context"

	"github.com/sicko7947/hrflow/hitl"
	"github.com/spf13/cobra"
)

func newSweepCommand(root *rootOptions) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue HITL requests",
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

			sweeper := hitl.NewSweeper(rt.reviews, root.settings.HITL.SweepSchedule, rt.logger)
			if once {
				n, err := sweeper.Sweep(ctx)
				if err != nil {
					return err
				}
				rt.logger.Info().Int("expired", n).Msg("Sweep finished")
				return nil
			}

			if err := sweeper.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			sweeper.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "sweep once and exit")
	return cmd
}
