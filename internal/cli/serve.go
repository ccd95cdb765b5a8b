package cli

import (
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"calmirror/internal/log"
)

func newServeCmd(root *rootFlags) *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled syncs in-process on a cron schedule",
		Long: "Starts an in-process scheduler that executes the run pipeline on the\n" +
			"configured cron expression until interrupted. A cycle that is still in\n" +
			"flight when the next tick arrives causes that tick to be skipped, so two\n" +
			"cycles never race each other or the state file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()

			// busy guards against overlapping cycles within this process.
			var busy atomic.Bool

			c := cron.New()
			_, err = c.AddFunc(cfg.Schedule, func() {
				if !busy.CompareAndSwap(false, true) {
					log.Info("cycle still running, skipping tick")
					return
				}
				defer busy.Store(false)

				if err := runScheduled(ctx, cfg, opts); err != nil {
					// The alert machine already recorded the failure; serve
					// keeps going until the scheduler is stopped.
					log.Error("scheduled cycle failed", err)
				}
			})
			if err != nil {
				return err
			}

			log.Info("scheduler starting", "schedule", cfg.Schedule)
			c.Start()
			<-ctx.Done()
			log.Info("scheduler stopping")
			<-c.Stop().Done()
			return nil
		},
	}

	bindSyncFlags(cmd, &opts)
	return cmd
}
