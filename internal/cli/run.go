package cli

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"calmirror/internal/alert"
	"calmirror/internal/config"
	"calmirror/internal/log"
)

func newRunCmd(root *rootFlags) *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scheduled entry point: sync, update alert state, notify on repeated failures",
		Long: "Runs one sync pass and feeds its outcome through the alert state machine:\n" +
			"consecutive failures past the threshold post a webhook alert (rate-limited,\n" +
			"within the configured hours window); the first success after failures posts\n" +
			"a recovery notification and resets the counter.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			return runScheduled(cmd.Context(), cfg, opts)
		},
	}

	bindSyncFlags(cmd, &opts)
	return cmd
}

// runScheduled executes one sync pass and applies the alert state machine to
// its outcome. The sync error (if any) is returned unchanged so the exit code
// reflects the run itself; notification delivery failures are logged only.
func runScheduled(ctx context.Context, cfg *config.Config, opts syncOptions) error {
	runID := uuid.NewString()
	now := time.Now().UTC()
	log.Info("scheduled run start", "run_id", runID)

	syncErr := runSync(ctx, cfg, opts)

	loc, err := time.LoadLocation(cfg.Alert.Timezone)
	if err != nil {
		log.Error("bad alert timezone, using UTC", err, "timezone", cfg.Alert.Timezone)
		loc = time.UTC
	}
	gating := alert.Gating{
		MinFailures: cfg.Alert.MinFailures,
		RateHours:   cfg.Alert.RateHours,
		HoursStart:  cfg.Alert.HoursStart,
		HoursEnd:    cfg.Alert.HoursEnd,
		Location:    loc,
	}

	prev := alert.Load(cfg.Alert.StateFile)
	errMsg := ""
	if syncErr != nil {
		errMsg = syncErr.Error()
	}
	next, action := alert.Next(prev, syncErr == nil, errMsg, now, gating)

	notifier := alert.NewNotifier(cfg.Alert.WebhookURL, loc)
	switch action {
	case alert.ActionAlert:
		if notifier.Configured() {
			if derr := notifier.SendAlert(ctx, next); derr != nil {
				log.Error("alert webhook delivery failed", derr, "run_id", runID)
			} else {
				log.Info("alert sent", "run_id", runID, "consecutive_failures", next.ConsecutiveFailures)
			}
		} else {
			// Nothing was sent, so the rate-limit timestamp must not advance.
			next.LastAlertSentAt = prev.LastAlertSentAt
		}
	case alert.ActionRecovery:
		if notifier.Configured() {
			if derr := notifier.SendRecovery(ctx, next.LastRun); derr != nil {
				log.Error("recovery webhook delivery failed", derr, "run_id", runID)
			} else {
				log.Info("recovery sent", "run_id", runID)
			}
		}
	}

	if err := alert.Save(cfg.Alert.StateFile, next); err != nil {
		log.Error("alert state save failed", err, "path", cfg.Alert.StateFile)
	}

	log.Info("scheduled run finished", "run_id", runID, "status", next.LastStatus)
	return syncErr
}
