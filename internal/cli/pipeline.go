package cli

import (
	"context"
	"fmt"
	"time"

	"calmirror/internal/config"
	"calmirror/internal/gcal"
	"calmirror/internal/log"
	"calmirror/internal/mirror"
	"calmirror/internal/source"
	"calmirror/internal/source/icsfeed"
	"calmirror/internal/source/zoho"
	"calmirror/internal/timerange"
)

// syncOptions are the per-invocation knobs shared by sync and run.
type syncOptions struct {
	since         string
	until         string
	dryRun        bool
	deleteMissing bool
}

func newReader(ctx context.Context, cfg *config.Config) (source.Reader, error) {
	switch cfg.Source.Type {
	case config.SourceZoho:
		return zoho.New(ctx, cfg.Source.Zoho), nil
	case config.SourceICS:
		return icsfeed.New(cfg.Source.ICS), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

// runSync executes one fetch → normalize → plan → execute pass. With dryRun
// set, the full plan (including would-deletes) is computed and reported but
// nothing is written.
func runSync(ctx context.Context, cfg *config.Config, opts syncOptions) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	reminders, err := mirror.ParseReminders(cfg.Mirror.Reminders)
	if err != nil {
		return fmt.Errorf("reminders config: %w", err)
	}

	since, until, err := timerange.Resolve(opts.since, opts.until, time.Now().UTC(),
		cfg.Window.LookbackDays, cfg.Window.LookaheadDays)
	if err != nil {
		return err
	}
	log.Info("sync window resolved",
		"since", since.Format(time.RFC3339), "until", until.Format(time.RFC3339))

	reader, err := newReader(ctx, cfg)
	if err != nil {
		return err
	}
	dst, err := gcal.New(ctx, cfg.Google.TokenFile, cfg.Google.CalendarID)
	if err != nil {
		return err
	}

	events, err := reader.Events(ctx, since, until)
	if err != nil {
		return fmt.Errorf("fetch source events: %w", err)
	}

	normOpts := mirror.Options{
		TitleMode: cfg.Mirror.TitleMode,
		KeySuffix: cfg.Mirror.KeySuffix,
		Reminders: reminders,
	}
	desired := make([]mirror.MirroredEvent, 0, len(events))
	for _, ev := range events {
		if ev.Cancelled {
			continue
		}
		desired = append(desired, mirror.Normalize(ev, normOpts))
	}

	existing, err := dst.List(ctx, since, until)
	if err != nil {
		return err
	}

	deleteMissing := opts.deleteMissing || cfg.Mirror.DeleteMissing
	plan := mirror.BuildPlan(desired, existing, deleteMissing)
	log.Info("plan computed", "summary", plan.Summary())

	if opts.dryRun {
		reportPlan(plan, deleteMissing)
		return nil
	}

	res, err := mirror.Execute(ctx, dst, plan, mirror.DefaultPolicy(gcal.IsRetryable))
	log.Info("sync finished",
		"inserted", res.Inserted, "patched", res.Patched, "deleted", res.Deleted, "failed", res.Failed)
	return err
}

// reportPlan prints the dry-run report to stdout.
func reportPlan(plan mirror.Plan, deleteMissing bool) {
	for _, item := range plan.Inserts {
		fmt.Printf("[DRY] INSERT %s  %s\n", item.Key, item.Desired.Title)
	}
	for _, item := range plan.Patches {
		fmt.Printf("[DRY] PATCH  %s  %s\n", item.Key, item.Desired.Title)
		for _, d := range item.Diffs {
			fmt.Printf("  - %s\n", d)
		}
	}
	for _, item := range plan.Deletes {
		fmt.Printf("[DRY] DELETE %s  %s\n", item.Key, item.Title)
	}
	wouldDelete := 0
	for _, item := range plan.Skips {
		switch item.Reason {
		case mirror.SkipWouldDelete:
			wouldDelete++
			fmt.Printf("[DRY] would delete (no longer in source)  %s  %s\n", item.Key, item.Title)
		case mirror.SkipInSync:
			fmt.Printf("[DRY] SKIP   %s  (already in sync)\n", item.Key)
		}
	}
	fmt.Printf("[DRY] summary: %s\n", plan.Summary())
	if wouldDelete > 0 && !deleteMissing {
		fmt.Println("[DRY] (pass --delete-missing to remove those events from the destination)")
	}
}
