package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"calmirror/internal/config"
	"calmirror/internal/gcal"
	"calmirror/internal/source/icsfeed"
	"calmirror/internal/source/zoho"
	"calmirror/internal/timerange"
)

func newVerifyCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check config and test source and destination connections",
		Long: "Validates required settings, then probes the source and the destination\n" +
			"calendar with read-only calls so scope or credential problems surface\n" +
			"before the first scheduled run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return verify(cmd.Context(), cfg)
		},
	}
}

func verify(ctx context.Context, cfg *config.Config) error {
	switch cfg.Source.Type {
	case config.SourceZoho:
		z := zoho.New(ctx, cfg.Source.Zoho)
		cals, err := z.ListCalendars(ctx)
		if err != nil {
			return fmt.Errorf("zoho: %w", err)
		}
		fmt.Printf("zoho: ok (%d calendars visible)\n", len(cals))
	case config.SourceICS:
		r := icsfeed.New(cfg.Source.ICS)
		since, until, err := timerange.Resolve("", "", time.Now().UTC(), 1, 1)
		if err != nil {
			return err
		}
		if _, err := r.Events(ctx, since, until); err != nil {
			return fmt.Errorf("ics: %w", err)
		}
		fmt.Println("ics: ok (feed fetched and parsed)")
	}

	g, err := gcal.New(ctx, cfg.Google.TokenFile, cfg.Google.CalendarID)
	if err != nil {
		return fmt.Errorf("google: %w", err)
	}
	cals, err := g.ListCalendars(ctx)
	if err != nil {
		return fmt.Errorf("google: %w", err)
	}
	fmt.Printf("google: ok (%d calendars visible)\n", len(cals))

	fmt.Println("config OK; source and destination connections verified")
	return nil
}
