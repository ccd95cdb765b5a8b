package cli

import (
	"github.com/spf13/cobra"
)

func newSyncCmd(root *rootFlags) *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "One-off sync from the source to the destination (no state, no alerting)",
		Long: "Runs a single fetch → normalize → plan → execute pass. Intended for\n" +
			"interactive and debug use; it never touches the alert state file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			return runSync(cmd.Context(), cfg, opts)
		},
	}

	bindSyncFlags(cmd, &opts)
	return cmd
}

func bindSyncFlags(cmd *cobra.Command, opts *syncOptions) {
	cmd.Flags().StringVar(&opts.since, "since", "",
		`start of range: date, RFC 3339, or relative like "-7d" (pass as --since=-7d)`)
	cmd.Flags().StringVar(&opts.until, "until", "",
		`end of range: date, RFC 3339, or relative like "+30d"`)
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false,
		"compute and report the full plan without writing to the destination")
	cmd.Flags().BoolVar(&opts.deleteMissing, "delete-missing", false,
		"delete mirrored events whose source event disappeared (default: report only)")
}
