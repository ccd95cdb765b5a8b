// Package cli wires the calmirror commands: ad-hoc sync, scheduled run,
// in-process serve, and config/connection verify.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"calmirror/internal/config"
	"calmirror/internal/log"
	"calmirror/internal/timerange"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInterrupted = 130
)

// Version is set at build time via -ldflags.
var Version = "dev"

type rootFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() (*cobra.Command, *rootFlags) {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "calmirror",
		Short: "One-way mirror of a source calendar into Google Calendar",
		Long: "calmirror copies events from a read-only calendar source (Zoho or an ICS feed)\n" +
			"into a Google Calendar as attendee-free mirror blocks. Repeated runs are\n" +
			"idempotent: unchanged events produce zero operations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.verbose {
				log.SetLevel(log.LevelDebug)
			}
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to YAML config file (environment overrides it)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newSyncCmd(flags),
		newRunCmd(flags),
		newServeCmd(flags),
		newVerifyCmd(flags),
		newVersionCmd(),
	)
	return root, flags
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the calmirror version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("calmirror " + Version)
		},
	}
}

func loadConfig(flags *rootFlags) (*config.Config, error) {
	return config.Load(flags.configPath)
}

// Execute runs the CLI and maps errors onto the exit-code taxonomy:
// 0 success, 1 operational failure, 2 usage or validation error,
// 130 interrupted.
func Execute(ctx context.Context) int {
	root, _ := newRootCmd()
	root.SetArgs(os.Args[1:])

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "calmirror: "+err.Error())
		return exitCode(ctx, err)
	}
	if ctx.Err() != nil {
		return ExitInterrupted
	}
	return ExitOK
}

func exitCode(ctx context.Context, err error) int {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return ExitInterrupted
	}

	var boundErr *timerange.BoundError
	if errors.As(err, &boundErr) {
		return ExitUsage
	}
	// Unknown flags/subcommands surface as cobra usage errors.
	if isUsageError(err) {
		return ExitUsage
	}
	return ExitFailure
}

func isUsageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "invalid argument", "flag needs an argument"} {
		if len(msg) >= len(prefix) && msg[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
