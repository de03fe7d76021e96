// Package commands implements the ccnetcore command line.
package commands

import (
	"runtime"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/redochen/ccnetcore/internal/cli/ui"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type rootOptions struct {
	configFile string
	noColor    bool
	timeout    time.Duration
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "ccnetcore",
		Short: "Manage the ccnetcore account and navigation tables",
		Long: `ccnetcore maps users, roles, menus and permissions onto any of the
supported SQL stores and keeps their uniqueness and bookkeeping rules.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default ./ccnetcore.yaml or ~/.ccnetcore/ccnetcore.yaml)")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall deadline of the command")

	rootCmd.AddCommand(NewVersionCommand(opts))
	rootCmd.AddCommand(NewSchemaCommand(opts))
	rootCmd.AddCommand(NewBootstrapCommand(opts))
	rootCmd.AddCommand(NewRoleCommand(opts))
	rootCmd.AddCommand(NewUserCommand(opts))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ui.KeyValue(cmd.OutOrStdout(), opts.noColor,
				[2]string{"ccnetcore version", Version},
				[2]string{"Git commit", GitCommit},
				[2]string{"Build date", BuildDate},
				[2]string{"Go version", runtime.Version()},
			)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		noColor, _ := rootCmd.PersistentFlags().GetBool("no-color")
		ui.WriteError(rootCmd.ErrOrStderr(), err, noColor)
		return err
	}
	return nil
}
