package main

import (
	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags
type globalOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "sumkeeper",
		Short: "Record file checksums and verify trees against them",
		Long: `sumkeeper hashes a file or directory tree into a baseline file and later
re-hashes the tree to report which files are ok, modified, new or removed.

While a run is in progress press 'p' (then Enter) to pause or resume and
'q' to stop. A stopped calculate run can be continued with --resume.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: search for sumkeeper.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newCalculateCmd(opts),
		newVerifyCmd(opts),
		newScheduleCmd(opts),
		newHistoryCmd(opts),
	)
	return cmd
}
