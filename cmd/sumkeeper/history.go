package main

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ning0612/Sumkeeper/internal/state"
)

type historyOptions struct {
	path  string
	limit int
}

func newHistoryCmd(global *globalOptions) *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent calculate and verify runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(global)
			if err != nil {
				return err
			}
			defer a.Close()

			var runs []state.RunRecord
			if opts.path != "" {
				root, err := filepath.Abs(opts.path)
				if err != nil {
					return err
				}
				runs, err = a.history.GetHistory(root, opts.limit)
				if err != nil {
					return err
				}
			} else {
				runs, err = a.history.GetAllHistory(opts.limit)
				if err != nil {
					return err
				}
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}
			return writeHistory(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().StringVarP(&opts.path, "path", "p", "", "only runs over this root")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "maximum number of runs")
	return cmd
}

func writeHistory(w io.Writer, runs []state.RunRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tMODE\tSTATUS\tALGO\tFILES\tOK\tMOD\tNEW\tREM\tDURATION\tROOT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.StartTime.Local().Format(time.DateTime),
			r.Mode,
			r.Status,
			r.Algorithm,
			r.Files,
			r.Ok, r.Modified, r.New, r.Removed,
			r.Duration().Round(time.Millisecond),
			r.Root,
		)
		if r.Error != "" {
			fmt.Fprintf(tw, "\t\terror: %s\n", r.Error)
		}
	}
	return tw.Flush()
}
