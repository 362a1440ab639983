package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ning0612/Sumkeeper/internal/report"
	"github.com/Ning0612/Sumkeeper/internal/service"
)

type verifyOptions struct {
	path      string
	checksums string
	format    string
	algorithm string
}

func newVerifyCmd(global *globalOptions) *cobra.Command {
	opts := &verifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Re-hash a tree and compare it with a baseline",
		Long: `verify re-hashes the baseline's root (or one file recorded in it) with the
baseline's algorithm and reports every path as OK, MODIFIED, NEW or REMOVED.

Exits with status 2 when any path is not OK.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := service.CheckModes(opts.algorithm, opts.checksums); err != nil {
				return err
			}
			return runVerify(cmd, global, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.path, "path", "p", "", "baseline root or a recorded file (default: baseline root)")
	cmd.Flags().StringVarP(&opts.checksums, "checksums", "k", "", "baseline file (default: storage.baseline_path)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "report format: text, json, yaml (default: report.format)")
	cmd.Flags().StringVarP(&opts.algorithm, "algorithm", "a", "", "")
	cmd.Flags().MarkHidden("algorithm")
	return cmd
}

func runVerify(cmd *cobra.Command, global *globalOptions, opts *verifyOptions) error {
	a, err := newApp(global)
	if err != nil {
		return err
	}
	defer a.Close()

	format, err := reportFormat(a, opts.format)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	con := newConsole(a.bus, stderr)
	stop := con.start()
	defer stop()

	out, err := a.svc.Verify(cmd.Context(), service.VerifyOptions{
		Target:    opts.path,
		Checksums: opts.checksums,
	})
	if out == nil {
		return err
	}
	if _, ok := con.waitComplete(completionTimeout); !ok {
		fmt.Fprintln(stderr, "Warning: run finished without a completion event")
	}
	if err != nil {
		return err
	}

	result := out.Verification
	text, err := report.RenderClassification(result.Entries, format)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if text != "" {
		fmt.Fprintln(cmd.OutOrStdout(), text)
	}

	sum := result.Summary
	fmt.Fprintf(stderr, "%d ok, %d modified, %d new, %d removed\n", sum.Ok, sum.Modified, sum.New, sum.Removed)
	if !sum.Clean() {
		return fmt.Errorf("%w under %s", service.ErrChangesDetected, result.Root)
	}
	return nil
}
