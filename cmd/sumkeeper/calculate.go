package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ning0612/Sumkeeper/internal/domain"
	"github.com/Ning0612/Sumkeeper/internal/progress"
	"github.com/Ning0612/Sumkeeper/internal/report"
	"github.com/Ning0612/Sumkeeper/internal/service"
)

// completionTimeout bounds the wait for runComplete after a run returned
const completionTimeout = 5 * time.Second

type calculateOptions struct {
	path      string
	algorithm string
	format    string
	output    string
	resume    bool
	checksums string
}

func newCalculateCmd(global *globalOptions) *cobra.Command {
	opts := &calculateOptions{}

	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Hash a file or directory tree and write a baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := service.CheckModes(opts.algorithm, opts.checksums); err != nil {
				return err
			}
			return runCalculate(cmd, global, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.path, "path", "p", "", "file or directory to hash (default: working directory)")
	cmd.Flags().StringVarP(&opts.algorithm, "algorithm", "a", "", "hash algorithm: md5, sha1, sha256 (default: scan.algorithm)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "report format: text, json, yaml (default: report.format)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "baseline file (default: storage.baseline_path)")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "continue from the snapshot of a stopped run")
	cmd.Flags().StringVar(&opts.checksums, "checksums", "", "")
	cmd.Flags().MarkHidden("checksums")
	return cmd
}

func runCalculate(cmd *cobra.Command, global *globalOptions, opts *calculateOptions) error {
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

	out, runErr := a.svc.Calculate(cmd.Context(), service.CalculateOptions{
		Root:      opts.path,
		Algorithm: opts.algorithm,
		Resume:    opts.resume,
		Output:    opts.output,
	})
	if out == nil {
		return runErr
	}
	if _, ok := con.waitComplete(completionTimeout); !ok {
		fmt.Fprintln(stderr, "Warning: run finished without a completion event")
	}

	switch {
	case errors.Is(runErr, domain.ErrCancelled):
		if out.Output != "" {
			fmt.Fprintf(stderr, "Stopped after %d file(s); progress saved to %s. Run with --resume to continue.\n", len(out.Records), out.Output)
		} else {
			fmt.Fprintf(stderr, "Stopped after %d file(s); progress could not be saved.\n", len(out.Records))
		}
		return runErr
	case runErr != nil:
		return runErr
	}

	if err := writeRecords(cmd.OutOrStdout(), out.Records, format); err != nil {
		return err
	}

	size := ""
	if info, err := os.Stat(out.Output); err == nil {
		size = " (" + progress.FormatBytes(info.Size()) + ")"
	}
	fmt.Fprintf(stderr, "Baseline of %d file(s) written to %s%s in %s\n",
		len(out.Records), out.Output, size, out.EndTime.Sub(out.StartTime).Round(time.Millisecond))
	return nil
}

func writeRecords(w io.Writer, records []domain.ChecksumRecord, format report.Format) error {
	text, err := report.New(format).Render(records)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if text != "" {
		fmt.Fprintln(w, text)
	}
	return nil
}

// reportFormat resolves --format against report.format
func reportFormat(a *app, flag string) (report.Format, error) {
	if flag == "" {
		return a.cfg.ReportFormat(), nil
	}
	return report.ParseFormat(flag)
}
