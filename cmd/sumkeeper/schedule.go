package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ning0612/Sumkeeper/internal/daemon"
	"github.com/Ning0612/Sumkeeper/internal/service"
	"github.com/Ning0612/Sumkeeper/internal/state"
)

type scheduleOptions struct {
	paths     []string
	checksums string
	interval  time.Duration
	cron      string
}

func newScheduleCmd(global *globalOptions) *cobra.Command {
	opts := &scheduleOptions{}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Verify periodically against a baseline",
		Long: `schedule runs verify on schedule.interval or schedule.cron until stopped
with Ctrl+C, SIGTERM or 'sumkeeper schedule stop'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd, global, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.paths, "path", "p", nil, "targets to verify (default: baseline root)")
	cmd.Flags().StringVarP(&opts.checksums, "checksums", "k", "", "baseline file (default: storage.baseline_path)")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "override schedule.interval")
	cmd.Flags().StringVar(&opts.cron, "cron", "", "override schedule.cron")

	cmd.AddCommand(newScheduleStopCmd(global), newScheduleStatusCmd(global))
	return cmd
}

func runSchedule(cmd *cobra.Command, global *globalOptions, opts *scheduleOptions) error {
	a, err := newApp(global)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.interval > 0 || opts.cron != "" {
		a.cfg.Schedule.Interval = opts.interval
		a.cfg.Schedule.Cron = opts.cron
		if err := a.cfg.Validate(); err != nil {
			return err
		}
	}

	pidFile := daemon.ForStateDir(a.cfg.Storage.StateDir)
	if err := pidFile.Write(); err != nil {
		return err
	}
	defer pidFile.Remove()

	sched, err := service.NewScheduleService(a.cfg, a.svc, a.history)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	sched.OnResult = func(target string, res *service.Outcome, err error) {
		stamp := time.Now().Format(time.DateTime)
		switch {
		case err != nil:
			fmt.Fprintf(out, "%s  verify failed: %v\n", stamp, err)
		case res.Verification != nil:
			sum := res.Verification.Summary
			fmt.Fprintf(out, "%s  %s: %d ok, %d modified, %d new, %d removed\n",
				stamp, res.Root, sum.Ok, sum.Modified, sum.New, sum.Removed)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx, service.ScheduleOptions{Targets: opts.paths, Checksums: opts.checksums}); err != nil {
		return err
	}
	status := sched.Status()
	fmt.Fprintf(cmd.ErrOrStderr(), "Schedule started (PID file %s), next run at %s\n",
		pidFile.Path(), status.SchedulerStats.NextRunTime.Format(time.DateTime))

	select {
	case <-ctx.Done():
	case <-sched.Done():
	}

	// The loop has already exited when ctx ended it
	sched.Stop()
	fmt.Fprintln(cmd.ErrOrStderr(), "Schedule stopped")
	return nil
}

func newScheduleStopCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}

			pid, err := daemon.ForStateDir(cfg.Storage.StateDir).Stop()
			if errors.Is(err, daemon.ErrNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "Schedule is not running")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent stop signal to schedule (PID %d)\n", pid)
			return nil
		},
	}
}

func newScheduleStatusCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a schedule is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(global)
			if err != nil {
				return err
			}
			defer a.Close()

			w := cmd.OutOrStdout()
			pidFile := daemon.ForStateDir(a.cfg.Storage.StateDir)
			if running, _ := pidFile.IsRunning(); running {
				pid, _ := pidFile.Read()
				fmt.Fprintf(w, "Schedule: running (PID %d)\n", pid)
			} else {
				fmt.Fprintln(w, "Schedule: not running")
			}

			switch {
			case a.cfg.Schedule.Cron != "":
				fmt.Fprintf(w, "Cron:     %s\n", a.cfg.Schedule.Cron)
			case a.cfg.Schedule.Interval > 0:
				fmt.Fprintf(w, "Interval: %s\n", a.cfg.Schedule.Interval)
			default:
				fmt.Fprintln(w, "No schedule configured")
			}

			runs, err := a.history.GetAllHistory(1)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(w, "Last run: none")
				return nil
			}
			last := runs[0]
			fmt.Fprintf(w, "Last run: %s %s %s at %s\n", last.Mode, last.Status, last.Root, last.StartTime.Format(time.DateTime))
			if last.Mode == service.ModeVerify && last.Status == state.RunCompleted {
				fmt.Fprintf(w, "          %d ok, %d modified, %d new, %d removed\n", last.Ok, last.Modified, last.New, last.Removed)
			}
			return nil
		},
	}
}
