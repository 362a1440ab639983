package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Ning0612/Sumkeeper/internal/testutil"
)

// mockRunner is a mock implementation of Runner for testing
type mockRunner struct {
	mu        sync.Mutex
	calls     []string
	shouldErr bool
}

func (m *mockRunner) RunVerify(ctx context.Context, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, target)
	if m.shouldErr {
		return errors.New("baseline not found")
	}
	return nil
}

func (m *mockRunner) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func TestNew_Validation(t *testing.T) {
	runner := &mockRunner{}

	tests := []struct {
		name    string
		config  Config
		runner  Runner
		wantErr bool
	}{
		{"interval", Config{Interval: time.Second}, runner, false},
		{"cron", Config{Cron: "*/5 * * * *"}, runner, false},
		{"zero interval", Config{}, runner, true},
		{"negative interval", Config{Interval: -time.Second}, runner, true},
		{"bad cron", Config{Cron: "sometimes"}, runner, true},
		{"both", Config{Interval: time.Second, Cron: "* * * * *"}, runner, true},
		{"nil runner", Config{Interval: time.Second}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config, tt.runner)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScheduler_CronNextRun(t *testing.T) {
	s, err := New(Config{Cron: "0 3 * * *"}, &mockRunner{})
	if err != nil {
		t.Fatal(err)
	}

	from := time.Date(2026, 5, 1, 10, 30, 0, 0, time.Local)
	want := time.Date(2026, 5, 2, 3, 0, 0, 0, time.Local)
	if got := s.schedule.Next(from); !got.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", from, got, want)
	}
}

func TestScheduler_RunsEveryTarget(t *testing.T) {
	runner := &mockRunner{}
	s, err := New(Config{Interval: 50 * time.Millisecond, Targets: []string{"/a", "/b"}}, runner)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !s.Status().Running {
		t.Error("Scheduler should be running")
	}

	testutil.AssertEventually(t, 2*time.Second, func() bool { return runner.count() >= 4 }, "expected two ticks")

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	runner.mu.Lock()
	first := runner.calls[:2]
	runner.mu.Unlock()
	if first[0] != "/a" || first[1] != "/b" {
		t.Errorf("targets run out of order: %v", first)
	}

	status := s.Status()
	if status.Running {
		t.Error("Scheduler should not be running after Stop")
	}
	if status.SuccessfulRuns < 2 || status.FailedRuns != 0 {
		t.Errorf("status = %+v", status)
	}
}

func TestScheduler_DoubleStart(t *testing.T) {
	s, _ := New(Config{Interval: time.Hour}, &mockRunner{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(ctx); err == nil {
		t.Error("expected error on second Start")
	}
	s.Stop()

	if err := s.Start(ctx); err == nil {
		t.Error("expected error on restart after Stop")
	}
}

func TestScheduler_StopNotRunning(t *testing.T) {
	s, _ := New(Config{Interval: time.Hour}, &mockRunner{})
	if err := s.Stop(); err == nil {
		t.Error("expected error stopping a scheduler that never started")
	}
}

func TestScheduler_ContextCancellation(t *testing.T) {
	s, _ := New(Config{Interval: time.Hour}, &mockRunner{})
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	cancel()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not exit on context cancel")
	}
	if s.Status().Running {
		t.Error("Scheduler should not be running after cancel")
	}
}

func TestScheduler_ErrorStatistics(t *testing.T) {
	runner := &mockRunner{shouldErr: true}
	s, _ := New(Config{Interval: 30 * time.Millisecond, Targets: []string{"/a"}}, runner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	testutil.AssertEventually(t, 2*time.Second, func() bool { return s.Status().FailedRuns >= 1 })
	s.Stop()

	status := s.Status()
	if status.LastError != "baseline not found" {
		t.Errorf("LastError = %q", status.LastError)
	}
	if status.TotalRuns != status.FailedRuns {
		t.Errorf("total %d != failed %d", status.TotalRuns, status.FailedRuns)
	}
}
