package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/Ning0612/Sumkeeper/internal/config"
	"github.com/Ning0612/Sumkeeper/internal/domain"
	"github.com/Ning0612/Sumkeeper/internal/events"
	"github.com/Ning0612/Sumkeeper/internal/lock"
	"github.com/Ning0612/Sumkeeper/internal/service"
	"github.com/Ning0612/Sumkeeper/internal/state"
	"github.com/Ning0612/Sumkeeper/internal/store"
	"github.com/Ning0612/Sumkeeper/internal/testutil"
)

type harness struct {
	svc      *service.ChecksumService
	bus      *events.Bus
	cfg      *config.Config
	history  *state.Manager
	root     string
	baseline string

	mu          sync.Mutex
	completions []events.Completion
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("config.Default() error = %v", err)
	}
	base := t.TempDir()
	cfg.Storage.StateDir = filepath.Join(base, "state")
	cfg.Storage.BaselinePath = filepath.Join(base, "checksum.dat")
	cfg.Storage.Binary = false

	history, err := state.NewManager(cfg.Storage.StateDir)
	if err != nil {
		t.Fatalf("state.NewManager() error = %v", err)
	}
	t.Cleanup(func() { history.Close() })

	root := filepath.Join(base, "data")
	testutil.WriteTree(t, root, map[string]string{
		"a.txt":     "alpha",
		"b.txt":     "bravo",
		"sub/c.txt": "charlie",
	})

	h := &harness{
		bus:      events.NewBus(nil),
		cfg:      cfg,
		history:  history,
		root:     root,
		baseline: cfg.Storage.BaselinePath,
	}
	h.bus.Bind(events.TopicRunComplete, events.Listener{
		ID: "test.completions",
		Handle: func(e events.Event) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.completions = append(h.completions, e.(events.Completion))
		},
	})

	svc, err := service.NewChecksumService(service.Options{
		Config:  cfg,
		Bus:     h.bus,
		History: history,
		WorkDir: root,
	})
	if err != nil {
		t.Fatalf("NewChecksumService() error = %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	h.svc = svc
	return h
}

func (h *harness) completionsSnapshot() []events.Completion {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]events.Completion(nil), h.completions...)
}

func TestNewChecksumService_NilConfig(t *testing.T) {
	if _, err := service.NewChecksumService(service.Options{}); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestCheckModes(t *testing.T) {
	tests := []struct {
		name      string
		algorithm string
		checksums string
		wantErr   bool
	}{
		{"calculate only", "md5", "", false},
		{"verify only", "", "checksum.dat", false},
		{"neither", "", "", false},
		{"both", "sha1", "checksum.dat", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.CheckModes(tt.algorithm, tt.checksums)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckModes() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, domain.ErrConflictingModes) {
				t.Errorf("error should wrap ErrConflictingModes, got %v", err)
			}
		})
	}
}

func TestCalculate_WritesBaseline(t *testing.T) {
	h := newHarness(t)

	out, err := h.svc.Calculate(context.Background(), service.CalculateOptions{Root: h.root, Algorithm: "md5"})
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if out.Status != state.RunCompleted {
		t.Errorf("Status = %s, want completed", out.Status)
	}
	if len(out.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(out.Records))
	}
	if out.Output != h.baseline {
		t.Errorf("Output = %q, want %q", out.Output, h.baseline)
	}

	b, err := store.NewBaselineStore(afero.NewOsFs(), h.baseline, store.JSONCodec{}).Load("")
	if err != nil {
		t.Fatalf("baseline Load() error = %v", err)
	}
	if b.Algorithm != domain.MD5 || b.RootPath != h.root || len(b.Records) != 3 {
		t.Errorf("baseline = %+v", b)
	}
	// md5("alpha")
	if b.Records[0].Path != filepath.Join(h.root, "a.txt") || b.Records[0].Digest != "2c1743a391305fbf367df8e4f069f9f9" {
		t.Errorf("first record = %+v", b.Records[0])
	}

	completions := h.completionsSnapshot()
	if len(completions) != 1 {
		t.Fatalf("runComplete published %d times, want 1", len(completions))
	}
	if completions[0].RunID != out.RunID || completions[0].Status != "completed" || completions[0].Mode != service.ModeCalculate {
		t.Errorf("completion = %+v", completions[0])
	}

	runs, err := h.history.GetHistory(h.root, 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(runs) != 1 || runs[0].ID != out.RunID || runs[0].Files != 3 {
		t.Errorf("history = %+v", runs)
	}
}

func TestCalculate_InvalidAlgorithm(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Calculate(context.Background(), service.CalculateOptions{Root: h.root, Algorithm: "crc32"})
	if !errors.Is(err, domain.ErrInvalidAlgorithm) {
		t.Fatalf("error = %v, want ErrInvalidAlgorithm", err)
	}
	if len(h.completionsSnapshot()) != 0 {
		t.Error("config errors must not publish runComplete")
	}
}

func TestCalculate_LockHeld(t *testing.T) {
	h := newHarness(t)

	other, err := lock.NewFileLock(h.cfg.Storage.StateDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := other.Acquire("verify", h.root); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer other.Release()

	_, err = h.svc.Calculate(context.Background(), service.CalculateOptions{Root: h.root})
	if !errors.Is(err, domain.ErrRunInProgress) {
		t.Fatalf("error = %v, want ErrRunInProgress", err)
	}
}

func TestCalculate_CancelledSavesSnapshot(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := h.svc.Calculate(ctx, service.CalculateOptions{Root: h.root})
	if !errors.Is(err, domain.ErrCancelled) {
		t.Fatalf("error = %v, want ErrCancelled", err)
	}
	if out == nil || out.Status != state.RunCancelled {
		t.Fatalf("outcome = %+v, want cancelled", out)
	}

	if _, err := os.Stat(h.baseline); !os.IsNotExist(err) {
		t.Error("cancelled run must not write a baseline")
	}

	snap, err := store.NewSnapshotStore(afero.NewOsFs(), h.cfg.Storage.StateDir, store.JSONCodec{}).Load()
	if err != nil {
		t.Fatalf("snapshot Load() error = %v", err)
	}
	if snap.RootPath != h.root {
		t.Errorf("snapshot root = %q, want %q", snap.RootPath, h.root)
	}

	completions := h.completionsSnapshot()
	if len(completions) != 1 || completions[0].Status != "cancelled" {
		t.Errorf("completions = %+v", completions)
	}
}

func TestCalculate_PauseThenExit(t *testing.T) {
	h := newHarness(t)
	snapPath := filepath.Join(h.cfg.Storage.StateDir, store.SnapshotFile)

	h.bus.Publish(events.TopicPause, events.Empty{})
	if !h.svc.Gate().IsPaused() {
		t.Fatal("pause event should close the gate")
	}

	type result struct {
		out *service.Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := h.svc.Calculate(context.Background(), service.CalculateOptions{Root: h.root})
		done <- result{out, err}
	}()

	testutil.AssertEventually(t, 2*time.Second, func() bool {
		_, err := os.Stat(snapPath)
		return err == nil
	}, "paused run should write a snapshot")

	h.bus.Publish(events.TopicExit, events.Empty{})

	select {
	case r := <-done:
		if !errors.Is(r.err, domain.ErrCancelled) {
			t.Fatalf("error = %v, want ErrCancelled", r.err)
		}
		if r.out.Output != snapPath {
			t.Errorf("Output = %q, want %q", r.out.Output, snapPath)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("exit did not stop the paused run")
	}
}

func TestCalculate_Resume(t *testing.T) {
	h := newHarness(t)
	snapshots := store.NewSnapshotStore(afero.NewOsFs(), h.cfg.Storage.StateDir, store.JSONCodec{})

	a := filepath.Join(h.root, "a.txt")
	seeded := domain.ChecksumRecord{Path: a, Digest: "seeded-digest"}
	err := snapshots.Save(domain.Snapshot{
		Finished: []domain.ChecksumRecord{seeded},
		Pending:  []string{filepath.Join(h.root, "b.txt")},
		RootPath: h.root,
	})
	if err != nil {
		t.Fatal(err)
	}

	out, err := h.svc.Calculate(context.Background(), service.CalculateOptions{Root: h.root, Resume: true})
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if len(out.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(out.Records))
	}

	var found bool
	for _, rec := range out.Records {
		if rec.Path == a {
			found = true
			if rec.Digest != "seeded-digest" {
				t.Errorf("finished record recomputed: %+v", rec)
			}
		}
	}
	if !found {
		t.Error("seeded record missing from results")
	}
	if snapshots.Exists() {
		t.Error("snapshot should be discarded after completion")
	}
}

func TestCalculate_ResumeIncompatibleRoot(t *testing.T) {
	h := newHarness(t)
	snapshots := store.NewSnapshotStore(afero.NewOsFs(), h.cfg.Storage.StateDir, store.JSONCodec{})
	if err := snapshots.Save(domain.Snapshot{RootPath: filepath.Join(h.root, "elsewhere"), Pending: []string{}}); err != nil {
		t.Fatal(err)
	}

	_, err := h.svc.Calculate(context.Background(), service.CalculateOptions{Root: h.root, Resume: true})
	if !errors.Is(err, domain.ErrIncompatibleRoot) {
		t.Fatalf("error = %v, want ErrIncompatibleRoot", err)
	}
	if _, err := os.Stat(h.baseline); !os.IsNotExist(err) {
		t.Error("failed resume must not write a baseline")
	}
}

func TestCalculate_ResumeWithoutSnapshot(t *testing.T) {
	h := newHarness(t)

	out, err := h.svc.Calculate(context.Background(), service.CalculateOptions{Root: h.root, Resume: true})
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if len(out.Records) != 3 {
		t.Errorf("records = %d, want 3", len(out.Records))
	}
}

func TestVerify_AfterCalculate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.svc.Calculate(ctx, service.CalculateOptions{Root: h.root}); err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}

	out, err := h.svc.Verify(ctx, service.VerifyOptions{Checksums: h.baseline})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if sum := out.Verification.Summary; !sum.Clean() || sum.Ok != 3 {
		t.Errorf("clean tree summary = %+v", sum)
	}

	testutil.CreateTestFile(t, h.root, "a.txt", []byte("changed"))
	testutil.CreateTestFile(t, h.root, "d.txt", []byte("delta"))
	if err := os.Remove(filepath.Join(h.root, "sub", "c.txt")); err != nil {
		t.Fatal(err)
	}

	out, err = h.svc.Verify(ctx, service.VerifyOptions{Target: h.root, Checksums: h.baseline})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	sum := out.Verification.Summary
	if sum.Ok != 1 || sum.Modified != 1 || sum.New != 1 || sum.Removed != 1 {
		t.Errorf("summary = %+v, want 1 of each", sum)
	}

	runs, err := h.history.GetHistory(h.root, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("history has %d runs, want 3", len(runs))
	}
	if runs[0].Mode != service.ModeVerify || runs[0].Modified != 1 || runs[0].Removed != 1 {
		t.Errorf("latest run = %+v", runs[0])
	}

	if got := len(h.completionsSnapshot()); got != 3 {
		t.Errorf("runComplete published %d times, want 3", got)
	}
}

func TestVerify_Errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Verify(ctx, service.VerifyOptions{Checksums: filepath.Join(h.root, "missing.dat")})
	if !errors.Is(err, domain.ErrBaselineNotFound) {
		t.Errorf("missing baseline error = %v, want ErrBaselineNotFound", err)
	}

	if _, err := h.svc.Calculate(ctx, service.CalculateOptions{Root: h.root}); err != nil {
		t.Fatal(err)
	}
	_, err = h.svc.Verify(ctx, service.VerifyOptions{Target: t.TempDir(), Checksums: h.baseline})
	if !errors.Is(err, domain.ErrRootMismatch) {
		t.Errorf("foreign target error = %v, want ErrRootMismatch", err)
	}
}

func TestVerify_SingleRecordedFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.svc.Calculate(ctx, service.CalculateOptions{Root: h.root}); err != nil {
		t.Fatal(err)
	}

	target := filepath.Join(h.root, "b.txt")
	out, err := h.svc.Verify(ctx, service.VerifyOptions{Target: target, Checksums: h.baseline})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	entries := out.Verification.Entries
	if len(entries) != 1 || entries[0].Path != target || entries[0].Status != domain.StatusOk {
		t.Errorf("entries = %+v", entries)
	}
}
