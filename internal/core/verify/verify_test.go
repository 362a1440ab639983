package verify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Ning0612/Sumkeeper/internal/core/registry"
	"github.com/Ning0612/Sumkeeper/internal/domain"
	"github.com/Ning0612/Sumkeeper/internal/engine"
	"github.com/Ning0612/Sumkeeper/internal/testutil"
)

func rec(path, digest string) domain.ChecksumRecord {
	return domain.ChecksumRecord{Path: path, Digest: digest}
}

func TestClassify(t *testing.T) {
	baseline := []domain.ChecksumRecord{rec("a", "1"), rec("b", "2"), rec("c", "3")}
	fresh := []domain.ChecksumRecord{rec("a", "1"), rec("b", "9"), rec("d", "4")}

	got := Classify(baseline, fresh)

	want := []struct {
		path   string
		status domain.Status
	}{
		{"a", domain.StatusOk},
		{"b", domain.StatusModified},
		{"c", domain.StatusRemoved},
		{"d", domain.StatusNew},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Path != w.path || got[i].Status != w.status {
			t.Errorf("entry %d = %s/%s, want %s/%s", i, got[i].Path, got[i].Status, w.path, w.status)
		}
	}
	if got[3].Record.Digest != "4" {
		t.Errorf("new entry should carry the fresh record, got %+v", got[3].Record)
	}
}

func TestClassify_CaseInsensitiveOrder(t *testing.T) {
	fresh := []domain.ChecksumRecord{rec("c", "x"), rec("a", "x"), rec("B", "x"), rec("A", "x")}

	var paths []string
	for _, e := range Classify(nil, fresh) {
		paths = append(paths, e.Path)
	}
	if want := []string{"A", "a", "B", "c"}; !reflect.DeepEqual(paths, want) {
		t.Errorf("order = %v, want %v", paths, want)
	}
}

func TestClassify_Empty(t *testing.T) {
	if got := Classify(nil, nil); len(got) != 0 {
		t.Errorf("expected no entries, got %+v", got)
	}
}

func TestSummarize(t *testing.T) {
	entries := Classify(
		[]domain.ChecksumRecord{rec("a", "1"), rec("b", "2"), rec("c", "3")},
		[]domain.ChecksumRecord{rec("a", "1"), rec("b", "9"), rec("d", "4")},
	)
	s := Summarize(entries)
	if s != (Summary{Ok: 1, Modified: 1, New: 1, Removed: 1}) {
		t.Errorf("Summarize() = %+v", s)
	}
	if s.Total() != 4 || s.Clean() {
		t.Errorf("Total=%d Clean=%v", s.Total(), s.Clean())
	}
}

func TestResolveTarget(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "root")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}
	known := testutil.CreateTestFile(t, root, "known.txt", []byte("k"))
	unknown := testutil.CreateTestFile(t, root, "unknown.txt", []byte("u"))
	cwd := filepath.Join(dir, "cwd")

	baseline := domain.Baseline{
		Algorithm: domain.MD5,
		RootPath:  root,
		Records:   []domain.ChecksumRecord{rec(known, "x")},
	}

	tests := []struct {
		name    string
		target  string
		want    string
		wantErr error
	}{
		{"baseline root", root, root, nil},
		{"trailing slash", root + string(filepath.Separator), root, nil},
		{"working directory", cwd, root, nil},
		{"empty means working directory", "", root, nil},
		{"recorded single file", known, known, nil},
		{"unrecorded single file", unknown, "", domain.ErrUnresolvableTarget},
		{"other directory", dir, "", domain.ErrRootMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveTarget(baseline, tt.target, cwd)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveTarget() = %s, want %s", got, tt.want)
			}
		})
	}
}

// calculate produces a baseline for root the way a calculate run would
func calculate(t *testing.T, root string, algo domain.Algorithm) *domain.Baseline {
	t.Helper()
	v := New(Options{WorkDir: root})
	reg := registry.New()
	e := engine.New(engine.Options{Root: root})
	if err := e.Discover(context.Background(), v.opts.Discoverer, reg); err != nil {
		t.Fatal(err)
	}
	records, err := e.Run(context.Background(), reg, algo)
	if err != nil {
		t.Fatal(err)
	}
	return &domain.Baseline{Algorithm: algo, RootPath: root, Records: records}
}

func TestVerifier_Verify(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	a := testutil.CreateTestFile(t, root, "a.txt", []byte("alpha"))
	b := testutil.CreateTestFile(t, root, "b.txt", []byte("bravo"))
	c := testutil.CreateTestFile(t, root, "c.txt", []byte("charlie"))

	baseline := calculate(t, root, domain.SHA1)

	testutil.CreateTestFile(t, root, "b.txt", []byte("bravo, changed"))
	if err := os.Remove(c); err != nil {
		t.Fatal(err)
	}
	d := testutil.CreateTestFile(t, root, "d.txt", []byte("delta"))

	v := New(Options{WorkDir: t.TempDir()})
	res, err := v.Verify(context.Background(), baseline, root)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	want := map[string]domain.Status{
		a: domain.StatusOk,
		b: domain.StatusModified,
		c: domain.StatusRemoved,
		d: domain.StatusNew,
	}
	if len(res.Entries) != len(want) {
		t.Fatalf("entries = %+v", res.Entries)
	}
	for _, e := range res.Entries {
		if want[e.Path] != e.Status {
			t.Errorf("%s: status %s, want %s", e.Path, e.Status, want[e.Path])
		}
	}
	if res.Algorithm != domain.SHA1 {
		t.Errorf("Algorithm = %s", res.Algorithm)
	}
}

func TestVerifier_SingleFileTarget(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	a := testutil.CreateTestFile(t, root, "a.txt", []byte("alpha"))
	testutil.CreateTestFile(t, root, "b.txt", []byte("bravo"))
	baseline := calculate(t, root, domain.MD5)

	res, err := New(Options{WorkDir: t.TempDir()}).Verify(context.Background(), baseline, a)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Path != a || res.Entries[0].Status != domain.StatusOk {
		t.Errorf("entries = %+v", res.Entries)
	}
}

func TestVerifier_Cancelled(t *testing.T) {
	root := t.TempDir()
	testutil.CreateTestFile(t, root, "a.txt", []byte("alpha"))
	baseline := &domain.Baseline{Algorithm: domain.MD5, RootPath: root}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(Options{WorkDir: root}).Verify(ctx, baseline, root)
	if !errors.Is(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if res != nil {
		t.Errorf("expected no result, got %+v", res)
	}
}

func TestVerifier_NilBaseline(t *testing.T) {
	_, err := New(Options{}).Verify(context.Background(), nil, "/")
	if !errors.Is(err, domain.ErrBaselineNotFound) {
		t.Fatalf("expected ErrBaselineNotFound, got %v", err)
	}
}
