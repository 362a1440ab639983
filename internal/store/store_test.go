package store

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/afero"

	"github.com/Ning0612/Sumkeeper/internal/domain"
)

var sampleRecords = []domain.ChecksumRecord{
	{Path: "/data/a.txt", Class: domain.ClassOther, Digest: "0cc175b9c0f1b6a831c399e269772661"},
	{Path: "/data/b.bin", Class: domain.ClassBinary, Digest: "92eb5ffee6ae2fec3ad71c777531578f"},
}

var codecs = []Codec{JSONCodec{}, MsgpackCodec{}}

func TestSnapshotStore_SaveLoad(t *testing.T) {
	for _, codec := range codecs {
		t.Run(codec.Name(), func(t *testing.T) {
			fs := afero.NewMemMapFs()
			s := NewSnapshotStore(fs, "/state", codec)

			snap := domain.Snapshot{
				Finished: sampleRecords,
				Pending:  []string{"/data/c.txt"},
				RootPath: "/data",
			}
			if err := s.Save(snap); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if s.Path() != filepath.Join("/state", SnapshotFile) {
				t.Errorf("Path() = %s", s.Path())
			}

			got, err := s.Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !reflect.DeepEqual(*got, snap) {
				t.Errorf("Load() = %+v, want %+v", *got, snap)
			}
			if ok, _ := afero.Exists(fs, s.Path()+tempSuffix); ok {
				t.Error("temp file left behind")
			}
		})
	}
}

func TestSnapshotStore_NotFound(t *testing.T) {
	s := NewSnapshotStore(afero.NewMemMapFs(), "/state", JSONCodec{})
	if _, err := s.Load(); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
	if s.Exists() {
		t.Error("Exists() = true for empty store")
	}
}

func TestSnapshotStore_Corrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewSnapshotStore(fs, "/state", JSONCodec{})
	if err := afero.WriteFile(fs, s.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(); !errors.Is(err, domain.ErrSnapshotCorrupt) {
		t.Fatalf("expected ErrSnapshotCorrupt, got %v", err)
	}
}

func TestSnapshotStore_Discard(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewSnapshotStore(fs, "/state", MsgpackCodec{})
	if err := s.Save(domain.Snapshot{RootPath: "/data", Pending: []string{"/data/x"}}); err != nil {
		t.Fatal(err)
	}

	if err := s.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if s.Exists() {
		t.Error("snapshot still present after Discard")
	}
	if err := s.Discard(); err != nil {
		t.Errorf("second Discard should be a no-op, got %v", err)
	}
}

func TestCheckpointer_RejectsOtherRoot(t *testing.T) {
	s := NewSnapshotStore(afero.NewMemMapFs(), "/state", JSONCodec{})
	cp := Checkpointer{Store: s}

	if err := cp.Pause(domain.Snapshot{RootPath: "/data", Pending: []string{"/data/a"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := cp.Resume("/elsewhere"); !errors.Is(err, domain.ErrIncompatibleRoot) {
		t.Fatalf("expected ErrIncompatibleRoot, got %v", err)
	}

	snap, err := cp.Resume("/data/")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if snap.RootPath != "/data" {
		t.Errorf("RootPath = %s", snap.RootPath)
	}
}

func TestBaselineStore_SaveLoad(t *testing.T) {
	for _, codec := range codecs {
		t.Run(codec.Name(), func(t *testing.T) {
			fs := afero.NewMemMapFs()
			s := NewBaselineStore(fs, "/work/checksum.dat", codec)

			if err := s.Save("/data", domain.SHA1, sampleRecords); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got, err := s.Load("")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			want := domain.Baseline{Algorithm: domain.SHA1, RootPath: "/data", Records: sampleRecords}
			if !reflect.DeepEqual(*got, want) {
				t.Errorf("Load() = %+v, want %+v", *got, want)
			}
		})
	}
}

func TestBaselineStore_CodecsAgree(t *testing.T) {
	fs := afero.NewMemMapFs()
	j := NewBaselineStore(fs, "/a.json", JSONCodec{})
	m := NewBaselineStore(fs, "/a.mp", MsgpackCodec{})

	for _, s := range []*BaselineStore{j, m} {
		if err := s.Save("/data", domain.MD5, sampleRecords); err != nil {
			t.Fatal(err)
		}
	}

	fromJSON, err := j.Load("")
	if err != nil {
		t.Fatal(err)
	}
	fromMsgpack, err := m.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(fromJSON, fromMsgpack) {
		t.Errorf("codecs disagree:\n%+v\n%+v", fromJSON, fromMsgpack)
	}
}

func TestBaselineStore_LoadErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	full, err := MsgpackCodec{}.Marshal(domain.Baseline{Algorithm: domain.MD5, RootPath: "/data", Records: sampleRecords})
	if err != nil {
		t.Fatal(err)
	}
	afero.WriteFile(fs, "/truncated.dat", full[:len(full)/2], 0644)
	afero.WriteFile(fs, "/garbage.dat", []byte("}}}"), 0644)
	afero.WriteFile(fs, "/badalgo.dat", []byte(`{"algorithm":"crc32","root_path":"/","records":[]}`), 0644)

	tests := []struct {
		name  string
		codec Codec
		path  string
		want  error
	}{
		{"missing", JSONCodec{}, "/nope.dat", domain.ErrBaselineNotFound},
		{"truncated", MsgpackCodec{}, "/truncated.dat", domain.ErrBaselineCorrupt},
		{"garbage", JSONCodec{}, "/garbage.dat", domain.ErrBaselineCorrupt},
		{"unknown algorithm", JSONCodec{}, "/badalgo.dat", domain.ErrBaselineCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBaselineStore(fs, "/unused", tt.codec).Load(tt.path)
			if b != nil {
				t.Errorf("expected nil baseline, got %+v", b)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCodecFor(t *testing.T) {
	if CodecFor(true).Name() != "msgpack" {
		t.Error("binary flag should select msgpack")
	}
	if CodecFor(false).Name() != "json" {
		t.Error("text flag should select json")
	}
}
