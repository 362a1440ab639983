package domain

import (
	"fmt"
	"strings"
)

// Algorithm identifies the hash function used for a run
type Algorithm string

const (
	// MD5 algorithm (fast, fine for content comparison)
	MD5 Algorithm = "md5"
	// SHA1 algorithm
	SHA1 Algorithm = "sha1"
	// SHA256 algorithm (recommended default)
	SHA256 Algorithm = "sha256"
)

// IsValid checks if the algorithm is a known value
func (a Algorithm) IsValid() bool {
	switch a {
	case MD5, SHA1, SHA256:
		return true
	}
	return false
}

// ParseAlgorithm parses a case-insensitive algorithm name
func ParseAlgorithm(s string) (Algorithm, error) {
	algo := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	if !algo.IsValid() {
		return "", fmt.Errorf("%w: %q (want md5, sha1 or sha256)", ErrInvalidAlgorithm, s)
	}
	return algo, nil
}

// FileClass is the binary/text heuristic computed before hashing
type FileClass int

const (
	// ClassOther marks files whose sampled prefix is printable text
	ClassOther FileClass = iota
	// ClassBinary marks files with any non-text byte in the sampled prefix
	ClassBinary
)

// String returns the string representation of the class
func (c FileClass) String() string {
	if c == ClassBinary {
		return "binary"
	}
	return "other"
}

// MarshalText implements encoding.TextMarshaler
func (c FileClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *FileClass) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "binary":
		*c = ClassBinary
	case "other", "":
		*c = ClassOther
	default:
		return fmt.Errorf("unknown file class: %q", text)
	}
	return nil
}

// ChecksumRecord is one file's checksum result. Immutable once created.
type ChecksumRecord struct {
	// Path is the absolute (resolved) path of the file
	Path string `json:"path" yaml:"path" msgpack:"path"`

	// Class is the binary/text classification
	Class FileClass `json:"class" yaml:"class" msgpack:"class"`

	// Digest is the lowercase hex digest
	Digest string `json:"digest" yaml:"digest" msgpack:"digest"`
}

// IsBinary returns true if the file was classified as binary
func (r ChecksumRecord) IsBinary() bool {
	return r.Class == ClassBinary
}

// Snapshot captures a paused run so it can be resumed later
type Snapshot struct {
	Finished []ChecksumRecord `json:"finished" msgpack:"finished"`
	Pending  []string         `json:"pending" msgpack:"pending"`
	RootPath string           `json:"root_path" msgpack:"root_path"`
}

// Baseline is a completed checksum run used as the comparison point
type Baseline struct {
	Algorithm Algorithm        `json:"algorithm" msgpack:"algorithm"`
	RootPath  string           `json:"root_path" msgpack:"root_path"`
	Records   []ChecksumRecord `json:"records" msgpack:"records"`
}

// Status is the outcome of comparing a fresh record against a baseline
type Status string

const (
	StatusOk       Status = "ok"
	StatusModified Status = "modified"
	StatusNew      Status = "new"
	StatusRemoved  Status = "removed"
)

// ClassifiedEntry is a derived verification result, never persisted
type ClassifiedEntry struct {
	Path   string
	Status Status

	// Record is the baseline record (Ok/Modified/Removed) or the fresh one (New)
	Record ChecksumRecord
}
