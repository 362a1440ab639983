package verify

import (
	"sort"
	"strings"

	"github.com/Ning0612/Sumkeeper/internal/domain"
)

// Classify compares fresh records against baseline records by path.
// Baseline paths yield Ok, Modified or Removed; fresh-only paths yield New.
// The result is sorted case-insensitively, ties broken ordinally.
func Classify(baseline, fresh []domain.ChecksumRecord) []domain.ClassifiedEntry {
	freshByPath := make(map[string]domain.ChecksumRecord, len(fresh))
	for _, rec := range fresh {
		freshByPath[rec.Path] = rec
	}

	seen := make(map[string]bool, len(baseline))
	entries := make([]domain.ClassifiedEntry, 0, len(baseline)+len(fresh))

	for _, old := range baseline {
		if seen[old.Path] {
			continue
		}
		seen[old.Path] = true

		status := domain.StatusOk
		cur, ok := freshByPath[old.Path]
		switch {
		case !ok:
			status = domain.StatusRemoved
		case cur.Digest != old.Digest:
			status = domain.StatusModified
		}
		entries = append(entries, domain.ClassifiedEntry{Path: old.Path, Status: status, Record: old})
	}

	for _, rec := range fresh {
		if seen[rec.Path] {
			continue
		}
		seen[rec.Path] = true
		entries = append(entries, domain.ClassifiedEntry{Path: rec.Path, Status: domain.StatusNew, Record: rec})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return pathLess(entries[i].Path, entries[j].Path)
	})
	return entries
}

func pathLess(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

// Summary counts entries per status
type Summary struct {
	Ok       int `json:"ok" yaml:"ok"`
	Modified int `json:"modified" yaml:"modified"`
	New      int `json:"new" yaml:"new"`
	Removed  int `json:"removed" yaml:"removed"`
}

// Summarize counts entries per status
func Summarize(entries []domain.ClassifiedEntry) Summary {
	var s Summary
	for _, e := range entries {
		switch e.Status {
		case domain.StatusOk:
			s.Ok++
		case domain.StatusModified:
			s.Modified++
		case domain.StatusNew:
			s.New++
		case domain.StatusRemoved:
			s.Removed++
		}
	}
	return s
}

// Total returns the number of classified entries
func (s Summary) Total() int {
	return s.Ok + s.Modified + s.New + s.Removed
}

// Clean reports whether every entry matched the baseline
func (s Summary) Clean() bool {
	return s.Modified == 0 && s.New == 0 && s.Removed == 0
}
