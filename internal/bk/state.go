package bk

import "sort"

// FileState maps absolute paths to last-modified times in unix seconds.
// A scan covers every file and directory under the scanned root plus the
// root itself. Two states are only comparable when taken from logically
// the same root.
type FileState map[string]int64

// ChangedSince returns the paths in s that are absent from previous or
// whose recorded mtime differs, sorted for deterministic processing.
// Paths present only in previous (deletions) are not reported.
func (s FileState) ChangedSince(previous FileState) []string {
	var changed []string
	for path, mtime := range s {
		if prev, ok := previous[path]; !ok || prev != mtime {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	return changed
}

// Paths returns every path in s, sorted.
func (s FileState) Paths() []string {
	paths := make([]string, 0, len(s))
	for path := range s {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
