package indexer

import (
	"path/filepath"
	"strings"
	"time"
)

// FileDigest is the observed state of one document at a poll tick.
type FileDigest struct {
	Path        string
	Fingerprint string
	Size        int64
	ModTime     time.Time
}

// Snapshot maps relative slash-normalized paths to their digests, taken
// atomically at one poll tick. Snapshots are compared by key set and by
// fingerprint per shared key, never by modification time.
type Snapshot map[string]*FileDigest

// NormPath cleans a relative path and normalizes separators to forward
// slashes so journal keys are stable across platforms.
func NormPath(path string) string {
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(path)), "/")
}
