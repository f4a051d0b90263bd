package indexer

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Scanner walks the watch root and produces Snapshots.
//
// A metadata cache from the previous scan avoids re-hashing files whose size
// and mtime are unchanged; mtime is only ever a pre-filter, the fingerprint
// decides equality.
type Scanner struct {
	root     string
	exts     map[string]struct{}
	ignore   *IgnoreList
	lastScan Snapshot
}

func NewScanner(root string, extensions []string, ignore *IgnoreList) *Scanner {
	exts := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	return &Scanner{
		root:     root,
		exts:     exts,
		ignore:   ignore,
		lastScan: make(Snapshot),
	}
}

// Scan walks the root and returns the current Snapshot. Individual file
// errors are logged and the file skipped for this tick; a missing root is an
// empty snapshot, not an error.
func (s *Scanner) Scan() (Snapshot, error) {
	snapshot := make(Snapshot)

	if _, err := os.Stat(s.root); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("watch dir does not exist, treating as empty", "dir", s.root)
			s.lastScan = snapshot
			return snapshot, nil
		}
		return nil, fmt.Errorf("stat watch dir: %w", err)
	}

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// file or dir vanished mid-walk, or unreadable; skip it
			slog.Warn("walk error", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return fmt.Errorf("walk rel path: %w", err)
		}
		relPath = NormPath(relPath)

		if d.IsDir() {
			if relPath != "." && s.ignore.ShouldIgnore(relPath+"/") {
				return fs.SkipDir
			}
			return nil
		}

		if _, ok := s.exts[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		if s.ignore.ShouldIgnore(relPath) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("failed to stat file", "path", path, "error", err)
			return nil
		}

		var fingerprint string
		if prev, ok := s.lastScan[relPath]; ok && prev.Size == info.Size() && prev.ModTime.Equal(info.ModTime()) {
			fingerprint = prev.Fingerprint
		} else {
			fingerprint, err = FingerprintFile(path)
			if err != nil {
				slog.Warn("failed to fingerprint file", "path", path, "error", err)
				return nil
			}
		}

		snapshot[relPath] = &FileDigest{
			Path:        relPath,
			Fingerprint: fingerprint,
			Size:        info.Size(),
			ModTime:     info.ModTime(),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.root, err)
	}

	s.lastScan = snapshot
	return snapshot, nil
}
