package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, root, relPath, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestScanner(t *testing.T, root string, extensions ...string) *Scanner {
	t.Helper()
	if len(extensions) == 0 {
		extensions = []string{".md", ".txt"}
	}
	ignore := NewIgnoreList(root)
	ignore.Load()
	return NewScanner(root, extensions, ignore)
}

func TestScanExtensionFilter(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "readme.md", "# readme")
	writeDoc(t, root, "notes.txt", "notes")
	writeDoc(t, root, "image.png", "not a doc")
	writeDoc(t, root, "script.sh", "#!/bin/sh")
	writeDoc(t, root, "UPPER.MD", "case insensitive")

	snapshot, err := newTestScanner(t, root).Scan()
	require.NoError(t, err)

	assert.Len(t, snapshot, 3)
	assert.Contains(t, snapshot, "readme.md")
	assert.Contains(t, snapshot, "notes.txt")
	assert.Contains(t, snapshot, "UPPER.MD")
}

func TestScanNestedPathsUseSlashes(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "guides/setup/install.md", "install")

	snapshot, err := newTestScanner(t, root).Scan()
	require.NoError(t, err)

	require.Contains(t, snapshot, "guides/setup/install.md")
	digest := snapshot["guides/setup/install.md"]
	assert.Equal(t, FingerprintBytes([]byte("install")), digest.Fingerprint)
	assert.Equal(t, int64(len("install")), digest.Size)
}

func TestScanHonorsIgnoreRules(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "kept.md", "kept")
	writeDoc(t, root, ".git/HEAD.md", "ref")
	writeDoc(t, root, "node_modules/pkg/readme.md", "dep docs")
	writeDoc(t, root, ".embedsync/journal.md", "state")
	writeDoc(t, root, "drafts/wip.md", "draft")
	writeDoc(t, root, IgnoreFileName, "drafts/\n")

	snapshot, err := newTestScanner(t, root).Scan()
	require.NoError(t, err)

	assert.Equal(t, []string{"kept.md"}, snapshotPaths(snapshot))
}

func TestScanMissingRootIsEmpty(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does-not-exist")

	snapshot, err := newTestScanner(t, root).Scan()
	require.NoError(t, err)
	assert.Empty(t, snapshot)
}

func TestScanPicksUpChanges(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "doc.md", "v1")
	scanner := newTestScanner(t, root)

	first, err := scanner.Scan()
	require.NoError(t, err)
	require.Contains(t, first, "doc.md")

	writeDoc(t, root, "doc.md", "v2 with more text")

	second, err := scanner.Scan()
	require.NoError(t, err)
	assert.NotEqual(t, first["doc.md"].Fingerprint, second["doc.md"].Fingerprint)
	assert.Equal(t, FingerprintBytes([]byte("v2 with more text")), second["doc.md"].Fingerprint)
}

func snapshotPaths(s Snapshot) []string {
	paths := make([]string, 0, len(s))
	for path := range s {
		paths = append(paths, path)
	}
	return paths
}
