package indexer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	// known SHA-256 of "hello"
	const helloSum = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

	sum, err := Fingerprint(bytes.NewReader([]byte("hello")))
	require.NoError(t, err)
	assert.Equal(t, helloSum, sum)

	assert.Equal(t, helloSum, FingerprintBytes([]byte("hello")))
	assert.NotEqual(t, helloSum, FingerprintBytes([]byte("hello!")))
}

func TestFingerprintFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# title\n"), 0o644))

	fromFile, err := FingerprintFile(path)
	require.NoError(t, err)
	assert.Equal(t, FingerprintBytes([]byte("# title\n")), fromFile)

	_, err = FingerprintFile(filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}
