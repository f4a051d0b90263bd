package indexer

import (
	"github.com/google/uuid"
)

// Namespace for deriving document identifiers. Changing this invalidates
// every remote row, so it is fixed forever.
var docIDNamespace = uuid.MustParse("9f2c1b36-5d1e-4c8a-9b70-6e1f40c2a7d4")

// DocumentID derives the stable remote identifier for a relative path.
// It is a SHA-1 namespace UUID of the path, so edits update the same row in
// place and re-runs never create duplicates.
func DocumentID(relPath string) string {
	return uuid.NewSHA1(docIDNamespace, []byte(NormPath(relPath))).String()
}
