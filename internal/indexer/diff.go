package indexer

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// ChangeSet partitions the paths of two successive snapshots into three
// disjoint sets. A path in neither set is unchanged.
type ChangeSet struct {
	Created []string
	Updated []string
	Deleted []string
}

func (c *ChangeSet) Empty() bool {
	return len(c.Created) == 0 && len(c.Updated) == 0 && len(c.Deleted) == 0
}

func (c *ChangeSet) Total() int {
	return len(c.Created) + len(c.Updated) + len(c.Deleted)
}

// Diff compares the persisted previous state against the current snapshot.
// Pure, O(n) over the union of paths. Fingerprint equality wins over
// modification time: a touched-but-identical file is unchanged, and a file
// deleted and recreated with different content between ticks is Updated.
func Diff(previous map[string]*Record, current Snapshot) *ChangeSet {
	prevKeys := mapset.NewThreadUnsafeSetWithSize[string](len(previous))
	for path := range previous {
		prevKeys.Add(path)
	}
	currKeys := mapset.NewThreadUnsafeSetWithSize[string](len(current))
	for path := range current {
		currKeys.Add(path)
	}

	changes := &ChangeSet{
		Created: currKeys.Difference(prevKeys).ToSlice(),
		Deleted: prevKeys.Difference(currKeys).ToSlice(),
	}

	for path := range currKeys.Intersect(prevKeys).Iter() {
		if previous[path].Fingerprint != current[path].Fingerprint {
			changes.Updated = append(changes.Updated, path)
		}
	}

	// deterministic ordering for logs and tests
	sort.Strings(changes.Created)
	sort.Strings(changes.Updated)
	sort.Strings(changes.Deleted)

	return changes
}
