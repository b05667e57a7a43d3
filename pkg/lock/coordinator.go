package lock

import (
	"hash/fnv"
	"sort"

	"pgregistry/pkg/types"
)

// electCoordinator picks a single node out of nodes, deterministically, by
// hashing group against the sorted node list. Every node computing this
// over the same connectivity snapshot arrives at the same answer, which is
// what lets the registry use it as a cluster-wide named lock without a
// consensus protocol: the "lock" is really just agreement on who grants it.
func electCoordinator(nodes []types.NodeID, group string) types.NodeID {
	if len(nodes) == 0 {
		return ""
	}
	sorted := make([]types.NodeID, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	h := fnv.New32a()
	_, _ = h.Write([]byte(group))
	idx := int(h.Sum32() % uint32(len(sorted)))
	return sorted[idx]
}
