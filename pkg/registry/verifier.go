package registry

import (
	"context"
	"sort"
	"sync"

	"pgregistry/pkg/metrics"
	"pgregistry/pkg/types"
)

// VerifyClusterState scrapes every currently-known node's group membership
// and reports, per (group, node), how that node's claimed membership
// diverges from the authoritative view — the union of what each endpoint's
// own home node reports as local. group scopes the scan to a single group
// when non-empty. The verifier never mutates registry state.
func (s *Service) VerifyClusterState(ctx context.Context, group string) (types.VerifySummary, error) {
	var nodes []types.NodeID
	var self types.NodeID
	var localSnapshot []types.GroupSnapshot
	ok := s.do(func() {
		self = s.self
		nodes = append([]types.NodeID{s.self}, s.cluster.ConnectedNodes()...)
		localSnapshot = s.table.snapshot(group)
	})
	if !ok {
		return types.VerifySummary{}, ErrClosed
	}

	snapshots := make(map[types.NodeID][]types.GroupSnapshot, len(nodes))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, n := range nodes {
		if n == self {
			snapshots[n] = localSnapshot
			continue
		}
		n := n
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := s.peer.FetchState(ctx, n, group)
			if err != nil {
				s.logger.Warn().Str("node", string(n)).Err(err).Msg("verifier could not fetch node state")
				return
			}
			// The peer already scopes its reply to group server-side
			// (HandleFetchState); filtering again here is cheap defense
			// against a peer that doesn't honor scoping rather than load-
			// bearing for correctness.
			groups := snap.Groups
			if group != "" {
				groups = filterGroupSnapshots(groups, group)
			}
			mu.Lock()
			snapshots[n] = groups
			mu.Unlock()
		}()
	}
	wg.Wait()

	summary := buildVerifySummary(nodes, snapshots)
	metrics.VerifyDiffCount.Set(float64(len(summary.Diffs)))
	return summary, nil
}

func filterGroupSnapshots(groups []types.GroupSnapshot, group string) []types.GroupSnapshot {
	for _, g := range groups {
		if g.Group == group {
			return []types.GroupSnapshot{g}
		}
	}
	return nil
}

// buildVerifySummary computes the authoritative-by-home-node diff: for each
// group, the authoritative set is the union of every node's own reported
// Local members for that group (an endpoint's home node is the only
// authority on whether it is still a live local member); each node's
// claimed set is its reported Full members, deduplicated.
func buildVerifySummary(nodes []types.NodeID, snapshots map[types.NodeID][]types.GroupSnapshot) types.VerifySummary {
	authoritative := make(map[string]map[types.Endpoint]struct{})
	claimed := make(map[string]map[types.NodeID]map[types.Endpoint]struct{})
	groupSet := make(map[string]struct{})

	for _, n := range nodes {
		for _, gs := range snapshots[n] {
			groupSet[gs.Group] = struct{}{}

			if authoritative[gs.Group] == nil {
				authoritative[gs.Group] = make(map[types.Endpoint]struct{})
			}
			for _, e := range gs.Local {
				authoritative[gs.Group][e] = struct{}{}
			}

			if claimed[gs.Group] == nil {
				claimed[gs.Group] = make(map[types.NodeID]map[types.Endpoint]struct{})
			}
			if claimed[gs.Group][n] == nil {
				claimed[gs.Group][n] = make(map[types.Endpoint]struct{})
			}
			for _, e := range gs.Full {
				claimed[gs.Group][n][e] = struct{}{}
			}
		}
	}

	groups := make([]string, 0, len(groupSet))
	for g := range groupSet {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	members := 0
	var diffs []types.DiffEntry
	for _, g := range groups {
		auth := authoritative[g]
		members += len(auth)
		for _, n := range nodes {
			have := claimed[g][n]
			missing := setDiff(auth, have)
			extra := setDiff(have, auth)
			if len(missing) == 0 && len(extra) == 0 {
				continue
			}
			diffs = append(diffs, types.DiffEntry{Group: g, Node: n, Missing: missing, Extra: extra})
		}
	}

	return types.VerifySummary{Nodes: nodes, Groups: groups, Members: members, Diffs: diffs}
}

func setDiff(a, b map[types.Endpoint]struct{}) []types.Endpoint {
	var out []types.Endpoint
	for e := range a {
		if _, ok := b[e]; !ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
