package lock

import (
	"testing"

	"pgregistry/pkg/types"
)

func TestElectCoordinatorDeterministic(t *testing.T) {
	nodes := []types.NodeID{"b", "a", "c"}
	first := electCoordinator(nodes, "group-1")
	for i := 0; i < 20; i++ {
		if got := electCoordinator(nodes, "group-1"); got != first {
			t.Fatalf("coordinator election is not deterministic: %v vs %v", got, first)
		}
	}
}

func TestElectCoordinatorOrderIndependent(t *testing.T) {
	a := electCoordinator([]types.NodeID{"x", "y", "z"}, "group-2")
	b := electCoordinator([]types.NodeID{"z", "x", "y"}, "group-2")
	if a != b {
		t.Fatalf("coordinator depends on input order: %v vs %v", a, b)
	}
}

func TestElectCoordinatorEmpty(t *testing.T) {
	if got := electCoordinator(nil, "group-3"); got != "" {
		t.Fatalf("expected empty coordinator for empty node set, got %v", got)
	}
}

func TestElectCoordinatorDistributes(t *testing.T) {
	nodes := []types.NodeID{"n1", "n2", "n3", "n4"}
	seen := make(map[types.NodeID]bool)
	for i := 0; i < 50; i++ {
		group := string(rune('a' + i%26))
		seen[electCoordinator(nodes, group)] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected coordinator to vary across groups, saw only %v", seen)
	}
}
