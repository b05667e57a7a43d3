package lock

import "sync"

// Granter is the coordinator side of the cluster-wide named lock: whichever
// node a requester's stable hash names as coordinator for a group holds the
// authority to grant or refuse that group's lock. Every node runs exactly
// one Granter, since every node may be elected coordinator for some group.
type Granter struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewGranter creates an empty Granter.
func NewGranter() *Granter {
	return &Granter{held: make(map[string]bool)}
}

// TryAcquire grants group to the caller if it is not already held.
func (g *Granter) TryAcquire(group string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[group] {
		return false
	}
	g.held[group] = true
	return true
}

// Release relinquishes group. Releasing a group that isn't held is a no-op.
// A grant carries no lease or expiry: a group stays held until some caller
// releases it.
func (g *Granter) Release(group string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, group)
}
