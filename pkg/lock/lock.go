package lock

import (
	"context"
	"errors"
	"time"

	"pgregistry/pkg/types"
)

const (
	maxFastRetries = 5
	retryBackoff   = 50 * time.Millisecond
)

// ClusterView is the slice of a cluster substrate Locker needs: who this
// node is and who else is connected. It is declared here rather than
// imported from pkg/registry so pkg/lock never depends on pkg/registry;
// *cluster.Adapter satisfies it structurally.
type ClusterView interface {
	LocalNode() types.NodeID
	ConnectedNodes() []types.NodeID
}

// Transport is the slice of a peer transport Locker needs to reach a
// remote coordinator. *transport.Peer satisfies it structurally.
type Transport interface {
	AcquireLock(ctx context.Context, to types.NodeID, group string) (bool, error)
	ReleaseLock(ctx context.Context, to types.NodeID, group string) error
}

// Locker requests the cluster-wide named lock on behalf of a Mutation
// Coordinator. There is no real distributed mutex underneath: every node
// independently elects the same coordinator for a given group by stable
// hashing, and asks that node (possibly itself) to grant or deny the lock.
// granter is the same *Granter this node's transport server exposes to
// peers via HandleAcquireLock/HandleReleaseLock, so a local mutation and a
// peer's mutation for the same group funnel through one authority instead
// of two disjoint grant tables.
//
// Acquire itself retries indefinitely on contention or a failed coordinator
// call, favoring starvation over a mutation silently losing fairness; it
// returns an error only when its ctx is canceled. The coordinator in
// pkg/registry logs such an abandoned acquisition and still reports
// success to its own caller.
//
// There is no lease or expiry on a grant: if a ReleaseLock RPC to a remote
// coordinator never arrives (the releasing node crashes or the network
// drops the call after Granter.TryAcquire succeeded there), that group's
// lock is held forever and every future mutation on it contends
// indefinitely. Recovering from this requires the coordinator to notice the
// requester died — the monitor substrate already tracks per-node liveness —
// and is left for a future pass rather than bolted on here.
type Locker struct {
	cluster ClusterView
	peer    Transport
	granter *Granter
}

// New creates a Locker. granter must be the same *Granter passed to the
// node's transport server, so this node's own coordinator role is granted
// through the one table peers also observe.
func New(cluster ClusterView, peer Transport, granter *Granter) *Locker {
	return &Locker{
		cluster: cluster,
		peer:    peer,
		granter: granter,
	}
}

// Acquire blocks until the cluster-wide lock for group is granted, or ctx
// is canceled. The returned release function must be called exactly once.
func (l *Locker) Acquire(ctx context.Context, group string) (func(), error) {
	attempt := 0
	for {
		nodes := append([]types.NodeID{l.cluster.LocalNode()}, l.cluster.ConnectedNodes()...)
		coord := electCoordinator(nodes, group)

		release, err := l.tryAcquire(ctx, coord, group)
		if err == nil {
			return release, nil
		}

		attempt++
		backoff := retryBackoff
		if attempt > maxFastRetries {
			backoff = retryBackoff * 4
		}
		select {
		case <-ctx.Done():
			return func() {}, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (l *Locker) tryAcquire(ctx context.Context, coord types.NodeID, group string) (func(), error) {
	if coord == "" || coord == l.cluster.LocalNode() {
		if !l.granter.TryAcquire(group) {
			return nil, errContended
		}
		return func() { l.granter.Release(group) }, nil
	}

	granted, err := l.peer.AcquireLock(ctx, coord, group)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, errContended
	}
	return func() {
		_ = l.peer.ReleaseLock(context.Background(), coord, group)
	}, nil
}

var errContended = errors.New("lock: group contended")
