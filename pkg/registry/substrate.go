package registry

import (
	"context"
	"time"

	"pgregistry/pkg/types"
)

// ClusterSubstrate is the slice of cluster membership the registry actor
// needs: its own identity, who else is connected, and a stream of
// connectivity transitions. *cluster.Adapter satisfies this structurally.
type ClusterSubstrate interface {
	LocalNode() types.NodeID
	ConnectedNodes() []types.NodeID
	Events() <-chan types.ClusterEvent
}

// PeerTransport is the slice of inter-node RPC the registry actor needs to
// fan mutations out, gossip exchange payloads, and scrape peer state for the
// verifier. *transport.Peer satisfies this structurally.
type PeerTransport interface {
	Dispatch(ctx context.Context, to types.NodeID, cmd types.Command) (types.MutationReply, error)
	PushExchange(ctx context.Context, to types.NodeID, payload types.ExchangePayload) error
	SendHello(ctx context.Context, to types.NodeID, hello types.HelloMsg) error
	SendResync(ctx context.Context, to types.NodeID, resync types.ResyncMsg) error
	FetchState(ctx context.Context, to types.NodeID, group string) (types.NodeSnapshot, error)
}

// EndpointMonitor is the slice of liveness monitoring the registry actor
// needs. *monitor.Prober satisfies this structurally.
type EndpointMonitor interface {
	Monitor(e types.Endpoint) (types.MonitorRef, bool)
	Demonitor(ref types.MonitorRef)
	Deaths() <-chan types.MonitorRef
	NodeDown(node types.NodeID)
}

// LockProvider is the slice of cluster-wide named locking a Mutation
// Coordinator needs. *lock.Locker satisfies this structurally.
type LockProvider interface {
	Acquire(ctx context.Context, group string) (func(), error)
}

// mutationTimeout bounds how long the coordinator waits for every node in a
// fan-out round to acknowledge a single mutation.
const mutationTimeout = 30 * time.Second
