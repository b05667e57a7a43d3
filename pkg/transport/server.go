package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"pgregistry/pkg/types"
)

const defaultCallTimeout = 5 * time.Second

// AddressResolver looks up the dial address for a node. The cluster
// substrate gossips each node's RPC address in its member metadata, so
// *cluster.Adapter satisfies this without a separate directory service.
type AddressResolver interface {
	Address(node types.NodeID) (string, bool)
}

// Peer is both ends of the inter-node RPC surface: it dials and calls other
// nodes' peer services (the registry.PeerTransport and lock.Transport
// roles), and it hosts this node's own peer service for others to call
// (the PeerHandler role, fulfilled by whatever is passed to Serve).
type Peer struct {
	resolver AddressResolver
	timeout  time.Duration

	mu     sync.Mutex
	conns  map[types.NodeID]*grpc.ClientConn
	server *grpc.Server
}

// NewPeer creates a Peer that resolves node addresses through resolver.
func NewPeer(resolver AddressResolver) *Peer {
	return &Peer{
		resolver: resolver,
		timeout:  defaultCallTimeout,
		conns:    make(map[types.NodeID]*grpc.ClientConn),
	}
}

func (p *Peer) conn(node types.NodeID) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.conns[node]; ok {
		return c, nil
	}
	addr, ok := p.resolver.Address(node)
	if !ok {
		return nil, fmt.Errorf("transport: no known address for node %s", node)
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s at %s: %w", node, addr, err)
	}
	p.conns[node] = conn
	return conn, nil
}

func (p *Peer) invoke(ctx context.Context, node types.NodeID, method string, in, out interface{}) error {
	conn, err := p.conn(node)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	fullMethod := "/" + ServiceName + "/" + method
	err = conn.Invoke(ctx, fullMethod, in, out, grpc.CallContentSubtype(codecName))
	if err != nil {
		// The cached conn may be wired to an address node no longer owns
		// (it rejoined elsewhere after a restart). Evict it so the next
		// call re-resolves through AddressResolver instead of retrying the
		// same stale target forever.
		p.evict(node, conn)
	}
	return err
}

// evict drops node's cached connection if it still matches conn, and closes
// it. A concurrent invoke may have already replaced or removed the entry;
// evict only ever removes the one it observed failing.
func (p *Peer) evict(node types.NodeID, conn *grpc.ClientConn) {
	p.mu.Lock()
	current, ok := p.conns[node]
	if ok && current == conn {
		delete(p.conns, node)
	}
	p.mu.Unlock()
	if ok && current == conn {
		_ = conn.Close()
	}
}

// Dispatch asks to to apply cmd, returning its reply.
func (p *Peer) Dispatch(ctx context.Context, to types.NodeID, cmd types.Command) (types.MutationReply, error) {
	out := new(dispatchResponse)
	if err := p.invoke(ctx, to, "Dispatch", &dispatchRequest{Cmd: cmd}, out); err != nil {
		return types.MutationReply{}, err
	}
	return out.Reply, nil
}

// PushExchange sends an unsolicited gossip exchange payload to to.
func (p *Peer) PushExchange(ctx context.Context, to types.NodeID, payload types.ExchangePayload) error {
	return p.invoke(ctx, to, "PushExchange", &exchangeRequest{Payload: payload}, new(exchangeResponse))
}

// SendHello announces local presence to a newly connected node.
func (p *Peer) SendHello(ctx context.Context, to types.NodeID, hello types.HelloMsg) error {
	return p.invoke(ctx, to, "Hello", &helloRequest{Hello: hello}, new(helloResponse))
}

// SendResync asks to to re-send its state to all of its own peers.
func (p *Peer) SendResync(ctx context.Context, to types.NodeID, resync types.ResyncMsg) error {
	return p.invoke(ctx, to, "Resync", &resyncRequest{Resync: resync}, new(resyncResponse))
}

// FetchState retrieves to's group membership view for the verifier, scoped
// to a single group when group is non-empty, or every group otherwise.
func (p *Peer) FetchState(ctx context.Context, to types.NodeID, group string) (types.NodeSnapshot, error) {
	out := new(fetchStateResponse)
	if err := p.invoke(ctx, to, "FetchState", &fetchStateRequest{Group: group}, out); err != nil {
		return types.NodeSnapshot{}, err
	}
	return out.Snapshot, nil
}

// AcquireLock asks to, acting as coordinator for a group, to grant the lock.
func (p *Peer) AcquireLock(ctx context.Context, to types.NodeID, group string) (bool, error) {
	out := new(acquireLockResponse)
	if err := p.invoke(ctx, to, "AcquireLock", &acquireLockRequest{Group: group}, out); err != nil {
		return false, err
	}
	return out.Granted, nil
}

// ReleaseLock releases a lock previously granted by to.
func (p *Peer) ReleaseLock(ctx context.Context, to types.NodeID, group string) error {
	return p.invoke(ctx, to, "ReleaseLock", &releaseLockRequest{Group: group}, new(releaseLockResponse))
}

// Serve hosts handler as this node's peer service on lis until the server is
// stopped. interceptor may be nil.
func (p *Peer) Serve(lis net.Listener, handler PeerHandler, interceptor grpc.UnaryServerInterceptor) error {
	var opts []grpc.ServerOption
	if interceptor != nil {
		opts = append(opts, grpc.UnaryInterceptor(interceptor))
	}
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&ServiceDesc, handler)

	p.mu.Lock()
	p.server = srv
	p.mu.Unlock()

	return srv.Serve(lis)
}

// Stop gracefully stops the hosted peer service, if one was started.
func (p *Peer) Stop() {
	p.mu.Lock()
	srv := p.server
	p.mu.Unlock()
	if srv != nil {
		srv.GracefulStop()
	}
}

// Close tears down every outbound connection this Peer has dialed.
func (p *Peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for node, c := range p.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("transport: closing connection to %s: %w", node, err)
		}
	}
	p.conns = make(map[types.NodeID]*grpc.ClientConn)
	return firstErr
}
