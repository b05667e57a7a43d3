package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pgregistry/pkg/types"
)

// The fakes in this file stand in for pkg/cluster, pkg/transport, and
// pkg/monitor in process, wiring multiple Services together without any
// real gossip or gRPC traffic — exactly the in-memory substrate fake the
// expanded spec calls for so coordinator/exchange/verifier behavior can be
// exercised end to end.

type fakeCluster struct {
	self types.NodeID

	mu        sync.Mutex
	connected map[types.NodeID]bool
	events    chan types.ClusterEvent
}

func newFakeCluster(self types.NodeID) *fakeCluster {
	return &fakeCluster{self: self, connected: make(map[types.NodeID]bool), events: make(chan types.ClusterEvent, 64)}
}

func (c *fakeCluster) LocalNode() types.NodeID { return c.self }

func (c *fakeCluster) ConnectedNodes() []types.NodeID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.NodeID, 0, len(c.connected))
	for n, up := range c.connected {
		if up {
			out = append(out, n)
		}
	}
	return out
}

func (c *fakeCluster) Events() <-chan types.ClusterEvent { return c.events }

func (c *fakeCluster) noteUp(node types.NodeID) {
	c.mu.Lock()
	c.connected[node] = true
	c.mu.Unlock()
	c.events <- types.ClusterEvent{Type: types.NodeUp, Node: node, At: time.Now()}
}

func (c *fakeCluster) noteDown(node types.NodeID) {
	c.mu.Lock()
	c.connected[node] = false
	c.mu.Unlock()
	c.events <- types.ClusterEvent{Type: types.NodeDown, Node: node, At: time.Now()}
}

// connectNodes makes a and b mutually visible, the symmetric-gossip
// guarantee DESIGN.md's open-question resolution relies on.
func connectNodes(a, b *fakeCluster) {
	a.noteUp(b.self)
	b.noteUp(a.self)
}

type peerHub struct {
	mu       sync.Mutex
	services map[types.NodeID]*Service
}

func newPeerHub() *peerHub { return &peerHub{services: make(map[types.NodeID]*Service)} }

func (h *peerHub) register(node types.NodeID, s *Service) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.services[node] = s
}

func (h *peerHub) target(node types.NodeID) (*Service, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.services[node]
	if !ok {
		return nil, fmt.Errorf("harness: no registered node %s", node)
	}
	return s, nil
}

type fakePeer struct{ hub *peerHub }

func (p *fakePeer) Dispatch(ctx context.Context, to types.NodeID, cmd types.Command) (types.MutationReply, error) {
	target, err := p.hub.target(to)
	if err != nil {
		return types.MutationReply{}, err
	}
	return target.HandleDispatch(ctx, cmd)
}

func (p *fakePeer) PushExchange(ctx context.Context, to types.NodeID, payload types.ExchangePayload) error {
	target, err := p.hub.target(to)
	if err != nil {
		return err
	}
	return target.HandleExchange(ctx, payload)
}

func (p *fakePeer) SendHello(ctx context.Context, to types.NodeID, hello types.HelloMsg) error {
	target, err := p.hub.target(to)
	if err != nil {
		return err
	}
	return target.HandleHello(ctx, hello)
}

func (p *fakePeer) SendResync(ctx context.Context, to types.NodeID, resync types.ResyncMsg) error {
	target, err := p.hub.target(to)
	if err != nil {
		return err
	}
	return target.HandleResync(ctx, resync)
}

func (p *fakePeer) FetchState(ctx context.Context, to types.NodeID, group string) (types.NodeSnapshot, error) {
	target, err := p.hub.target(to)
	if err != nil {
		return types.NodeSnapshot{}, err
	}
	return target.HandleFetchState(ctx, group)
}

type fakeMonitor struct {
	mu         sync.Mutex
	byEndpoint map[types.Endpoint]types.MonitorRef
	seq        int
	deaths     chan types.MonitorRef
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{byEndpoint: make(map[types.Endpoint]types.MonitorRef), deaths: make(chan types.MonitorRef, 64)}
}

func (m *fakeMonitor) Monitor(e types.Endpoint) (types.MonitorRef, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	ref := types.MonitorRef(fmt.Sprintf("ref-%d", m.seq))
	m.byEndpoint[e] = ref
	return ref, true
}

func (m *fakeMonitor) Demonitor(ref types.MonitorRef) {}

func (m *fakeMonitor) Deaths() <-chan types.MonitorRef { return m.deaths }

func (m *fakeMonitor) NodeDown(node types.NodeID) {}

func (m *fakeMonitor) kill(e types.Endpoint) {
	m.mu.Lock()
	ref, ok := m.byEndpoint[e]
	m.mu.Unlock()
	if ok {
		m.deaths <- ref
	}
}

type fakeLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newFakeLock() *fakeLock { return &fakeLock{locks: make(map[string]*sync.Mutex)} }

func (l *fakeLock) Acquire(ctx context.Context, group string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[group]
	if !ok {
		m = &sync.Mutex{}
		l.locks[group] = m
	}
	l.mu.Unlock()
	m.Lock()
	return func() { m.Unlock() }, nil
}

type testNode struct {
	svc     *Service
	cluster *fakeCluster
	monitor *fakeMonitor
}

func newTestNode(node types.NodeID, hub *peerHub) *testNode {
	cluster := newFakeCluster(node)
	monitor := newFakeMonitor()
	svc := NewService(Config{
		Cluster: cluster,
		Peer:    &fakePeer{hub: hub},
		Monitor: monitor,
		Lock:    newFakeLock(),
	})
	hub.register(node, svc)
	go svc.Run()
	return &testNode{svc: svc, cluster: cluster, monitor: monitor}
}

func shutdownNode(n *testNode) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = n.svc.Shutdown(ctx)
}

func eventuallyTrue(timeout time.Duration, check func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return check()
}
