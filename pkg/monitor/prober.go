package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pgregistry/pkg/health"
	"pgregistry/pkg/types"
)

// ClusterView is the slice of a cluster substrate Prober needs: whether a
// given node is currently connected. Declared locally, not imported from
// pkg/registry, so pkg/monitor never depends on pkg/registry;
// *cluster.Adapter satisfies it structurally.
type ClusterView interface {
	IsConnected(node types.NodeID) bool
}

// Config tunes the per-endpoint TCP liveness probe run for every watch.
type Config struct {
	Interval      time.Duration
	Timeout       time.Duration
	FailThreshold int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
	if c.FailThreshold <= 0 {
		c.FailThreshold = 3
	}
	return c
}

type watch struct {
	ref      types.MonitorRef
	endpoint types.Endpoint
	cancel   context.CancelFunc
	direct   bool
}

// Prober implements the registry's EndpointMonitor substrate. Every watch,
// direct or helper, runs a ticking TCP liveness probe against the
// endpoint's own address: a node staying connected says nothing about
// whether the individual process at that endpoint is still alive, so
// NodeDown alone cannot stand in for per-endpoint death. A "direct" watch
// (home node already connected) additionally dies the instant the cluster
// substrate reports that node down, without waiting for the probe's own
// fail threshold to elapse — "direct" only changes how fast death is
// detected, not whether it is detected at all. A "helper" watch (home node
// not yet connected) has no node-down signal to ride at all, so the TCP
// probe is its only source of truth — the compensation path described for
// not-yet-connected endpoints.
type Prober struct {
	cluster ClusterView
	cfg     Config

	mu         sync.Mutex
	byRef      map[types.MonitorRef]*watch
	byEndpoint map[types.Endpoint]*watch
	byNode     map[types.NodeID]map[types.MonitorRef]struct{}

	deaths chan types.MonitorRef
}

// NewProber creates a Prober backed by cluster's connectivity view.
func NewProber(cluster ClusterView, cfg Config) *Prober {
	return &Prober{
		cluster:    cluster,
		cfg:        cfg.withDefaults(),
		byRef:      make(map[types.MonitorRef]*watch),
		byEndpoint: make(map[types.Endpoint]*watch),
		byNode:     make(map[types.NodeID]map[types.MonitorRef]struct{}),
		deaths:     make(chan types.MonitorRef, 256),
	}
}

// Monitor begins watching e for death, returning a ref to later demonitor
// and whether the watch is direct (also riding cluster membership) or a
// helper worker (relying on its probe of e.Addr alone). Both kinds probe
// e.Addr.
func (p *Prober) Monitor(e types.Endpoint) (types.MonitorRef, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.byEndpoint[e]; ok {
		return w.ref, w.direct
	}

	ref := types.MonitorRef(uuid.NewString())
	direct := p.cluster.IsConnected(e.Node)
	ctx, cancel := context.WithCancel(context.Background())
	w := &watch{ref: ref, endpoint: e, cancel: cancel, direct: direct}

	p.byRef[ref] = w
	p.byEndpoint[e] = w

	if direct {
		if p.byNode[e.Node] == nil {
			p.byNode[e.Node] = make(map[types.MonitorRef]struct{})
		}
		p.byNode[e.Node][ref] = struct{}{}
	}
	go p.probeLoop(ctx, w)

	return ref, direct
}

// Demonitor stops watching whatever endpoint ref names. Demonitoring an
// unknown ref is a no-op.
func (p *Prober) Demonitor(ref types.MonitorRef) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(ref)
}

func (p *Prober) removeLocked(ref types.MonitorRef) {
	w, ok := p.byRef[ref]
	if !ok {
		return
	}
	w.cancel()
	delete(p.byRef, ref)
	delete(p.byEndpoint, w.endpoint)
	if w.direct {
		if set := p.byNode[w.endpoint.Node]; set != nil {
			delete(set, ref)
			if len(set) == 0 {
				delete(p.byNode, w.endpoint.Node)
			}
		}
	}
}

// Deaths returns the channel death notifications are delivered on, at most
// once per monitored endpoint that is found to have died. The send does not
// block: a notification is dropped if the channel's buffer is full.
func (p *Prober) Deaths() <-chan types.MonitorRef {
	return p.deaths
}

// NodeDown reports every direct watch homed on node as dead. The registry
// actor calls this when its ClusterSubstrate reports the node gone.
func (p *Prober) NodeDown(node types.NodeID) {
	p.mu.Lock()
	refs := p.byNode[node]
	toNotify := make([]types.MonitorRef, 0, len(refs))
	for ref := range refs {
		toNotify = append(toNotify, ref)
	}
	for _, ref := range toNotify {
		p.removeLocked(ref)
	}
	p.mu.Unlock()

	for _, ref := range toNotify {
		select {
		case p.deaths <- ref:
		default:
		}
	}
}

// probeLoop ticks a TCP liveness check against w's endpoint until ctx is
// canceled (Demonitor, or a direct watch's NodeDown firing first) or the
// check fails FailThreshold times in a row, whichever comes first.
func (p *Prober) probeLoop(ctx context.Context, w *watch) {
	checker := health.NewTCPChecker(w.endpoint.Addr).WithTimeout(p.cfg.Timeout)
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := checker.Check(ctx)
			if res.Healthy {
				failures = 0
				continue
			}
			failures++
			if failures < p.cfg.FailThreshold {
				continue
			}
			p.mu.Lock()
			p.removeLocked(w.ref)
			p.mu.Unlock()
			select {
			case p.deaths <- w.ref:
			default:
			}
			return
		}
	}
}
