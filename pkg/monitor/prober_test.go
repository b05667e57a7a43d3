package monitor

import (
	"net"
	"testing"
	"time"

	"pgregistry/pkg/types"
)

type fakeCluster struct {
	connected map[types.NodeID]bool
}

func (f *fakeCluster) IsConnected(node types.NodeID) bool {
	return f.connected[node]
}

func TestMonitorDirectOnConnectedNode(t *testing.T) {
	p := NewProber(&fakeCluster{connected: map[types.NodeID]bool{"n1": true}}, Config{})
	ref, direct := p.Monitor(types.Endpoint{ID: "e1", Node: "n1", Addr: "127.0.0.1:1"})
	if !direct {
		t.Fatal("expected direct watch for a connected node")
	}
	if ref == "" {
		t.Fatal("expected non-empty ref")
	}
}

func TestMonitorIsIdempotentPerEndpoint(t *testing.T) {
	p := NewProber(&fakeCluster{connected: map[types.NodeID]bool{"n1": true}}, Config{})
	e := types.Endpoint{ID: "e1", Node: "n1", Addr: "127.0.0.1:1"}
	ref1, _ := p.Monitor(e)
	ref2, _ := p.Monitor(e)
	if ref1 != ref2 {
		t.Fatalf("expected the same ref for repeated Monitor of the same endpoint, got %v and %v", ref1, ref2)
	}
}

func TestNodeDownDeliversDirectDeaths(t *testing.T) {
	p := NewProber(&fakeCluster{connected: map[types.NodeID]bool{"n1": true}}, Config{})
	ref, _ := p.Monitor(types.Endpoint{ID: "e1", Node: "n1", Addr: "127.0.0.1:1"})

	p.NodeDown("n1")

	select {
	case got := <-p.Deaths():
		if got != ref {
			t.Fatalf("expected death for %v, got %v", ref, got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for death notification")
	}
}

func TestDemonitorStopsDirectWatch(t *testing.T) {
	p := NewProber(&fakeCluster{connected: map[types.NodeID]bool{"n1": true}}, Config{})
	ref, _ := p.Monitor(types.Endpoint{ID: "e1", Node: "n1", Addr: "127.0.0.1:1"})
	p.Demonitor(ref)

	p.NodeDown("n1")

	select {
	case got := <-p.Deaths():
		t.Fatalf("expected no death after demonitor, got %v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHelperWorkerReportsDeathOnUnreachableAddress(t *testing.T) {
	// Reserve a port and close the listener immediately so nothing answers.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	p := NewProber(&fakeCluster{}, Config{
		Interval:      20 * time.Millisecond,
		Timeout:       50 * time.Millisecond,
		FailThreshold: 2,
	})

	ref, direct := p.Monitor(types.Endpoint{ID: "e2", Node: "unconnected", Addr: addr})
	if direct {
		t.Fatal("expected a helper watch for an unconnected node")
	}

	select {
	case got := <-p.Deaths():
		if got != ref {
			t.Fatalf("expected death for %v, got %v", ref, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for helper worker death notification")
	}
}
