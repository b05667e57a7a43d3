package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"pgregistry/pkg/types"
)

type fakeHandler struct {
	lastCmd    types.Command
	lastHello  types.HelloMsg
	lastResync types.ResyncMsg
	granted    map[string]bool
}

func (f *fakeHandler) HandleDispatch(ctx context.Context, cmd types.Command) (types.MutationReply, error) {
	f.lastCmd = cmd
	return types.MutationReply{OK: true}, nil
}

func (f *fakeHandler) HandleExchange(ctx context.Context, payload types.ExchangePayload) error {
	return nil
}

func (f *fakeHandler) HandleHello(ctx context.Context, hello types.HelloMsg) error {
	f.lastHello = hello
	return nil
}

func (f *fakeHandler) HandleResync(ctx context.Context, resync types.ResyncMsg) error {
	f.lastResync = resync
	return nil
}

func (f *fakeHandler) HandleFetchState(ctx context.Context, group string) (types.NodeSnapshot, error) {
	groups := []types.GroupSnapshot{{Group: "g1"}}
	if group != "" {
		filtered := groups[:0]
		for _, g := range groups {
			if g.Group == group {
				filtered = append(filtered, g)
			}
		}
		groups = filtered
	}
	return types.NodeSnapshot{Node: "n2", Groups: groups}, nil
}

func (f *fakeHandler) HandleAcquireLock(ctx context.Context, group string) (bool, error) {
	if f.granted == nil {
		f.granted = make(map[string]bool)
	}
	if f.granted[group] {
		return false, nil
	}
	f.granted[group] = true
	return true, nil
}

func (f *fakeHandler) HandleReleaseLock(ctx context.Context, group string) error {
	delete(f.granted, group)
	return nil
}

type staticResolver struct {
	addr string
}

func (s *staticResolver) Address(node types.NodeID) (string, bool) {
	return s.addr, true
}

func startTestServer(t *testing.T, handler PeerHandler) (addr string, stop func()) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := NewPeer(nil)
	go func() {
		_ = server.Serve(lis, handler, nil)
	}()
	return lis.Addr().String(), func() { server.Stop() }
}

func TestPeerDispatchRoundTrip(t *testing.T) {
	handler := &fakeHandler{}
	addr, stop := startTestServer(t, handler)
	defer stop()

	client := NewPeer(&staticResolver{addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cmd := types.Command{Op: types.OpJoinGroup, Group: "g1", Endpoint: types.Endpoint{ID: "e1", Node: "n1", Addr: "127.0.0.1:1"}}
	reply, err := client.Dispatch(ctx, "n2", cmd)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !reply.OK {
		t.Fatalf("expected OK reply, got %+v", reply)
	}
	if handler.lastCmd.Group != "g1" {
		t.Fatalf("expected handler to see group g1, got %q", handler.lastCmd.Group)
	}
}

func TestPeerFetchState(t *testing.T) {
	handler := &fakeHandler{}
	addr, stop := startTestServer(t, handler)
	defer stop()

	client := NewPeer(&staticResolver{addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	snapshot, err := client.FetchState(ctx, "n2", "")
	if err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	if len(snapshot.Groups) != 1 || snapshot.Groups[0].Group != "g1" {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestPeerAcquireAndReleaseLock(t *testing.T) {
	handler := &fakeHandler{}
	addr, stop := startTestServer(t, handler)
	defer stop()

	client := NewPeer(&staticResolver{addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	granted, err := client.AcquireLock(ctx, "n2", "group-a")
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if !granted {
		t.Fatal("expected first AcquireLock to be granted")
	}

	granted, err = client.AcquireLock(ctx, "n2", "group-a")
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if granted {
		t.Fatal("expected second AcquireLock to be refused while held")
	}

	if err := client.ReleaseLock(ctx, "n2", "group-a"); err != nil {
		t.Fatalf("ReleaseLock: %v", err)
	}

	granted, err = client.AcquireLock(ctx, "n2", "group-a")
	if err != nil {
		t.Fatalf("AcquireLock after release: %v", err)
	}
	if !granted {
		t.Fatal("expected AcquireLock to succeed again after release")
	}
}

func TestPeerHelloAndResync(t *testing.T) {
	handler := &fakeHandler{}
	addr, stop := startTestServer(t, handler)
	defer stop()

	client := NewPeer(&staticResolver{addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.SendHello(ctx, "n2", types.HelloMsg{From: "n1"}); err != nil {
		t.Fatalf("SendHello: %v", err)
	}
	if handler.lastHello.From != "n1" {
		t.Fatalf("expected handler to see hello from n1, got %q", handler.lastHello.From)
	}

	if err := client.SendResync(ctx, "n2", types.ResyncMsg{From: "n1"}); err != nil {
		t.Fatalf("SendResync: %v", err)
	}
	if handler.lastResync.From != "n1" {
		t.Fatalf("unexpected resync: %+v", handler.lastResync)
	}
}

func TestPeerDialFailsWithoutKnownAddress(t *testing.T) {
	client := NewPeer(&noAddressResolver{})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := client.FetchState(ctx, "ghost", ""); err == nil {
		t.Fatal("expected an error for an unresolvable node")
	}
}

type noAddressResolver struct{}

func (noAddressResolver) Address(node types.NodeID) (string, bool) { return "", false }
