package registry

import (
	"context"
	"time"

	"pgregistry/pkg/metrics"
	"pgregistry/pkg/types"
)

const peerCallTimeout = 5 * time.Second

// onNodeUp is the node-up trigger of the exchange protocol: greet the new
// peer with a hello so it knows to exchange back, and proactively push our
// own exchange payload to it.
func (s *Service) onNodeUp(node types.NodeID) {
	metrics.ConnectedNodesTotal.Set(float64(len(s.cluster.ConnectedNodes())))
	go s.pushHello(node)
	go s.pushExchange(node)
}

func (s *Service) pushHello(to types.NodeID) {
	ctx, cancel := context.WithTimeout(context.Background(), peerCallTimeout)
	defer cancel()
	if err := s.peer.SendHello(ctx, to, types.HelloMsg{From: s.self}); err != nil {
		s.logger.Debug().Str("to", string(to)).Err(err).Msg("hello failed")
	}
}

func (s *Service) pushExchange(to types.NodeID) {
	payload := types.ExchangePayload{}
	s.do(func() {
		payload = types.ExchangePayload{From: s.self, Groups: s.table.exchangeSubset(to)}
	})

	ctx, cancel := context.WithTimeout(context.Background(), peerCallTimeout)
	defer cancel()
	if err := s.peer.PushExchange(ctx, to, payload); err != nil {
		s.logger.Debug().Str("to", string(to)).Err(err).Msg("exchange push failed")
		return
	}
	metrics.ExchangeRoundsTotal.WithLabelValues("pushed").Inc()
}

// HandleHello implements transport.PeerHandler: a peer announcing itself is
// answered with our own exchange payload, mirroring the node-up trigger.
func (s *Service) HandleHello(ctx context.Context, hello types.HelloMsg) error {
	go s.pushExchange(hello.From)
	return nil
}

// HandleExchange implements transport.PeerHandler: applies payload's
// union-merge and notifies observers of whatever it changed.
func (s *Service) HandleExchange(ctx context.Context, payload types.ExchangePayload) error {
	ok := s.do(func() {
		var affected []string
		for _, gm := range payload.Groups {
			for _, e := range gm.Members {
				joined, needsMonitor := s.table.unionJoin(gm.Group, e)
				if !joined {
					continue
				}
				if needsMonitor {
					s.installMonitor(e)
					s.refreshMonitorMetric()
				}
				affected = append(affected, gm.Group)
			}
			// A group can also arrive with no members (e.g. created but
			// empty on the sender); still ensure it exists locally.
			if len(gm.Members) == 0 {
				s.table.assureGroup(gm.Group)
			}
		}
		s.notify(dedupeStrings(affected))
		metrics.ExchangeRoundsTotal.WithLabelValues("received").Inc()
	})
	if !ok {
		return ErrClosed
	}
	return nil
}

// HandleResync implements transport.PeerHandler: re-sends our state to
// every connected peer, the receiver's half of the resync signal.
func (s *Service) HandleResync(ctx context.Context, resync types.ResyncMsg) error {
	var nodes []types.NodeID
	ok := s.do(func() {
		nodes = s.cluster.ConnectedNodes()
	})
	if !ok {
		return ErrClosed
	}
	for _, n := range nodes {
		go s.pushExchange(n)
	}
	return nil
}

// HandleFetchState implements transport.PeerHandler for the verifier's
// per-node scrape: this node's view of group, or of every group when group
// is empty.
func (s *Service) HandleFetchState(ctx context.Context, group string) (types.NodeSnapshot, error) {
	var snap types.NodeSnapshot
	ok := s.do(func() {
		snap = types.NodeSnapshot{Node: s.self, Groups: s.table.snapshot(group)}
	})
	if !ok {
		return types.NodeSnapshot{}, ErrClosed
	}
	return snap, nil
}

// HandleDispatch implements transport.PeerHandler for the mutation
// coordinator's fan-out call.
func (s *Service) HandleDispatch(ctx context.Context, cmd types.Command) (types.MutationReply, error) {
	var reply types.MutationReply
	ok := s.do(func() {
		reply = s.applyCommand(cmd)
	})
	if !ok {
		return types.MutationReply{}, ErrClosed
	}
	return reply, nil
}

// HandleAcquireLock and HandleReleaseLock implement transport.PeerHandler
// for this node's role as an elected lock coordinator. Grant bookkeeping is
// delegated to the *lock.Granter from Config.Granter: cmd/pgregistryd passes
// the same Granter to lock.New, so a peer's request and this node's own
// Locker are granted from one table, and these two methods simply forward.
// See pkg/lock/granter.go for the grant table.
func (s *Service) HandleAcquireLock(ctx context.Context, group string) (bool, error) {
	return s.granter.TryAcquire(group), nil
}

func (s *Service) HandleReleaseLock(ctx context.Context, group string) error {
	s.granter.Release(group)
	return nil
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
