package registry

import (
	"context"

	"pgregistry/pkg/types"
)

// Create registers name as a known group, cluster-wide. Idempotent.
func (s *Service) Create(ctx context.Context, name string) error {
	s.coordinator.execute(ctx, types.Command{Op: types.OpCreateGroup, Group: name})
	return nil
}

// Delete removes name and every membership it holds, cluster-wide.
func (s *Service) Delete(ctx context.Context, name string) error {
	if !s.groupExists(name) {
		return nil
	}
	s.coordinator.execute(ctx, types.Command{Op: types.OpDeleteGroup, Group: name})
	return nil
}

// Join adds e to name, cluster-wide. It returns ErrNoSuchGroup if name does
// not exist on this node.
func (s *Service) Join(ctx context.Context, name string, e types.Endpoint) error {
	if !s.groupExists(name) {
		return ErrNoSuchGroup
	}
	s.coordinator.execute(ctx, types.Command{Op: types.OpJoinGroup, Group: name, Endpoint: e})
	return nil
}

// Leave removes one unit of e's membership in name, cluster-wide. It
// returns ErrNoSuchGroup if name does not exist on this node; leaving an
// endpoint that isn't a member is otherwise a silent no-op.
func (s *Service) Leave(ctx context.Context, name string, e types.Endpoint) error {
	if !s.groupExists(name) {
		return ErrNoSuchGroup
	}
	s.coordinator.execute(ctx, types.Command{Op: types.OpLeaveGroup, Group: name, Endpoint: e})
	return nil
}

func (s *Service) groupExists(name string) bool {
	var exists bool
	ok := s.do(func() { exists = s.table.hasGroup(name) })
	return ok && exists
}

// Members returns name's full membership list, with one entry per unit of
// each endpoint's join-counter.
func (s *Service) Members(name string) ([]types.Endpoint, error) {
	var members []types.Endpoint
	var found bool
	ok := s.do(func() { members, found = s.table.getMembers(name) })
	if !ok {
		return nil, ErrClosed
	}
	if !found {
		return nil, ErrNoSuchGroup
	}
	return members, nil
}

// LocalMembers returns the subset of name's members homed on this node.
func (s *Service) LocalMembers(name string) ([]types.Endpoint, error) {
	var members []types.Endpoint
	var found bool
	ok := s.do(func() { members, found = s.table.getLocalMembers(name) })
	if !ok {
		return nil, ErrClosed
	}
	if !found {
		return nil, ErrNoSuchGroup
	}
	return members, nil
}

// WhichGroups returns every group name known to this node.
func (s *Service) WhichGroups() ([]string, error) {
	var names []string
	ok := s.do(func() { names = s.table.whichGroups() })
	if !ok {
		return nil, ErrClosed
	}
	return names, nil
}

// ClosestPid picks a member of name, preferring a local one.
func (s *Service) ClosestPid(name string) (types.Endpoint, error) {
	var e types.Endpoint
	var err error
	ok := s.do(func() { e, err = s.table.closestPid(name) })
	if !ok {
		return types.Endpoint{}, ErrClosed
	}
	return e, err
}

// Sync proactively pushes this node's exchange payload to every connected
// peer, without waiting for a node-up event or resync signal to trigger it.
func (s *Service) Sync(ctx context.Context) error {
	var nodes []types.NodeID
	ok := s.do(func() { nodes = s.cluster.ConnectedNodes() })
	if !ok {
		return ErrClosed
	}
	for _, n := range nodes {
		go s.pushExchange(n)
	}
	return nil
}

// Resync asks every connected node to re-send its state to all of its own
// peers. It is fire-and-forget, per spec.
func (s *Service) Resync(ctx context.Context) {
	var nodes []types.NodeID
	s.do(func() { nodes = s.cluster.ConnectedNodes() })
	for _, n := range nodes {
		go func(n types.NodeID) {
			if err := s.peer.SendResync(ctx, n, types.ResyncMsg{From: s.self}); err != nil {
				s.logger.Debug().Str("to", string(n)).Err(err).Msg("resync signal failed")
			}
		}(n)
	}
}

// ConnectedNodeCount returns the number of other nodes this node currently
// sees as connected.
func (s *Service) ConnectedNodeCount() int {
	var n int
	s.do(func() { n = len(s.cluster.ConnectedNodes()) })
	return n
}

// MonitoredEndpointCount returns the number of endpoints this node currently
// holds a live monitor on.
func (s *Service) MonitoredEndpointCount() int {
	var n int
	s.do(func() { n = len(s.table.monitors) })
	return n
}

// ObserverCount returns the number of local observers currently subscribed.
func (s *Service) ObserverCount() int {
	var n int
	s.do(func() { n = len(s.observers) })
	return n
}

// GlobalResync fans a resync signal out to every connected node and
// reports how many were signalled.
func (s *Service) GlobalResync(ctx context.Context) (int, error) {
	var nodes []types.NodeID
	ok := s.do(func() { nodes = s.cluster.ConnectedNodes() })
	if !ok {
		return 0, ErrClosed
	}
	signalled := 0
	for _, n := range nodes {
		if err := s.peer.SendResync(ctx, n, types.ResyncMsg{From: s.self}); err != nil {
			s.logger.Debug().Str("to", string(n)).Err(err).Msg("global resync signal failed")
			continue
		}
		signalled++
	}
	return signalled, nil
}
