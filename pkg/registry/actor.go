package registry

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"pgregistry/pkg/lock"
	"pgregistry/pkg/log"
	"pgregistry/pkg/metrics"
	"pgregistry/pkg/types"
)

// Service is the single-consumer Registry actor: one instance runs per
// cluster node, owning a private stateTable that no other goroutine ever
// touches directly. Every public method and every inbound peer call is
// translated into a closure posted to mailbox and executed by run() on the
// actor goroutine; callers block on their own reply channel, never on the
// table itself.
type Service struct {
	self types.NodeID

	table       *stateTable
	cluster     ClusterSubstrate
	peer        PeerTransport
	monitor     EndpointMonitor
	lock        LockProvider
	granter     *lock.Granter
	coordinator *coordinator

	observers map[string]chan types.Update

	mailbox chan func()
	closed  chan struct{}
	done    chan struct{}

	logger zerolog.Logger
}

// Config wires a Service to its substrate adapters. Granter is this node's
// half of the stable-hash cluster lock — the coordinator side that grants
// or refuses a group lock when this node is elected coordinator for it; it
// is what this Service's HandleAcquireLock/HandleReleaseLock grant from, so
// pass the same *lock.Granter given to lock.New for the Lock field. If nil,
// a private Granter is created (fine for single-node use or tests).
type Config struct {
	Cluster ClusterSubstrate
	Peer    PeerTransport
	Monitor EndpointMonitor
	Lock    LockProvider
	Granter *lock.Granter
}

// NewService builds a Service around cfg. Call Run to start its actor
// goroutine before using any of its public methods.
func NewService(cfg Config) *Service {
	self := cfg.Cluster.LocalNode()
	granter := cfg.Granter
	if granter == nil {
		granter = lock.NewGranter()
	}
	s := &Service{
		self:      self,
		table:     newStateTable(self),
		cluster:   cfg.Cluster,
		peer:      cfg.Peer,
		monitor:   cfg.Monitor,
		lock:      cfg.Lock,
		granter:   granter,
		observers: make(map[string]chan types.Update),
		mailbox:   make(chan func(), 64),
		closed:    make(chan struct{}),
		done:      make(chan struct{}),
		logger:    log.WithNodeID(string(self)),
	}
	s.coordinator = newCoordinator(s)
	return s
}

// Run starts the actor's mailbox loop. It returns once Shutdown has been
// called and every monitor and observer has been torn down; closures still
// queued in the mailbox at that point are not run.
func (s *Service) Run() {
	events := s.cluster.Events()
	deaths := s.monitor.Deaths()

	defer close(s.done)
	for {
		select {
		case fn := <-s.mailbox:
			fn()
		case evt := <-events:
			s.handleClusterEvent(evt)
		case ref := <-deaths:
			s.handleDeath(ref)
		case <-s.closed:
			s.drainAndTeardown()
			return
		}
	}
}

// Shutdown signals the actor to stop and blocks until it has finished
// demonitoring every endpoint and closing every observer channel.
func (s *Service) Shutdown(ctx context.Context) error {
	close(s.closed)
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) drainAndTeardown() {
	for ref := range s.table.monitorIndex {
		s.monitor.Demonitor(ref)
	}
	for id, ch := range s.observers {
		close(ch)
		delete(s.observers, id)
	}
}

// do posts fn to the actor's mailbox and blocks until it has run, or until
// the service is shut down. Every public method is a thin wrapper around do.
func (s *Service) do(fn func()) bool {
	ack := make(chan struct{})
	wrapped := func() { fn(); close(ack) }
	select {
	case s.mailbox <- wrapped:
	case <-s.closed:
		return false
	}
	select {
	case <-ack:
		return true
	case <-s.closed:
		return false
	}
}

// installMonitor asks the EndpointMonitor substrate to watch e and records
// the resulting ref in the state table. Must run on the actor goroutine.
func (s *Service) installMonitor(e types.Endpoint) {
	ref, direct := s.monitor.Monitor(e)
	s.table.setMonitorRef(e, ref, direct)
}

// applyCommand applies a single mutation to the local state table and
// dispatches any resulting delta to observers. It runs inside the actor and
// is the serving-side state machine described for the coordinator's
// fan-out target and for Dispatch RPCs received from peers.
func (s *Service) applyCommand(cmd types.Command) types.MutationReply {
	switch cmd.Op {
	case types.OpCreateGroup:
		s.table.assureGroup(cmd.Group)
		s.notify([]string{cmd.Group})
		metrics.GroupsTotal.Set(float64(len(s.table.groups)))
		return types.MutationReply{OK: true}

	case types.OpDeleteGroup:
		delta, demonitors, ok := s.table.deleteGroup(cmd.Group)
		if !ok {
			return types.MutationReply{OK: false, Err: "no_such_group"}
		}
		for _, ref := range demonitors {
			s.monitor.Demonitor(ref)
		}
		s.refreshMonitorMetric()
		s.notify(delta)
		metrics.GroupsTotal.Set(float64(len(s.table.groups)))
		return types.MutationReply{OK: true}

	case types.OpJoinGroup:
		// A fan-out target may lag the group's creation briefly; treat a
		// missing group defensively the same way exchange does, since the
		// coordinator already validated the precondition on the caller's
		// node and union-merge makes the auto-create harmless here.
		s.table.assureGroup(cmd.Group)
		delta, needsMonitor, _ := s.table.joinGroup(cmd.Group, cmd.Endpoint)
		if needsMonitor {
			s.installMonitor(cmd.Endpoint)
			s.refreshMonitorMetric()
		}
		s.notify(delta)
		metrics.MembersTotal.WithLabelValues(cmd.Group).Inc()
		return types.MutationReply{OK: true}

	case types.OpLeaveGroup:
		delta, ref, shouldDemonitor := s.table.leaveGroup(cmd.Group, cmd.Endpoint)
		if shouldDemonitor {
			s.monitor.Demonitor(ref)
			s.refreshMonitorMetric()
		}
		if len(delta) > 0 {
			metrics.MembersTotal.WithLabelValues(cmd.Group).Dec()
		}
		s.notify(delta)
		return types.MutationReply{OK: true}

	default:
		return types.MutationReply{OK: false, Err: fmt.Sprintf("unknown op %q", cmd.Op)}
	}
}

func (s *Service) handleClusterEvent(evt types.ClusterEvent) {
	switch evt.Type {
	case types.NodeUp:
		s.onNodeUp(evt.Node)
	case types.NodeDown:
		s.monitor.NodeDown(evt.Node)
		metrics.ConnectedNodesTotal.Set(float64(len(s.cluster.ConnectedNodes())))
	}
}

func (s *Service) handleDeath(ref types.MonitorRef) {
	affected, _, _, found := s.table.memberDied(ref)
	if !found {
		s.logger.Warn().Str("ref", string(ref)).Msg("death notification for unknown monitor ref")
		return
	}
	metrics.MemberDeathsTotal.Inc()
	s.notify(affected)
}
