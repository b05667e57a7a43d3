package registry

import (
	"context"
	"sync"

	"pgregistry/pkg/metrics"
	"pgregistry/pkg/types"
)

// coordinator is the Mutation Coordinator: it runs in the calling
// goroutine, never on the actor, so a slow or unreachable peer during
// fan-out cannot stall the mailbox. It acquires the cluster-wide named lock
// for the mutation's group, fans the command out to every currently-known
// node with a bounded timeout, and schedules a best-effort hello for any
// node that didn't answer in time — never surfacing fan-out failures to
// the caller, since the exchange protocol repairs them asynchronously.
type coordinator struct {
	s *Service
}

func newCoordinator(s *Service) *coordinator {
	return &coordinator{s: s}
}

// execute applies cmd cluster-wide and never reports a failure (it returns
// nothing, and the public mutation methods return nil after it), per the
// source's "delivery is best-effort" rationale: the lock buys fairness between
// concurrent mutations of the same group, not correctness of delivery.
func (c *coordinator) execute(ctx context.Context, cmd types.Command) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.MutationDuration, string(cmd.Op))

	nodes := append([]types.NodeID{c.s.self}, c.s.cluster.ConnectedNodes()...)

	release, err := c.s.lock.Acquire(ctx, cmd.Group)
	if err != nil {
		c.s.logger.Warn().Str("group", cmd.Group).Err(err).Msg("lock acquisition abandoned")
		metrics.MutationsTotal.WithLabelValues(string(cmd.Op), "lock_abandoned").Inc()
		return
	}
	defer release()

	fanoutCtx, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()

	bad := c.fanout(fanoutCtx, nodes, cmd)

	// Straggler repair: a bad node, or any node that connected mid-fan-out
	// and therefore never saw this mutation, gets a hello to force a full
	// exchange rather than a targeted retry of this one command.
	now := c.s.cluster.ConnectedNodes()
	seen := make(map[types.NodeID]struct{}, len(nodes))
	for _, n := range nodes {
		seen[n] = struct{}{}
	}
	for _, n := range now {
		if _, ok := seen[n]; !ok {
			bad = append(bad, n)
		}
	}
	for _, n := range bad {
		go c.s.pushHello(n)
	}

	metrics.MutationsTotal.WithLabelValues(string(cmd.Op), "ok").Inc()
}

// fanout issues cmd to every node in nodes, applying it locally (via the
// actor, not the table directly) when a node is this one. It returns every
// node that failed to acknowledge before ctx's deadline.
func (c *coordinator) fanout(ctx context.Context, nodes []types.NodeID, cmd types.Command) []types.NodeID {
	var (
		mu  sync.Mutex
		bad []types.NodeID
		wg  sync.WaitGroup
	)

	for _, n := range nodes {
		n := n
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if n == c.s.self {
				ok := c.s.do(func() { c.s.applyCommand(cmd) })
				if !ok {
					err = ErrClosed
				}
			} else {
				_, err = c.s.peer.Dispatch(ctx, n, cmd)
			}
			if err != nil {
				c.s.logger.Debug().Str("node", string(n)).Str("group", cmd.Group).Err(err).Msg("fan-out call failed")
				mu.Lock()
				bad = append(bad, n)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return bad
}
