package registry

import (
	"context"

	"pgregistry/pkg/metrics"
	"pgregistry/pkg/types"
)

const observerBuffer = 32

// LocalMonitor subscribes id to receive an Update for every group-mutation
// delta processed by this node, in the exact causal order those mutations
// were applied. Subscribing an id that is already present is a no-op; the
// returned bool reports whether the subscription already existed. The
// observer is automatically removed, and its channel closed, when ctx is
// canceled — standing in for the source's endpoint-monitor-based observer
// liveness tracking, since a context deadline is the idiomatic Go analogue
// of "the observer process died."
func (s *Service) LocalMonitor(ctx context.Context, id string) (<-chan types.Update, bool, error) {
	var ch chan types.Update
	var alreadyPresent bool
	ok := s.do(func() {
		if existing, present := s.observers[id]; present {
			ch, alreadyPresent = existing, true
			return
		}
		ch = make(chan types.Update, observerBuffer)
		s.observers[id] = ch
		metrics.ObserversTotal.Set(float64(len(s.observers)))
	})
	if !ok {
		return nil, false, ErrClosed
	}

	go func() {
		<-ctx.Done()
		s.do(func() {
			if current, present := s.observers[id]; present && current == ch {
				delete(s.observers, id)
				close(current)
				metrics.ObserversTotal.Set(float64(len(s.observers)))
			}
		})
	}()

	return ch, alreadyPresent, nil
}

// notify dispatches an Update carrying groups to every subscribed observer.
// It must run on the actor goroutine. Delivery is non-blocking: an observer
// that is not draining its channel fast enough loses the update rather than
// stalling the actor, the same best-effort fan-out idiom used for cluster
// events and death notifications. This weakens §8's P7 (observer ordering)
// from "the delivered sequence is a prefix of the mutation sequence" to "a
// subsequence of it": a slow observer can miss an update in the middle and
// still receive later ones, rather than blocking the actor until it catches
// up. Causal order among whatever does arrive is preserved.
func (s *Service) notify(groups []string) {
	if len(groups) == 0 {
		return
	}
	update := types.Update{Groups: groups}
	for id, ch := range s.observers {
		select {
		case ch <- update:
		default:
			s.logger.Warn().Str("observer", id).Msg("observer channel full, dropping update")
		}
	}
}
