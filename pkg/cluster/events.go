package cluster

import (
	"time"

	"github.com/hashicorp/memberlist"

	"pgregistry/pkg/types"
)

// eventDelegate translates memberlist's join/leave/update callbacks into
// the typed ClusterEvent stream the registry actor consumes. Delivery is
// best-effort: if the channel is full the event is dropped rather than
// blocking memberlist's internal dispatch goroutine, matching the
// broadcast-with-default idiom used for local observer fan-out.
type eventDelegate struct {
	self   string
	events chan types.ClusterEvent
}

func newEventDelegate(self string) *eventDelegate {
	return &eventDelegate{self: self, events: make(chan types.ClusterEvent, 256)}
}

func (d *eventDelegate) NotifyJoin(n *memberlist.Node) {
	d.emit(types.NodeUp, n.Name)
}

func (d *eventDelegate) NotifyLeave(n *memberlist.Node) {
	d.emit(types.NodeDown, n.Name)
}

func (d *eventDelegate) NotifyUpdate(n *memberlist.Node) {}

func (d *eventDelegate) emit(kind types.ClusterEventType, name string) {
	if name == d.self {
		return
	}
	evt := types.ClusterEvent{Type: kind, Node: types.NodeID(name), At: time.Now()}
	select {
	case d.events <- evt:
	default:
	}
}

// delegate supplies the node metadata (RPC dial address) gossiped alongside
// membership. It implements memberlist.Delegate but only NodeMeta carries
// meaningful behavior; pgregistry doesn't piggyback application messages on
// the gossip layer, so the remaining methods are no-ops.
type delegate struct {
	meta []byte
}

func (d *delegate) NodeMeta(limit int) []byte {
	if len(d.meta) > limit {
		return d.meta[:limit]
	}
	return d.meta
}

func (d *delegate) NotifyMsg([]byte)                           {}
func (d *delegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (d *delegate) LocalState(join bool) []byte                { return nil }
func (d *delegate) MergeRemoteState(buf []byte, join bool)     {}
