package types

import (
	"encoding/json"
	"time"
)

// NodeID identifies a node in the cluster membership. It is stable for the
// lifetime of a node process and is used as the home-node tag on every
// Endpoint created by that node.
type NodeID string

// Endpoint identifies a single registrable process. ID must be unique
// cluster-wide; Node records which NodeID originated it (its "home"); Addr
// is the dial address used by liveness probing and, where applicable, by
// callers that resolve a closest pid to a live connection.
//
// Endpoint is comparable and is used directly as a map key throughout
// pkg/registry.
type Endpoint struct {
	ID   string
	Node NodeID
	Addr string
}

func (e Endpoint) String() string {
	return e.ID + "@" + string(e.Node)
}

// MonitorRef is an opaque handle returned by an EndpointMonitor substrate
// when it begins watching an Endpoint. It is later used to demonitor, and
// it is the correlation key carried on a death notification.
type MonitorRef string

// MutationOp enumerates the group-mutating operations that flow through the
// Mutation Coordinator and are fanned out to every connected node.
type MutationOp string

const (
	OpCreateGroup MutationOp = "create_group"
	OpDeleteGroup MutationOp = "delete_group"
	OpJoinGroup   MutationOp = "join_group"
	OpLeaveGroup  MutationOp = "leave_group"
)

// Command is the wire encoding of one mutation. It travels inside the
// transport's Dispatch request to every node named by the coordinator's
// fan-out set.
type Command struct {
	Op       MutationOp `json:"op"`
	Group    string     `json:"group"`
	Endpoint Endpoint   `json:"endpoint,omitempty"`
}

// MutationRequest wraps a Command addressed to a single node (which may be
// itself). The transport's Dispatch call carries the Command in its own
// request type, so nothing in this module sends a MutationRequest.
type MutationRequest struct {
	Command Command `json:"command"`
}

// MutationReply acknowledges a dispatched Command. Err names why the node
// did not apply it: no_such_group for a delete of an unknown group, or an
// unknown op. The coordinator does not inspect replies, so Err is neither
// surfaced to the caller nor retried.
type MutationReply struct {
	OK  bool   `json:"ok"`
	Err string `json:"err,omitempty"`
}

// GroupMembers carries one group's membership subset inside an
// ExchangePayload. Per the exchange protocol, the subset sent to peer P
// contains only endpoints homed on the sender or on P.
type GroupMembers struct {
	Group   string     `json:"group"`
	Members []Endpoint `json:"members,omitempty"`
}

// ExchangePayload is the gossip unit pushed from one node to another to
// reconcile group membership. Applying it is a union-merge: every
// (group, endpoint) pair it names is joined locally if not already present.
type ExchangePayload struct {
	From   NodeID         `json:"from"`
	Groups []GroupMembers `json:"groups,omitempty"`
}

// HelloMsg announces the sender to the receiver, used on first contact and
// on cluster-membership node-up events to trigger an exchange round.
type HelloMsg struct {
	From NodeID `json:"from"`
}

// ResyncMsg instructs the receiver to re-send its state to all of its own
// peers, used to recover from a suspected divergence without waiting for a
// full global_resync.
type ResyncMsg struct {
	From NodeID `json:"from"`
}

// GroupSnapshot is one group's view as reported by a single node for the
// cluster-state verifier. Full includes duplicate entries reflecting the
// join counter; Local contains only endpoints homed on the reporting node
// and is therefore authoritative for that node's share of the group.
type GroupSnapshot struct {
	Group string     `json:"group"`
	Full  []Endpoint `json:"full,omitempty"`
	Local []Endpoint `json:"local,omitempty"`
}

// NodeSnapshot is the response to a verifier's fetch-state call: the full
// set of groups known to the responding node, or a single named group when
// the request is scoped.
type NodeSnapshot struct {
	Node   NodeID          `json:"node"`
	Groups []GroupSnapshot `json:"groups,omitempty"`
}

// ClusterEventType enumerates the membership transitions a ClusterSubstrate
// reports through its event channel.
type ClusterEventType string

const (
	NodeUp   ClusterEventType = "node_up"
	NodeDown ClusterEventType = "node_down"
)

// ClusterEvent is a single membership transition observed by the
// cluster substrate.
type ClusterEvent struct {
	Type ClusterEventType `json:"type"`
	Node NodeID           `json:"node"`
	At   time.Time        `json:"at"`
}

// Update is delivered to a local observer subscribed via LocalMonitor. It
// names the groups whose membership changed since the last update; the
// observer is expected to re-fetch membership for any group it cares about.
type Update struct {
	Groups []string `json:"groups"`
}

// VerifySummary is the result of a cluster-wide consistency scan.
type VerifySummary struct {
	Nodes   []NodeID    `json:"nodes"`
	Groups  []string    `json:"groups"`
	Members int         `json:"members"`
	Diffs   []DiffEntry `json:"diffs,omitempty"`
}

// DiffEntry records one node's divergence from the authoritative-by-home-node
// membership of a single group.
type DiffEntry struct {
	Group   string     `json:"group"`
	Node    NodeID     `json:"node"`
	Missing []Endpoint `json:"missing,omitempty"`
	Extra   []Endpoint `json:"extra,omitempty"`
}

// Encode is a small convenience used by callers that log or hash a Command.
func (c Command) Encode() ([]byte, error) {
	return json.Marshal(c)
}
