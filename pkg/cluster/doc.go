/*
Package cluster adapts hashicorp/memberlist's SWIM gossip membership into
the small ClusterSubstrate shape pkg/registry depends on: LocalNode,
ConnectedNodes, and a channel of node-up/node-down events. Adapter also
provides IsConnected, which pkg/monitor uses to choose direct or helper
watches.

Each node's gRPC dial address is gossiped as memberlist node metadata so
that pkg/transport can resolve a NodeID to an address without a separate
directory or DNS layer; Adapter.Address exposes that lookup to whatever
wires the transport together.

memberlist, not raft, is the substrate's only strong dependency. Nothing in
this package makes a consistency guarantee about membership — a node can be
alive but not yet visible to every peer, which is exactly the assumption
the exchange protocol is built to tolerate.
*/
package cluster
