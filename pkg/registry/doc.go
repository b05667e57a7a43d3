/*
Package registry is the core of pgregistry: a cluster-wide directory
mapping a group name to the set of live worker endpoints that have joined
it. One Service runs per node, owns a private state table, and reacts to
local API calls, peer RPCs, cluster membership events, and endpoint death
notifications, all serialized through a single mailbox (actor.go).

Mutations (Create/Delete/Join/Leave) go through the Mutation Coordinator
(coordinator.go): a cluster-wide named lock keyed by group name, then a
synchronous fan-out to every connected node with a bounded timeout. Reads
(Members/LocalMembers/WhichGroups/ClosestPid) are served straight from the
actor's state table with no coordination.

Eventual consistency across nodes comes from the exchange protocol
(exchange.go): a pairwise union-merge triggered on node-up, on an explicit
hello, or on a resync signal. It never removes a member on the basis of
absence — removal is driven only by endpoint death, observed independently
by each node's own monitor on that endpoint (pkg/monitor, wrapped here by
the EndpointMonitor interface in substrate.go).

VerifyClusterState (verifier.go) is a read-only, cluster-wide scrape that
reports per-group, per-node divergence from the authoritative-by-home-node
view; it never mutates state and is meant for operator diagnosis.

The package depends only on the narrow interfaces declared in
substrate.go, never on memberlist, grpc, or any concrete adapter type —
those live in pkg/cluster, pkg/transport, and pkg/monitor.
*/
package registry
