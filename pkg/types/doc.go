/*
Package types defines the value types shared by every pgregistry package:
the domain model (NodeID, Endpoint) and the wire messages exchanged between
nodes (Command, ExchangePayload, snapshots used by the verifier).

Nothing in this package depends on any other pgregistry package, and nothing
in it talks to the network or the filesystem — it exists so that
pkg/registry, pkg/cluster, pkg/transport, pkg/monitor and pkg/lock can all
describe the same concepts without importing each other.

# Endpoint identity

An Endpoint is the unit the registry tracks: an ID, a home NodeID, and a
dial address. Endpoint is deliberately a small comparable struct so it can
be used as a map key without a derived string key.

# Wire messages

Command is the payload a Mutation Coordinator fans out to every connected
node. ExchangePayload, HelloMsg and ResyncMsg are the three message shapes
of the gossip exchange protocol. GroupSnapshot and NodeSnapshot are used
only by the cluster-state verifier, which needs the full membership
(including join-counter duplicates) as well as the node-local subset.
*/
package types
