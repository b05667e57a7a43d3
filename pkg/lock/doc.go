/*
Package lock synthesizes the cluster-wide named lock that the Mutation
Coordinator needs to serialize writes to a given group, without running a
consensus protocol.

Every node computes the same coordinator for a group by stable-hashing the
group name against the current connected-node set (coordinator.go). Locker
is the requester side: it asks whichever node that hash names — possibly
itself — to grant the lock, retrying indefinitely on contention or a
bad coordinator rather than surfacing a caller-visible failure. Granter is
the other end of that conversation: the per-node bookkeeping that decides
whether a requested group is free.

This is fairness, not correctness: a transient membership disagreement can
momentarily produce two coordinators for the same group, and a mutation
applied without the lock is still eventually reconciled by the exchange
protocol. The lock exists to keep concurrent writers of the same group
from racing each other, not to make mutation atomic.
*/
package lock
