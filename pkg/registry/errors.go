package registry

import "errors"

// ErrNoSuchGroup is returned by Join, Leave, Members, LocalMembers and
// ClosestPid when the named group does not exist; Create and Delete never
// return it. It is the only failure checked before a mutation is fanned
// out to the cluster.
var ErrNoSuchGroup = errors.New("registry: no such group")

// ErrNoProcess is returned by ClosestPid when a group exists but has no
// members to select from.
var ErrNoProcess = errors.New("registry: no process")

// ErrClosed is returned once the Service has been shut down by the methods
// that report errors from the actor: Members, LocalMembers, WhichGroups,
// ClosestPid, Sync, GlobalResync, LocalMonitor, VerifyClusterState and the
// peer handlers. Create, Delete, Join and Leave do not return it (Join and
// Leave then report ErrNoSuchGroup), and the count methods return 0.
var ErrClosed = errors.New("registry: service closed")
