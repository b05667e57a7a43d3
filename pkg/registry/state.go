package registry

import (
	"math/rand"
	"sort"
	"time"

	"pgregistry/pkg/types"
)

// groupState is one group's row: its member join-counters and the subset of
// those members hosted on this node. There is no separate materialised-list
// cache — reads are served from inside the single-consumer actor, so a
// cached projection would buy nothing a direct map walk doesn't already
// give for free (see Design Notes on snapshot-vs-scan).
type groupState struct {
	members map[types.Endpoint]int
	local   map[types.Endpoint]struct{}
}

func newGroupState() *groupState {
	return &groupState{
		members: make(map[types.Endpoint]int),
		local:   make(map[types.Endpoint]struct{}),
	}
}

// endpointMonitor is the EndpointMonitor relation's row for one endpoint:
// its total join-counter across every group it belongs to, and the ref
// handed back by the EndpointMonitor substrate when it was first watched.
type endpointMonitor struct {
	ref    types.MonitorRef
	direct bool
	total  int
}

// stateTable is the registry's entire in-memory data model. It is reachable
// only from the actor goroutine, so none of its methods take a lock — the
// single-consumer actor already serializes every call.
type stateTable struct {
	self types.NodeID

	groups       map[string]*groupState
	monitors     map[types.Endpoint]*endpointMonitor
	monitorIndex map[types.MonitorRef]types.Endpoint

	rnd *rand.Rand
}

func newStateTable(self types.NodeID) *stateTable {
	return &stateTable{
		self:         self,
		groups:       make(map[string]*groupState),
		monitors:     make(map[types.Endpoint]*endpointMonitor),
		monitorIndex: make(map[types.MonitorRef]types.Endpoint),
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// hasGroup reports whether name is a known group, irrespective of whether
// it currently has members.
func (t *stateTable) hasGroup(name string) bool {
	_, ok := t.groups[name]
	return ok
}

// assureGroup idempotently upserts Groups(name). It returns true when the
// group row did not already exist.
func (t *stateTable) assureGroup(name string) bool {
	if _, ok := t.groups[name]; ok {
		return false
	}
	t.groups[name] = newGroupState()
	return true
}

// joinGroup requires Groups(name) to already exist; callers enforce that
// precondition (the local API surfaces no_such_group, internal callers
// assure the group first). needsMonitorInstall is true exactly when this is
// the endpoint's first join into any group, meaning the caller must now ask
// the EndpointMonitor substrate to watch it and report the result back via
// setMonitorRef.
func (t *stateTable) joinGroup(name string, e types.Endpoint) (delta []string, needsMonitorInstall bool, ok bool) {
	g, ok := t.groups[name]
	if !ok {
		return nil, false, false
	}

	g.members[e]++
	if g.members[e] == 1 && e.Node == t.self {
		g.local[e] = struct{}{}
	}

	mon, existed := t.monitors[e]
	if !existed {
		mon = &endpointMonitor{}
		t.monitors[e] = mon
	}
	mon.total++

	return []string{name}, !existed, true
}

// hasMember reports whether e currently holds any join-counter in name,
// used by the exchange protocol's union-merge guard so a repeated exchange
// round never inflates a counter it didn't originate.
func (t *stateTable) hasMember(name string, e types.Endpoint) bool {
	g, ok := t.groups[name]
	if !ok {
		return false
	}
	_, present := g.members[e]
	return present
}

// unionJoin applies the exchange protocol's merge rule: name is created if
// missing, and e is joined only if it is not already a member — exactly
// "for each endpoint e in Members not already in this node's Members(G)".
// Repeated exchange rounds carrying the same endpoint are therefore inert
// rather than inflating its join-counter.
func (t *stateTable) unionJoin(name string, e types.Endpoint) (joined bool, needsMonitorInstall bool) {
	t.assureGroup(name)
	if t.hasMember(name, e) {
		return false, false
	}
	_, needsMonitorInstall, _ = t.joinGroup(name, e)
	return true, needsMonitorInstall
}

// setMonitorRef records the watcher installed for e after joinGroup
// reported needsMonitorInstall. It must be called before another join or
// leave touches e.
func (t *stateTable) setMonitorRef(e types.Endpoint, ref types.MonitorRef, direct bool) {
	mon, ok := t.monitors[e]
	if !ok {
		return
	}
	mon.ref = ref
	mon.direct = direct
	t.monitorIndex[ref] = e
}

// leaveGroup decrements (name, e)'s join-counter, removing the member tuple
// and LocalMembers entry once it reaches zero. It returns the delta ([name]
// if the group had the member, nil otherwise) and, when the endpoint's
// total join-counter across all groups has also reached zero, the monitor
// ref the caller must now demonitor.
func (t *stateTable) leaveGroup(name string, e types.Endpoint) (delta []string, demonitorRef types.MonitorRef, shouldDemonitor bool) {
	g, ok := t.groups[name]
	if !ok {
		return nil, "", false
	}
	cnt, present := g.members[e]
	if !present {
		return nil, "", false
	}

	cnt--
	if cnt <= 0 {
		delete(g.members, e)
		delete(g.local, e)
	} else {
		g.members[e] = cnt
	}

	mon, ok := t.monitors[e]
	if !ok {
		return []string{name}, "", false
	}
	mon.total--
	if mon.total <= 0 {
		ref := mon.ref
		delete(t.monitors, e)
		delete(t.monitorIndex, ref)
		return []string{name}, ref, true
	}
	return []string{name}, "", false
}

// deleteGroup leaves every member of name completely (driving monitor
// teardown through the same path as an explicit leave) and then removes
// the group row itself.
func (t *stateTable) deleteGroup(name string) (delta []string, demonitors []types.MonitorRef, ok bool) {
	g, ok := t.groups[name]
	if !ok {
		return nil, nil, false
	}

	type snapshot struct {
		e     types.Endpoint
		count int
	}
	members := make([]snapshot, 0, len(g.members))
	for e, cnt := range g.members {
		members = append(members, snapshot{e: e, count: cnt})
	}

	for _, m := range members {
		for i := 0; i < m.count; i++ {
			_, ref, should := t.leaveGroup(name, m.e)
			if should {
				demonitors = append(demonitors, ref)
			}
		}
	}

	delete(t.groups, name)
	return []string{name}, demonitors, true
}

// memberDied looks up the endpoint behind ref and leaves it out of every
// group it belonged to, once per unit of that group's join-counter. It
// returns the union of affected group names and, if the endpoint's total
// join-counter reached zero as a result, the ref to demonitor (normally
// this is the same ref the caller already knows died, but flush semantics
// make a redundant demonitor harmless).
func (t *stateTable) memberDied(ref types.MonitorRef) (affected []string, demonitorRef types.MonitorRef, shouldDemonitor bool, found bool) {
	e, found := t.monitorIndex[ref]
	if !found {
		return nil, "", false, false
	}

	names := make([]string, 0, len(t.groups))
	for name := range t.groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		g := t.groups[name]
		cnt, present := g.members[e]
		if !present {
			continue
		}
		var lastShould bool
		var lastRef types.MonitorRef
		for i := 0; i < cnt; i++ {
			_, r, should := t.leaveGroup(name, e)
			if should {
				lastShould, lastRef = should, r
			}
		}
		affected = append(affected, name)
		if lastShould {
			demonitorRef, shouldDemonitor = lastRef, true
		}
	}
	return affected, demonitorRef, shouldDemonitor, true
}

// getMembers returns Members(name) projected with duplicates per
// join-counter, matching get_members's contract.
func (t *stateTable) getMembers(name string) ([]types.Endpoint, bool) {
	g, ok := t.groups[name]
	if !ok {
		return nil, false
	}
	out := make([]types.Endpoint, 0, len(g.members))
	for e, cnt := range g.members {
		for i := 0; i < cnt; i++ {
			out = append(out, e)
		}
	}
	return out, true
}

// getLocalMembers returns LocalMembers(name) as a plain set projection.
func (t *stateTable) getLocalMembers(name string) ([]types.Endpoint, bool) {
	g, ok := t.groups[name]
	if !ok {
		return nil, false
	}
	out := make([]types.Endpoint, 0, len(g.local))
	for e := range g.local {
		out = append(out, e)
	}
	return out, true
}

// whichGroups returns every known group name.
func (t *stateTable) whichGroups() []string {
	out := make([]string, 0, len(t.groups))
	for name := range t.groups {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// closestPid implements get_closest_pid: a local member if exactly one
// exists, else a uniform pick from the local list if non-empty, else a
// uniform pick (duplicate-weighted, matching get_members) from the full
// list, else ErrNoProcess.
func (t *stateTable) closestPid(name string) (types.Endpoint, error) {
	g, ok := t.groups[name]
	if !ok {
		return types.Endpoint{}, ErrNoSuchGroup
	}

	if len(g.local) == 1 {
		for e := range g.local {
			return e, nil
		}
	}

	if len(g.local) > 0 {
		locals := make([]types.Endpoint, 0, len(g.local))
		for e := range g.local {
			locals = append(locals, e)
		}
		return locals[t.rnd.Intn(len(locals))], nil
	}

	full, _ := t.getMembers(name)
	if len(full) == 0 {
		return types.Endpoint{}, ErrNoProcess
	}
	return full[t.rnd.Intn(len(full))], nil
}

// snapshot produces the GroupSnapshot set this node reports to the verifier
// and to FetchState, scoped to a single group when group is non-empty.
func (t *stateTable) snapshot(group string) []types.GroupSnapshot {
	names := t.whichGroups()
	if group != "" {
		found := false
		for _, n := range names {
			if n == group {
				found = true
				break
			}
		}
		if !found {
			return nil
		}
		names = []string{group}
	}

	out := make([]types.GroupSnapshot, 0, len(names))
	for _, name := range names {
		full, _ := t.getMembers(name)
		local, _ := t.getLocalMembers(name)
		out = append(out, types.GroupSnapshot{Group: name, Full: full, Local: local})
	}
	return out
}

// exchangeSubset builds the per-peer members list the exchange protocol
// sends to peer: every group, restricted to members homed on this node or
// on peer, per §4.3's subsetting rule.
func (t *stateTable) exchangeSubset(peer types.NodeID) []types.GroupMembers {
	names := t.whichGroups()
	out := make([]types.GroupMembers, 0, len(names))
	for _, name := range names {
		g := t.groups[name]
		var members []types.Endpoint
		for e := range g.members {
			if e.Node == t.self || e.Node == peer {
				members = append(members, e)
			}
		}
		out = append(out, types.GroupMembers{Group: name, Members: members})
	}
	return out
}
