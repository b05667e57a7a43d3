// Package monitor implements the endpoint liveness substrate the registry
// uses to learn when a monitored process or observer has died. Every watch
// polls the endpoint's own address with a TCP liveness check, since a live
// host node says nothing about whether the individual process at that
// endpoint is still up. "Direct" watches (home node already part of the
// gossip group) additionally die the instant the cluster substrate reports
// that node down, without waiting on the probe; "helper" watches (home node
// not yet connected) have no such signal to ride and rely on the probe
// alone.
package monitor
