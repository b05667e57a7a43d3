package cluster

import (
	"encoding/json"
)

// Config configures a gossip-backed ClusterSubstrate adapter.
type Config struct {
	// NodeName is this node's memberlist identity, normally the same
	// string as the pgregistry NodeID.
	NodeName string

	// BindAddr/BindPort is the address memberlist listens on for gossip.
	BindAddr string
	BindPort int

	// AdvertiseAddr/AdvertisePort, if set, override BindAddr/BindPort in
	// the membership protocol (useful behind NAT).
	AdvertiseAddr string
	AdvertisePort int

	// RPCAddr is this node's peer-transport dial address (host:port of the
	// gRPC listener). It is gossiped as node metadata so peers can resolve
	// a NodeID to a dial address without a separate directory service.
	RPCAddr string

	// Seeds lists addresses of already-running nodes to join through.
	// An empty Seeds list bootstraps a new, single-node cluster.
	Seeds []string
}

type nodeMeta struct {
	RPCAddr string `json:"rpc_addr"`
}

func (c Config) encodeMeta() []byte {
	b, _ := json.Marshal(nodeMeta{RPCAddr: c.RPCAddr})
	return b
}
