package cluster

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/memberlist"

	"pgregistry/pkg/log"
	"pgregistry/pkg/types"
)

const leaveTimeout = 5 * time.Second

// Adapter is a memberlist-backed ClusterSubstrate: it tells the registry
// actor who this node is, who is currently connected, and delivers node-up
// / node-down events as they are observed by the gossip layer. This is the
// only piece of pgregistry that talks SWIM gossip directly; everything
// above it sees only the three methods a ClusterSubstrate must provide.
type Adapter struct {
	local string
	ml    *memberlist.Memberlist
	delg  *eventDelegate
}

// New creates and joins a memberlist cluster per cfg. If cfg.Seeds is
// empty, this call bootstraps a new single-node cluster; otherwise it
// attempts to join through the given seed addresses.
func New(cfg Config) (*Adapter, error) {
	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = cfg.NodeName
	if cfg.BindAddr != "" {
		mlConfig.BindAddr = cfg.BindAddr
	}
	if cfg.BindPort != 0 {
		mlConfig.BindPort = cfg.BindPort
	}
	if cfg.AdvertiseAddr != "" {
		mlConfig.AdvertiseAddr = cfg.AdvertiseAddr
	}
	if cfg.AdvertisePort != 0 {
		mlConfig.AdvertisePort = cfg.AdvertisePort
	}

	delg := newEventDelegate(cfg.NodeName)
	mlConfig.Events = delg
	mlConfig.Delegate = &delegate{meta: cfg.encodeMeta()}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("cluster: create memberlist: %w", err)
	}

	if len(cfg.Seeds) > 0 {
		if _, err := ml.Join(cfg.Seeds); err != nil {
			return nil, fmt.Errorf("cluster: join seeds: %w", err)
		}
	}

	return &Adapter{local: cfg.NodeName, ml: ml, delg: delg}, nil
}

// LocalNode returns this node's identity.
func (a *Adapter) LocalNode() types.NodeID {
	return types.NodeID(a.local)
}

// ConnectedNodes returns every peer memberlist currently considers alive,
// excluding this node.
func (a *Adapter) ConnectedNodes() []types.NodeID {
	members := a.ml.Members()
	out := make([]types.NodeID, 0, len(members))
	for _, m := range members {
		if m.Name == a.local {
			continue
		}
		out = append(out, types.NodeID(m.Name))
	}
	return out
}

// IsConnected reports whether node is currently a live memberlist member.
func (a *Adapter) IsConnected(node types.NodeID) bool {
	for _, m := range a.ml.Members() {
		if m.Name == string(node) {
			return true
		}
	}
	return false
}

// Events returns the channel of node-up/node-down transitions.
func (a *Adapter) Events() <-chan types.ClusterEvent {
	return a.delg.events
}

// Address resolves node to its gossiped RPC dial address.
func (a *Adapter) Address(node types.NodeID) (string, bool) {
	for _, m := range a.ml.Members() {
		if m.Name != string(node) {
			continue
		}
		var meta nodeMeta
		if err := json.Unmarshal(m.Meta, &meta); err != nil {
			return "", false
		}
		return meta.RPCAddr, meta.RPCAddr != ""
	}
	return "", false
}

// Shutdown leaves the cluster gracefully and tears down the memberlist
// transport.
func (a *Adapter) Shutdown() error {
	if err := a.ml.Leave(leaveTimeout); err != nil {
		log.WithComponent("cluster").Warn().Err(err).Msg("leave failed")
	}
	return a.ml.Shutdown()
}
