package registry

import "pgregistry/pkg/types"

func ep(f endpointFixture) types.Endpoint {
	return types.Endpoint{ID: f.id, Node: types.NodeID(f.node), Addr: f.node + ":0"}
}

func monitorRefOf(s string) types.MonitorRef {
	return types.MonitorRef(s)
}
