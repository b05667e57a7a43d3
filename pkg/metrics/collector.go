package metrics

import (
	"time"

	"pgregistry/pkg/types"
)

// Source is the read-only slice of a registry.Service that the collector
// needs. It is declared here, not imported from pkg/registry, so metrics
// never depends on registry; *registry.Service satisfies it structurally.
type Source interface {
	WhichGroups() ([]string, error)
	Members(name string) ([]types.Endpoint, error)
	LocalMembers(name string) ([]types.Endpoint, error)
	ConnectedNodeCount() int
	MonitoredEndpointCount() int
	ObserverCount() int
}

// Collector periodically samples a Source and republishes its counters as
// gauges, the same ticker-driven shape as the polling collectors elsewhere
// in this codebase's lineage.
type Collector struct {
	source Source
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over source.
func NewCollector(source Source) *Collector {
	return &Collector{
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every interval until Stop is called.
func (c *Collector) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	groups, err := c.source.WhichGroups()
	if err != nil {
		return
	}
	GroupsTotal.Set(float64(len(groups)))

	var local int
	for _, g := range groups {
		if members, err := c.source.Members(g); err == nil {
			MembersTotal.WithLabelValues(g).Set(float64(len(members)))
		}
		if lm, err := c.source.LocalMembers(g); err == nil {
			local += len(lm)
		}
	}
	LocalMembersTotal.Set(float64(local))

	ConnectedNodesTotal.Set(float64(c.source.ConnectedNodeCount()))
	MonitoredEndpointsTotal.Set(float64(c.source.MonitoredEndpointCount()))
	ObserversTotal.Set(float64(c.source.ObserverCount()))
}
