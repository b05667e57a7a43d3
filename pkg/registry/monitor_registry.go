package registry

import "pgregistry/pkg/metrics"

// This file is the thin seam between the state table's pure monitor
// bookkeeping (setMonitorRef, the monitors/monitorIndex maps in state.go)
// and the EndpointMonitor substrate's actual I/O (pkg/monitor.Prober). The
// substrate call itself lives next to each call site that discovers a
// need-monitor-install or should-demonitor signal (applyCommand, exchange's
// HandleExchange, drainAndTeardown) so the decision and the act stay next
// to the state-table transition that produced it; this file only holds the
// metric this refcounting layer is responsible for keeping current.
//
// A helper watch installed for an endpoint whose home node was not yet
// connected is never upgraded to a direct watch once that node connects:
// both run the same TCP probe loop regardless (pkg/monitor.Prober), so a
// helper staying a helper only forgoes the faster NodeDown shortcut a
// direct watch also gets, never correctness. Upgrading it would save
// nothing but a map entry, so it is left as a known, intentional
// inefficiency rather than built.
func (s *Service) refreshMonitorMetric() {
	metrics.MonitoredEndpointsTotal.Set(float64(len(s.table.monitors)))
}
