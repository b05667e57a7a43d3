/*
Package metrics defines and registers the Prometheus instrumentation for a
pgregistry node: group and membership gauges, mutation and exchange
counters, lock contention, and peer RPC latency. Handler exposes them via
the standard promhttp handler for a /metrics scrape target.

Collector polls a Source — satisfied structurally by *registry.Service,
without metrics importing pkg/registry — on a fixed interval and republishes
its counts as gauges, the same pattern the rest of this codebase uses for
turning point-in-time state into scraped metrics.
*/
package metrics
