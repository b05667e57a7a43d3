package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// GroupsTotal is the number of groups known to this node.
	GroupsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pgregistry_groups_total",
			Help: "Total number of groups known to this node",
		},
	)

	MembersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pgregistry_members_total",
			Help: "Total number of (group, endpoint) memberships by group",
		},
		[]string{"group"},
	)

	LocalMembersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pgregistry_local_members_total",
			Help: "Total number of endpoints homed on this node across all groups",
		},
	)

	ConnectedNodesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pgregistry_connected_nodes_total",
			Help: "Total number of cluster peers currently connected",
		},
	)

	MonitoredEndpointsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pgregistry_monitored_endpoints_total",
			Help: "Total number of endpoints with an active liveness monitor",
		},
	)

	ObserversTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pgregistry_observers_total",
			Help: "Total number of local subscribers watching for membership updates",
		},
	)

	MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgregistry_mutations_total",
			Help: "Total number of group mutations applied by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	MutationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pgregistry_mutation_duration_seconds",
			Help:    "Time to fan a mutation out to every connected node, in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	ExchangeRoundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgregistry_exchange_rounds_total",
			Help: "Total number of exchange rounds sent, by trigger",
		},
		[]string{"trigger"},
	)

	MemberDeathsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pgregistry_member_deaths_total",
			Help: "Total number of endpoint death notifications processed",
		},
	)

	LockRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgregistry_lock_retries_total",
			Help: "Total number of cluster-wide lock acquisition retries, by group",
		},
		[]string{"group"},
	)

	VerifyDiffCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pgregistry_verify_diff_count",
			Help: "Number of divergent (group, node) entries found by the last verification pass",
		},
	)

	RPCDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pgregistry_rpc_duration_seconds",
			Help:    "Peer RPC duration in seconds by method and code",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "code"},
	)
)

func init() {
	prometheus.MustRegister(
		GroupsTotal,
		MembersTotal,
		LocalMembersTotal,
		ConnectedNodesTotal,
		MonitoredEndpointsTotal,
		ObserversTotal,
		MutationsTotal,
		MutationDuration,
		ExchangeRoundsTotal,
		MemberDeathsTotal,
		LockRetriesTotal,
		VerifyDiffCount,
		RPCDuration,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
