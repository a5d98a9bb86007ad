package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treewatch_events_received_total",
			Help: "Inbound backend events by kind",
		},
		[]string{"kind"},
	)

	MalformedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treewatch_malformed_messages_total",
			Help: "Inbound frames discarded because they could not be decoded",
		},
	)

	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treewatch_reconnect_attempts_total",
			Help: "Websocket reconnection attempts",
		},
	)

	Connected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "treewatch_connected",
			Help: "1 while the backend websocket is open",
		},
	)

	DroppedRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treewatch_dropped_requests_total",
			Help: "Outbound requests dropped because the connection stayed closed",
		},
	)

	BuildFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treewatch_hierarchy_build_failures_total",
			Help: "Snapshots that could not be turned into a hierarchy, by failure kind",
		},
		[]string{"kind"},
	)

	DiffOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treewatch_diff_ops_total",
			Help: "Render operations produced by the diff engine",
		},
		[]string{"op"},
	)

	StaleDiffs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treewatch_stale_diffs_total",
			Help: "Diffs discarded because they belonged to an older session generation",
		},
	)

	TreeNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "treewatch_tree_nodes",
			Help: "Nodes in the currently rendered hierarchy",
		},
	)
)
