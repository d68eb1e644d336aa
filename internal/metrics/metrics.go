// Package metrics exposes the sync core's Prometheus instrumentation.
//
// The core only increments/sets these; mounting promhttp.Handler() behind a
// listener is left to the embedding application's HTTP admin API.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set bundles the gauges and counters SyncHandler updates as it runs.
// A fresh Set is safe to register against any prometheus.Registerer,
// including prometheus.NewRegistry() in tests, so concurrent test runs
// never collide on the global default registry.
type Set struct {
	PeerCount          prometheus.Gauge
	IsController       prometheus.Gauge
	HeartbeatsSent     prometheus.Counter
	HeartbeatsReceived prometheus.Counter
	GossipRelayed      prometheus.Counter
	GossipDropped      prometheus.Counter
	AssignmentsMade    prometheus.Counter
	ExpiresBroadcast   prometheus.Counter
	ExpiresReceived    prometheus.Counter
	PeersMarkedDead    prometheus.Counter
}

// NewSet creates a metric Set and registers it against reg.
func NewSet(reg prometheus.Registerer) *Set {
	s := &Set{
		PeerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "synchandler",
			Name:      "peer_count",
			Help:      "Number of peers currently known in the Peer Table.",
		}),
		IsController: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "synchandler",
			Name:      "is_controller",
			Help:      "1 if this node currently believes it is the controller, else 0.",
		}),
		HeartbeatsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "synchandler",
			Name:      "heartbeats_sent_total",
			Help:      "Heartbeat messages broadcast by this node.",
		}),
		HeartbeatsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "synchandler",
			Name:      "heartbeats_received_total",
			Help:      "Heartbeat messages received from peers.",
		}),
		GossipRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "synchandler",
			Name:      "gossip_relayed_total",
			Help:      "Messages forwarded to other connections by the Gossip Relay.",
		}),
		GossipDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "synchandler",
			Name:      "gossip_dropped_total",
			Help:      "Messages dropped as duplicates (id <= lastMessageId[source]).",
		}),
		AssignmentsMade: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "synchandler",
			Name:      "assignments_made_total",
			Help:      "assignModule messages broadcast by this node as controller.",
		}),
		ExpiresBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "synchandler",
			Name:      "expire_cache_broadcast_total",
			Help:      "expireConfigCache messages broadcast via BroadcastExpire.",
		}),
		ExpiresReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "synchandler",
			Name:      "expire_cache_received_total",
			Help:      "expireConfigCache messages handed to the local cache sink.",
		}),
		PeersMarkedDead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "synchandler",
			Name:      "peers_marked_dead_total",
			Help:      "Peers transitioned to knownDead by liveness check or lostPeer.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			s.PeerCount,
			s.IsController,
			s.HeartbeatsSent,
			s.HeartbeatsReceived,
			s.GossipRelayed,
			s.GossipDropped,
			s.AssignmentsMade,
			s.ExpiresBroadcast,
			s.ExpiresReceived,
			s.PeersMarkedDead,
		)
	}
	return s
}

// NewUnregistered returns a Set with no prometheus.Registerer attached, for
// tests and callers that don't need collection.
func NewUnregistered() *Set {
	return NewSet(nil)
}
