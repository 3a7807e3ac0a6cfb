// Package metrics provides Prometheus instrumentation for the realtime
// services. It exposes gauges for connection and room counts, counters for
// message and location throughput, and histograms for latency tracking.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "yakin_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// RoomsActive tracks the number of rooms with at least one local member.
	RoomsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "yakin_rooms_active",
		Help: "Current number of rooms with at least one local member",
	})

	// MessagesTotal counts relayed chat messages, labeled by kind:
	// "room", "private", or "blocked" (validation / rate-limit rejections).
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "yakin_messages_total",
		Help: "Total number of chat messages processed",
	}, []string{"kind"}) // kind = "room", "private", "blocked"

	// LocationUpdatesTotal counts accepted live location samples.
	LocationUpdatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "yakin_location_updates_total",
		Help: "Total number of accepted location updates",
	})

	// NearbyQueriesTotal counts nearby-user queries served.
	NearbyQueriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "yakin_nearby_queries_total",
		Help: "Total number of nearby-user queries",
	})

	// MessageLatency records message relay latency in seconds, from frame
	// receipt to NATS publish.
	MessageLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "yakin_message_latency_seconds",
		Help:    "Message relay latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// PresenceOnline tracks the number of locally connected users marked online.
	PresenceOnline = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "yakin_presence_online",
		Help: "Current number of locally connected online users",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		RoomsActive,
		MessagesTotal,
		LocationUpdatesTotal,
		NearbyQueriesTotal,
		MessageLatency,
		PresenceOnline,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
