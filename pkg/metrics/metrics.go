package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gauges and counters for the signaling core. Registered on the default
// registry; Handler serves them at /metrics.
var (
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signaling_connections_active",
		Help: "Currently open websocket connections.",
	})
	RoomsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signaling_rooms_active",
		Help: "Rooms with at least one participant.",
	})
	ParticipantsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signaling_participants_active",
		Help: "Participants across all rooms.",
	})
	SignalsRelayed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signaling_envelopes_relayed_total",
		Help: "Negotiation envelopes relayed, direct and broadcast paths combined.",
	})
	ChatMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signaling_chat_messages_total",
		Help: "Chat messages broadcast to rooms.",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsActive,
		RoomsActive,
		ParticipantsActive,
		SignalsRelayed,
		ChatMessages,
	)
}

// Handler exposes Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
