package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chat",
		Name:      "connections_active",
		Help:      "Currently connected clients.",
	})

	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chat",
		Name:      "rooms_active",
		Help:      "Rooms currently registered.",
	})

	Broadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "broadcasts_total",
		Help:      "Lines fanned out to a room.",
	})

	Evictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "member_evictions_total",
		Help:      "Members dropped from a room after a failed send.",
	})

	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "commands_total",
		Help:      "Session commands by verb and outcome.",
	}, []string{"command", "outcome"})

	Relayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "relay_messages_total",
		Help:      "Lines published to or received from the cross-instance relay.",
	}, []string{"direction"})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
