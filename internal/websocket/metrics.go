package websocket

import (
	"github.com/prometheus/client_golang/prometheus"

	"codesync-backend/internal/dto"
)

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "codesync_ws_connections",
			Help: "Current number of open websocket connections.",
		},
	)
	wsRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "codesync_ws_rooms",
			Help: "Current number of rooms with at least one member.",
		},
	)
	wsMessagesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codesync_ws_messages_delivered_total",
			Help: "Total websocket frames queued for delivery to connections.",
		},
	)
	wsMessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codesync_ws_messages_dropped_total",
			Help: "Total websocket frames dropped before delivery.",
		},
		[]string{"reason"},
	)
	wsEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codesync_ws_events_total",
			Help: "Inbound realtime events by name.",
		},
		[]string{"event"},
	)
)

// Collectors returns the socket metrics so a server can register them with
// its own registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{wsConnections, wsRooms, wsMessagesDelivered, wsMessagesDropped, wsEvents}
}

func incConnections() {
	wsConnections.Inc()
}

func decConnections() {
	wsConnections.Dec()
}

func setRooms(count int) {
	wsRooms.Set(float64(count))
}

func addDelivered(count int) {
	wsMessagesDelivered.Add(float64(count))
}

func addDropped(reason string) {
	wsMessagesDropped.WithLabelValues(reason).Inc()
}

// eventLabel keeps the label set bounded; clients choose event names.
func eventLabel(event string) string {
	switch event {
	case dto.EventJoin, dto.EventCodeChange, dto.EventSyncCode:
		return event
	default:
		return "unknown"
	}
}

func countEvent(event string) {
	wsEvents.WithLabelValues(eventLabel(event)).Inc()
}
