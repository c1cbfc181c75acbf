package notify

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clienthub_notify_events_published_total",
			Help: "Total fan-out events accepted for delivery.",
		},
		[]string{"type"},
	)
	eventsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clienthub_notify_events_delivered_total",
			Help: "Total fan-out events fully processed by subscribers.",
		},
		[]string{"type"},
	)
	eventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clienthub_notify_events_dropped_total",
			Help: "Fan-out events dropped or failed in a subscriber.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(eventsPublished, eventsDelivered, eventsDropped)
}

func incPublished(t EventType) {
	eventsPublished.WithLabelValues(string(t)).Inc()
}

func incDelivered(t EventType) {
	eventsDelivered.WithLabelValues(string(t)).Inc()
}

func incDropped(t EventType) {
	eventsDropped.WithLabelValues(string(t)).Inc()
}
