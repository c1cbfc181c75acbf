package presence

import "github.com/prometheus/client_golang/prometheus"

var presenceEntries = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "clienthub_presence_entries",
		Help: "Current number of live presence entries across all rooms.",
	},
)

func init() {
	prometheus.MustRegister(presenceEntries)
}

func setEntryCount(count int) {
	presenceEntries.Set(float64(count))
}
