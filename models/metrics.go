package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	mapIDLabel = "map_id"
)

var (
	leaseSweepCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lease_sweep_count_total",
		Help: "The total number of lapsed reservations returned to empty.",
	}, []string{mapIDLabel})
)

func instrumentSweep(mapID string) {
	leaseSweepCount.
		With(prometheus.Labels{mapIDLabel: mapID}).
		Inc()
}
