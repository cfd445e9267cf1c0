package lease

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	mapIDLabel  = "map_id"
	resultLabel = "result"
)

var (
	reservationCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lease_reservation_count_total",
		Help: "The total number of cell reservation attempts.",
	}, []string{mapIDLabel, resultLabel})

	attachCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lease_attach_count_total",
		Help: "The total number of attempts to fill a reserved cell.",
	}, []string{mapIDLabel, resultLabel})
)

func instrumentReservation(mapID string, err error) {
	reservationCount.
		With(prometheus.Labels{
			mapIDLabel:  mapID,
			resultLabel: result(err),
		}).
		Inc()
}

func instrumentAttach(mapID string, err error) {
	attachCount.
		With(prometheus.Labels{
			mapIDLabel:  mapID,
			resultLabel: result(err),
		}).
		Inc()
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	if t := errors.Type(err); t != "" {
		return t
	}
	return "error"
}
