package claims

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
)

var (
	claimCreateCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "claim_create_count_total",
		Help: "The total number of claims created.",
	})

	claimCreateErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claim_create_errors",
		Help: "The errors that occured while creating a claim.",
	}, []string{errTypeLabel})

	claimDeleteCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "claim_delete_count_total",
		Help: "The total number of claims deleted.",
	})

	claimDeleteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claim_delete_errors",
		Help: "The errors that occured while deleting a claim.",
	}, []string{errTypeLabel})
)

func instrumentCreate(err error) {
	if err == nil {
		claimCreateCount.Inc()
		return
	}

	claimCreateErrors.
		With(prometheus.Labels{errTypeLabel: errors.Type(err)}).
		Inc()
}

func instrumentDelete(err error) {
	if err == nil {
		claimDeleteCount.Inc()
		return
	}

	claimDeleteErrors.
		With(prometheus.Labels{errTypeLabel: errors.Type(err)}).
		Inc()
}
