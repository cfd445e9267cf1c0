package api

import (
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	splathttp "github.com/aukilabs/splatgrid/http"
	"github.com/aukilabs/splatgrid/models"
)

type errorStatus struct {
	code    int
	message string
}

var errorStatuses = map[string]errorStatus{
	models.ErrTypeMissingFields:      {http.StatusBadRequest, "missing fields"},
	models.ErrTypeInvalidRequest:     {http.StatusBadRequest, "invalid request"},
	models.ErrTypeCellNotAvailable:   {http.StatusConflict, "cell not available"},
	models.ErrTypeCellOccupied:       {http.StatusConflict, "cell already claimed"},
	models.ErrTypeReservationExpired: {http.StatusConflict, "reservation expired"},
	models.ErrTypeNotYourReservation: {http.StatusForbidden, "not your reserved cell"},
	models.ErrTypeNotOwner:           {http.StatusForbidden, "not the claim owner"},
	models.ErrTypeCellNotFound:       {http.StatusNotFound, "cell not found"},
	models.ErrTypeClaimNotFound:      {http.StatusNotFound, "claim not found"},
	models.ErrTypeMapNotFound:        {http.StatusNotFound, "map not found"},
	models.ErrTypeUnauthorized:       {http.StatusUnauthorized, "unauthorized"},
	models.ErrTypeRateLimited:        {http.StatusTooManyRequests, "too many requests"},
}

// StatusOf returns the HTTP status code of the given error.
func StatusOf(err error) int {
	if s, ok := errorStatuses[errors.Type(err)]; ok {
		return s.code
	}
	return http.StatusInternalServerError
}

// writeError responds with the status and the public message of the given
// error. Errors without a known type are logged and hidden behind a generic
// message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	s, ok := errorStatuses[errors.Type(err)]
	if !ok {
		logs.WithTag("method", r.Method).
			WithTag("path", r.URL.Path).
			Error(err)
		splathttp.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	splathttp.JSON(w, s.code, splathttp.ErrorResponse{
		Error: s.message,
		Type:  errors.Type(err),
	})
}
