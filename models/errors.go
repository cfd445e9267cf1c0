package models

// Error types attached to domain errors with errors.WithType. They are mapped
// to HTTP statuses by the api package.
const (
	ErrTypeMissingFields  = "missing_fields"
	ErrTypeInvalidRequest = "invalid_request"

	ErrTypeCellNotAvailable   = "cell_not_available"
	ErrTypeCellOccupied       = "cell_occupied"
	ErrTypeReservationExpired = "reservation_expired"

	ErrTypeNotYourReservation = "not_your_reservation"
	ErrTypeNotOwner           = "not_owner"

	ErrTypeCellNotFound  = "cell_not_found"
	ErrTypeClaimNotFound = "claim_not_found"
	ErrTypeMapNotFound   = "map_not_found"

	ErrTypeUnauthorized = "unauthorized"
	ErrTypeRateLimited  = "rate_limited"
)
