package service

import "errors"

// Conflict and validation errors returned by the allocation engine. All of
// them are raised before any state is written, so a failed operation never
// leaves a partial session/spot pair behind.
var (
	ErrNoSpotAvailable         = errors.New("no free parking spot available")
	ErrSubscriberAlreadyParked = errors.New("subscriber already has an open parking session")
	ErrInvalidWindow           = errors.New("requested start must be between 24 hours and 7 days from now")
	ErrNoCapacity              = errors.New("no capacity left for the requested reservation window")
	ErrReservationNotActive    = errors.New("reservation is not active")
	ErrAlreadyFulfilled        = errors.New("reservation was already fulfilled")
	ErrReservationExpired      = errors.New("reservation has expired")
	ErrFulfillTooEarly         = errors.New("reservation cannot be fulfilled this far before its start time")
	ErrAlreadyExtended         = errors.New("parking session was already extended")
	ErrStoreUnavailable        = errors.New("storage temporarily unavailable")
)
