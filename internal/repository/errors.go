package repository

import "errors"

var (
	// ErrInsufficientUnits indicates fewer available units than requested were
	// found while flagging a reservation.
	ErrInsufficientUnits = errors.New("not enough available units")
	// ErrUnitUnavailable indicates a unit changed state before it could be bound.
	ErrUnitUnavailable = errors.New("unit is not available for binding")
	// ErrReservationState indicates the reservation left the expected state mid-operation.
	ErrReservationState = errors.New("reservation changed state")
)
