package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationExpired   ReservationStatus = "expired"
	ReservationFulfilled ReservationStatus = "fulfilled"
)

// Reservation is a future commitment to occupy some spot. SpotID stays null
// until fulfillment binds a concrete free spot. EndTime is fixed at creation
// (start plus the reservation span) so overlap checks stay a plain range query.
type Reservation struct {
	ID               int               `json:"id"`
	SubscriberCode   string            `json:"subscriber_code"`
	ConfirmationCode string            `json:"confirmation_code"`
	StartTime        time.Time         `json:"start_time"`
	EndTime          time.Time         `json:"end_time"`
	SpotID           null.Int          `json:"spot_id"`
	Status           ReservationStatus `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}
