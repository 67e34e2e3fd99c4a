package domain

import "time"

// ParkingHistory is the immutable record of a closed session. Written exactly
// once when a session closes and never updated afterwards.
type ParkingHistory struct {
	ID             int       `json:"id"`
	SubscriberCode string    `json:"subscriber_code"`
	SpotID         int       `json:"spot_id"`
	EntryTime      time.Time `json:"entry_time"`
	ExitTime       time.Time `json:"exit_time"`
	Extended       bool      `json:"extended"`
	Late           bool      `json:"late"`
	CreatedAt      time.Time `json:"created_at"`
}
