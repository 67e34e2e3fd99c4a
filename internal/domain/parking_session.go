package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

// ParkingSession is one vehicle occupying a spot from deposit to retrieval.
// A subscriber has at most one open session at a time, and a spot is
// referenced by at most one open session at a time.
type ParkingSession struct {
	ID             int           `json:"id"`
	SubscriberCode string        `json:"subscriber_code"`
	SpotID         int           `json:"spot_id"`
	ParkingCode    string        `json:"parking_code"`
	EntryTime      time.Time     `json:"entry_time"`
	ExpectedExit   time.Time     `json:"expected_exit_time"`
	ExitTime       null.Time     `json:"exit_time"`
	Extended       bool          `json:"extended"`
	Late           bool          `json:"late"`
	Status         SessionStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
