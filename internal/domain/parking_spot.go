package domain

import "time"

type SpotStatus string

const (
	SpotFree     SpotStatus = "free"
	SpotOccupied SpotStatus = "occupied"
)

// ParkingSpot is one physical spot in the pool. Spots are provisioned once at
// startup with sequential ids; deposit always picks the lowest-id free one.
type ParkingSpot struct {
	ID        int        `json:"id"`
	Status    SpotStatus `json:"status"`
	UpdatedAt time.Time  `json:"updated_at"`
}
