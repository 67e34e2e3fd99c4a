package domain

import "time"

type EventKind string

const (
	EventVehicleDeposited     EventKind = "vehicle_deposited"
	EventVehicleRetrieved     EventKind = "vehicle_retrieved"
	EventSessionExtended      EventKind = "session_extended"
	EventLateSession          EventKind = "late_session"
	EventReservationConfirmed EventKind = "reservation_confirmed"
	EventReservationFulfilled EventKind = "reservation_fulfilled"
	EventReservationCancelled EventKind = "reservation_cancelled"
	EventReservationExpired   EventKind = "reservation_expired"
)

// Notification is handed to the configured sinks (log, email, websocket)
// after an engine operation or sweep commits. Delivery is best effort and
// never blocks or rolls back the operation that produced it.
type Notification struct {
	SubscriberCode string                 `json:"subscriber_code"`
	Kind           EventKind              `json:"kind"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	OccurredAt     time.Time              `json:"occurred_at"`
}
