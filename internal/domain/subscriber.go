package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

// Subscriber is the read-side directory record used for lookups and for
// addressing notifications. Credential storage lives outside this service.
type Subscriber struct {
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Email     null.String `json:"email"`
	Phone     null.String `json:"phone"`
	CreatedAt time.Time   `json:"created_at"`
}
