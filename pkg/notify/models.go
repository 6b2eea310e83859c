package notify

import (
	"time"

	"github.com/google/uuid"
)

// Topic carries dispatch outcome events from the publisher service to the
// notifier service.
const Topic = "publication.events"

// Notification is the persisted, user-facing record of a dispatch outcome
// that needs attention.
type Notification struct {
	ID        uuid.UUID              `json:"id"`
	UserID    uuid.UUID              `json:"userId"`
	Kind      string                 `json:"kind"`
	Context   map[string]interface{} `json:"context,omitempty"`
	ReadAt    *time.Time             `json:"readAt,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}
