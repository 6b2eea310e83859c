package channel

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a configured delivery target. The dispatch engine only ever
// reads channels; mutations come from the management API.
type Channel struct {
	ID          uuid.UUID  `json:"id"`
	ProjectID   *uuid.UUID `json:"projectId,omitempty"`
	Kind        string     `json:"kind"` // catalog key: telegram, vkontakte, ...
	Identifier  string     `json:"identifier"`
	Credentials string     `json:"-"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type CreateChannelRequest struct {
	ProjectID   *uuid.UUID `json:"projectId,omitempty"`
	Kind        string     `json:"kind"`
	Identifier  string     `json:"identifier"`
	Credentials string     `json:"credentials"`
}

// TestResult is the outcome of the standalone channel test operation.
type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
