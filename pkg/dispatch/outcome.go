package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// Outcome kinds, one per branch of the error taxonomy.
const (
	OutcomePublished        = "published"
	OutcomeValidationFailed = "validation_failed"
	OutcomeTimeout          = "timeout"
	OutcomeGatewayFailed    = "gateway_failed"
	OutcomeAborted          = "aborted"
)

// Outcome is the in-memory result of attempting one post. It is never
// persisted as its own row; the terminal pieces land on the post record.
type Outcome struct {
	PostID      uuid.UUID  `json:"postId"`
	ChannelID   uuid.UUID  `json:"channelId"`
	Kind        string     `json:"kind"`
	Success     bool       `json:"success"`
	ExternalURL string     `json:"externalUrl,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Result is what one dispatch invocation hands back to its trigger.
type Result struct {
	Started     bool      `json:"started"`
	FinalStatus string    `json:"finalStatus,omitempty"`
	Outcomes    []Outcome `json:"outcomes,omitempty"`
}
