package models

import "time"

// Event is the envelope for every message crossing a platform Kafka topic.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // publication.published, publication.partial, publication.failed, channel.tested
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Event types emitted by the dispatch engine and consumed by the notifier.
const (
	EventPublicationPublished = "publication.published"
	EventPublicationPartial   = "publication.partial"
	EventPublicationFailed    = "publication.failed"
)
