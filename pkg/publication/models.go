package publication

import (
	"time"

	"github.com/google/uuid"
)

// Publication statuses. PROCESSING doubles as the dispatch lock marker and is
// only ever held for the duration of one dispatch attempt.
const (
	StatusDraft      = "DRAFT"
	StatusReady      = "READY"
	StatusScheduled  = "SCHEDULED"
	StatusProcessing = "PROCESSING"
	StatusPublished  = "PUBLISHED"
	StatusFailed     = "FAILED"
	StatusPartial    = "PARTIAL"
	StatusArchived   = "ARCHIVED"
)

// Post statuses, per (publication, channel) pair.
const (
	PostStatusPending    = "PENDING"
	PostStatusProcessing = "PROCESSING"
	PostStatusPublished  = "PUBLISHED"
	PostStatusFailed     = "FAILED"
)

type MediaRef struct {
	ID   uuid.UUID `json:"id"`
	Kind string    `json:"kind"` // image, video, document
	URL  string    `json:"url"`
}

// PostOverrides carries per-channel deviations from the publication body.
type PostOverrides struct {
	Tags        []string   `json:"tags,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

type Publication struct {
	ID                  uuid.UUID  `json:"id"`
	ProjectID           *uuid.UUID `json:"projectId,omitempty"`
	AuthorID            uuid.UUID  `json:"authorId"`
	Content             string     `json:"content"`
	Media               []MediaRef `json:"media,omitempty"`
	Status              string     `json:"status"`
	ScheduledAt         *time.Time `json:"scheduledAt,omitempty"`
	ProcessingStartedAt *time.Time `json:"processingStartedAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

type Post struct {
	ID            uuid.UUID     `json:"id"`
	PublicationID uuid.UUID     `json:"publicationId"`
	ChannelID     uuid.UUID     `json:"channelId"`
	Status        string        `json:"status"`
	PublishedAt   *time.Time    `json:"publishedAt,omitempty"`
	ExternalURL   string        `json:"externalUrl,omitempty"`
	Error         string        `json:"error,omitempty"`
	Overrides     PostOverrides `json:"overrides"`
	CreatedAt     time.Time     `json:"createdAt"`
}

type CreatePublicationRequest struct {
	ProjectID   *uuid.UUID  `json:"projectId,omitempty"`
	AuthorID    uuid.UUID   `json:"authorId"`
	Content     string      `json:"content"`
	Media       []MediaRef  `json:"media,omitempty"`
	ScheduledAt *time.Time  `json:"scheduledAt,omitempty"`
	Posts       []PostInput `json:"posts"`
}

type PostInput struct {
	ChannelID uuid.UUID     `json:"channelId"`
	Overrides PostOverrides `json:"overrides"`
}
