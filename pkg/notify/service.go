package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/postwave/platform/pkg/common/kafka"
	"github.com/postwave/platform/pkg/common/logger"
	"github.com/postwave/platform/pkg/common/models"
	"github.com/postwave/platform/pkg/dispatch"
)

// Emitter is the dispatch engine's side of the notifier: it puts the outcome
// on the wire and leaves persistence to the notifier service.
type Emitter struct {
	producer *kafka.Producer
	source   string
}

func NewEmitter(producer *kafka.Producer, source string) *Emitter {
	return &Emitter{producer: producer, source: source}
}

func (e *Emitter) Notify(ctx context.Context, userID uuid.UUID, kind string, context map[string]interface{}) error {
	data := map[string]interface{}{
		"user_id": userID.String(),
		"kind":    kind,
	}
	for key, value := range context {
		data[key] = value
	}
	return e.producer.PublishEvent(ctx, eventTypeFor(kind), e.source, data)
}

func eventTypeFor(kind string) string {
	switch kind {
	case dispatch.NotifyPublicationFailed:
		return models.EventPublicationFailed
	case dispatch.NotifyPublicationPartial:
		return models.EventPublicationPartial
	default:
		return models.EventPublicationPublished
	}
}

// Service is the notifier service's consumer side: it turns outcome events
// into persisted notifications.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// HandleEvent is wired as the kafka consumer handler. Returning an error
// leaves the message uncommitted so it is retried.
func (s *Service) HandleEvent(ctx context.Context, event models.Event) error {
	rawUserID, ok := event.Data["user_id"].(string)
	if !ok {
		logger.Log.WithField("event_id", event.ID).Warn("outcome event missing user_id, dropping")
		return nil
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		logger.Log.WithError(err).WithField("event_id", event.ID).Warn("outcome event with bad user_id, dropping")
		return nil
	}

	kind, _ := event.Data["kind"].(string)
	if kind == "" {
		kind = event.Type
	}

	context := make(map[string]interface{}, len(event.Data))
	for key, value := range event.Data {
		if key == "user_id" || key == "kind" {
			continue
		}
		context[key] = value
	}

	notification, err := s.repo.Create(ctx, userID, kind, context)
	if err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"notification_id": notification.ID,
		"user_id":         userID,
		"kind":            kind,
	}).Info("notification recorded")
	return nil
}
