package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/postwave/platform/pkg/common/logger"
	"github.com/postwave/platform/pkg/publication"
)

var ErrNotDispatchable = errors.New("publication is not in a dispatchable state")

// SchedulerStore lists publications whose scheduled time has passed;
// *publication.Repository satisfies it.
type SchedulerStore interface {
	DueScheduled(ctx context.Context, now time.Time, limit int) ([]publication.Publication, error)
}

// Service fronts the engine with the trigger-time state gate and the
// scheduler loop.
type Service struct {
	engine *Engine
	pubs   PublicationStore
	due    SchedulerStore
}

func NewService(engine *Engine, pubs PublicationStore, due SchedulerStore) *Service {
	return &Service{engine: engine, pubs: pubs, due: due}
}

// Trigger starts a dispatch attempt. Besides fresh READY/SCHEDULED
// publications, FAILED and PARTIAL ones may be re-triggered; drafts, archived
// and already-published ones may not. A publication currently PROCESSING is
// passed through so the lock can answer authoritatively.
func (s *Service) Trigger(ctx context.Context, id uuid.UUID) (Result, error) {
	pub, err := s.pubs.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}

	switch pub.Status {
	case publication.StatusReady, publication.StatusScheduled,
		publication.StatusFailed, publication.StatusPartial,
		publication.StatusProcessing:
	default:
		return Result{}, fmt.Errorf("status %s: %w", pub.Status, ErrNotDispatchable)
	}

	return s.engine.Dispatch(ctx, id)
}

// RunScheduler polls for due SCHEDULED publications and pushes them through
// the same lock-guarded dispatch path. It returns when ctx is cancelled.
func (s *Service) RunScheduler(ctx context.Context, pollInterval time.Duration) {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := s.due.DueScheduled(ctx, time.Now().UTC(), 20)
			if err != nil {
				logger.Log.WithError(err).Error("scheduler failed to list due publications")
				continue
			}
			for _, pub := range due {
				if _, err := s.engine.Dispatch(ctx, pub.ID); err != nil {
					logger.Log.WithError(err).WithField("publication_id", pub.ID).Error("scheduled dispatch failed")
				}
			}
		}
	}
}
