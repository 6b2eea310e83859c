package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/postwave/platform/pkg/common/logger"
	"github.com/postwave/platform/pkg/observability/metrics"
	"github.com/postwave/platform/pkg/poster"
)

// Previewer is the non-mutating gateway verb used by the channel test
// operation.
type Previewer interface {
	Preview(ctx context.Context, req poster.PreviewRequest) error
}

// Store is the persistence surface the service needs; *Repository satisfies it.
type Store interface {
	Create(ctx context.Context, req CreateChannelRequest) (Channel, error)
	Get(ctx context.Context, id uuid.UUID) (Channel, error)
	List(ctx context.Context, projectID *uuid.UUID, limit int) ([]Channel, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type Service struct {
	repo      Store
	validator *Validator
	previewer Previewer
	cache     *TestCache
}

func NewService(repo Store, validator *Validator, previewer Previewer, cache *TestCache) *Service {
	return &Service{repo: repo, validator: validator, previewer: previewer, cache: cache}
}

func (s *Service) Create(ctx context.Context, req CreateChannelRequest) (Channel, error) {
	if err := s.validator.Validate(Channel{
		Kind:        req.Kind,
		Identifier:  req.Identifier,
		Credentials: req.Credentials,
		IsActive:    true,
	}); err != nil {
		return Channel{}, err
	}
	return s.repo.Create(ctx, req)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Channel, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, projectID *uuid.UUID, limit int) ([]Channel, error) {
	return s.repo.List(ctx, projectID, limit)
}

func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.repo.SetActive(ctx, id, active)
}

// Test runs the standalone channel check: local validation first, then the
// gateway preview verb. It never mutates persisted state, so two identical
// calls in a row return the same answer.
func (s *Service) Test(ctx context.Context, id uuid.UUID) (TestResult, error) {
	metrics.ObserveChannelTest()

	ch, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return TestResult{}, ValidationError{reason: fmt.Errorf("channel %s: %w", id, ErrNotFound)}
	}
	if err != nil {
		return TestResult{}, err
	}

	if err := s.validator.Validate(ch); err != nil {
		return TestResult{Success: false, Message: err.Error()}, nil
	}

	if s.cache.Hit(ctx, ch.ID, ch.Credentials) {
		return TestResult{Success: true, Message: "credentials verified"}, nil
	}

	if err := s.previewer.Preview(ctx, poster.PreviewRequest{
		Platform:          ch.Kind,
		ChannelIdentifier: ch.Identifier,
		Credentials:       ch.Credentials,
	}); err != nil {
		return TestResult{Success: false, Message: err.Error()}, nil
	}

	if err := s.cache.Store(ctx, ch.ID, ch.Credentials); err != nil {
		logger.Log.WithError(err).WithField("channel_id", ch.ID).Warn("failed to cache channel test result")
	}

	return TestResult{Success: true, Message: "credentials verified"}, nil
}
