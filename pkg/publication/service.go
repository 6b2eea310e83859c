package publication

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, req CreatePublicationRequest) (Publication, error) {
	if req.Content == "" {
		return Publication{}, fmt.Errorf("content is required")
	}
	if len(req.Posts) == 0 {
		return Publication{}, fmt.Errorf("at least one target channel is required")
	}
	return s.repo.Create(ctx, req)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Publication, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, projectID *uuid.UUID, limit int) ([]Publication, error) {
	return s.repo.List(ctx, projectID, limit)
}

func (s *Service) Posts(ctx context.Context, publicationID uuid.UUID) ([]Post, error) {
	return s.repo.Posts(ctx, publicationID)
}
