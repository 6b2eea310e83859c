package publication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("publication not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type publicationModel struct {
	ID                  uuid.UUID      `gorm:"primaryKey;column:id"`
	ProjectID           *uuid.UUID     `gorm:"column:project_id"`
	AuthorID            uuid.UUID      `gorm:"column:author_id"`
	Content             string         `gorm:"column:content"`
	Media               datatypes.JSON `gorm:"column:media"`
	Status              string         `gorm:"column:status;index"`
	ScheduledAt         *time.Time     `gorm:"column:scheduled_at"`
	ProcessingStartedAt *time.Time     `gorm:"column:processing_started_at"`
	CreatedAt           time.Time      `gorm:"column:created_at"`
	UpdatedAt           time.Time      `gorm:"column:updated_at"`
}

func (publicationModel) TableName() string { return "publications" }

type postModel struct {
	ID            uuid.UUID      `gorm:"primaryKey;column:id"`
	PublicationID uuid.UUID      `gorm:"column:publication_id;index"`
	ChannelID     uuid.UUID      `gorm:"column:channel_id"`
	Status        string         `gorm:"column:status"`
	PublishedAt   *time.Time     `gorm:"column:published_at"`
	ExternalURL   string         `gorm:"column:external_url"`
	Error         string         `gorm:"column:error"`
	Overrides     datatypes.JSON `gorm:"column:overrides"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
}

func (postModel) TableName() string { return "posts" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&publicationModel{}, &postModel{})
}

func (r *Repository) Create(ctx context.Context, req CreatePublicationRequest) (Publication, error) {
	now := time.Now().UTC()
	status := StatusReady
	if req.ScheduledAt != nil && req.ScheduledAt.After(now) {
		status = StatusScheduled
	}

	mediaJSON, err := json.Marshal(req.Media)
	if err != nil {
		return Publication{}, fmt.Errorf("marshal media: %w", err)
	}

	row := publicationModel{
		ID:          uuid.New(),
		ProjectID:   req.ProjectID,
		AuthorID:    req.AuthorID,
		Content:     req.Content,
		Media:       mediaJSON,
		Status:      status,
		ScheduledAt: req.ScheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	posts := make([]postModel, 0, len(req.Posts))
	for _, input := range req.Posts {
		overrides, err := json.Marshal(input.Overrides)
		if err != nil {
			return Publication{}, fmt.Errorf("marshal overrides: %w", err)
		}
		posts = append(posts, postModel{
			ID:            uuid.New(),
			PublicationID: row.ID,
			ChannelID:     input.ChannelID,
			Status:        PostStatusPending,
			Overrides:     overrides,
			CreatedAt:     now,
		})
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if len(posts) > 0 {
			return tx.Create(&posts).Error
		}
		return nil
	})
	if err != nil {
		return Publication{}, err
	}

	return toPublication(row)
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Publication, error) {
	var row publicationModel
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Publication{}, ErrNotFound
	}
	if err != nil {
		return Publication{}, err
	}
	return toPublication(row)
}

func (r *Repository) List(ctx context.Context, projectID *uuid.UUID, limit int) ([]Publication, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if projectID != nil {
		query = query.Where("project_id = ?", *projectID)
	}
	var rows []publicationModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]Publication, 0, len(rows))
	for _, row := range rows {
		pub, err := toPublication(row)
		if err != nil {
			return nil, err
		}
		items = append(items, pub)
	}
	return items, nil
}

// Posts returns the publication's posts in creation order. Dispatch relies on
// this ordering being stable across attempts.
func (r *Repository) Posts(ctx context.Context, publicationID uuid.UUID) ([]Post, error) {
	var rows []postModel
	err := r.db.WithContext(ctx).
		Where("publication_id = ?", publicationID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	posts := make([]Post, 0, len(rows))
	for _, row := range rows {
		post, err := toPost(row)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// TryAcquire takes the dispatch lock on a publication. The conditional is part
// of the UPDATE itself so two concurrent callers cannot both win: exactly one
// sees RowsAffected == 1.
func (r *Repository) TryAcquire(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&publicationModel{}).
		Where("id = ? AND status <> ?", id, StatusProcessing).
		Updates(map[string]interface{}{
			"status":                StatusProcessing,
			"processing_started_at": now,
			"updated_at":            now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Release writes the terminal status and clears the lock marker in one update.
func (r *Repository) Release(ctx context.Context, id uuid.UUID, finalStatus string) error {
	return r.db.WithContext(ctx).
		Model(&publicationModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":                finalStatus,
			"processing_started_at": nil,
			"updated_at":            time.Now().UTC(),
		}).Error
}

func (r *Repository) MarkPostPublished(ctx context.Context, postID uuid.UUID, externalURL string, publishedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&postModel{}).
		Where("id = ?", postID).
		Updates(map[string]interface{}{
			"status":       PostStatusPublished,
			"published_at": publishedAt,
			"external_url": externalURL,
			"error":        "",
		}).Error
}

func (r *Repository) MarkPostFailed(ctx context.Context, postID uuid.UUID, message string) error {
	return r.db.WithContext(ctx).
		Model(&postModel{}).
		Where("id = ?", postID).
		Updates(map[string]interface{}{
			"status": PostStatusFailed,
			"error":  message,
		}).Error
}

// DueScheduled lists SCHEDULED publications whose scheduled time has passed.
func (r *Repository) DueScheduled(ctx context.Context, now time.Time, limit int) ([]Publication, error) {
	var rows []publicationModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", StatusScheduled, now).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	items := make([]Publication, 0, len(rows))
	for _, row := range rows {
		pub, err := toPublication(row)
		if err != nil {
			return nil, err
		}
		items = append(items, pub)
	}
	return items, nil
}

func toPublication(row publicationModel) (Publication, error) {
	var media []MediaRef
	if len(row.Media) > 0 {
		if err := json.Unmarshal(row.Media, &media); err != nil {
			return Publication{}, fmt.Errorf("unmarshal media: %w", err)
		}
	}
	return Publication{
		ID:                  row.ID,
		ProjectID:           row.ProjectID,
		AuthorID:            row.AuthorID,
		Content:             row.Content,
		Media:               media,
		Status:              row.Status,
		ScheduledAt:         row.ScheduledAt,
		ProcessingStartedAt: row.ProcessingStartedAt,
		CreatedAt:           row.CreatedAt,
		UpdatedAt:           row.UpdatedAt,
	}, nil
}

func toPost(row postModel) (Post, error) {
	var overrides PostOverrides
	if len(row.Overrides) > 0 {
		if err := json.Unmarshal(row.Overrides, &overrides); err != nil {
			return Post{}, fmt.Errorf("unmarshal overrides: %w", err)
		}
	}
	return Post{
		ID:            row.ID,
		PublicationID: row.PublicationID,
		ChannelID:     row.ChannelID,
		Status:        row.Status,
		PublishedAt:   row.PublishedAt,
		ExternalURL:   row.ExternalURL,
		Error:         row.Error,
		Overrides:     overrides,
		CreatedAt:     row.CreatedAt,
	}, nil
}
