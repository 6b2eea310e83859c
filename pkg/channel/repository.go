package channel

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("channel not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type channelModel struct {
	ID          uuid.UUID  `gorm:"primaryKey;column:id"`
	ProjectID   *uuid.UUID `gorm:"column:project_id;index"`
	Kind        string     `gorm:"column:kind"`
	Identifier  string     `gorm:"column:identifier"`
	Credentials string     `gorm:"column:credentials"`
	IsActive    bool       `gorm:"column:is_active"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

func (channelModel) TableName() string { return "channels" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&channelModel{})
}

func (r *Repository) Create(ctx context.Context, req CreateChannelRequest) (Channel, error) {
	now := time.Now().UTC()
	row := channelModel{
		ID:          uuid.New(),
		ProjectID:   req.ProjectID,
		Kind:        req.Kind,
		Identifier:  req.Identifier,
		Credentials: req.Credentials,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Channel{}, err
	}
	return toChannel(row), nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Channel, error) {
	var row channelModel
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Channel{}, ErrNotFound
	}
	if err != nil {
		return Channel{}, err
	}
	return toChannel(row), nil
}

func (r *Repository) List(ctx context.Context, projectID *uuid.UUID, limit int) ([]Channel, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if projectID != nil {
		query = query.Where("project_id = ?", *projectID)
	}
	var rows []channelModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	channels := make([]Channel, 0, len(rows))
	for _, row := range rows {
		channels = append(channels, toChannel(row))
	}
	return channels, nil
}

func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&channelModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": active, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func toChannel(row channelModel) Channel {
	return Channel{
		ID:          row.ID,
		ProjectID:   row.ProjectID,
		Kind:        row.Kind,
		Identifier:  row.Identifier,
		Credentials: row.Credentials,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}
