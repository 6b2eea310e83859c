package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type notificationModel struct {
	ID        uuid.UUID      `gorm:"primaryKey;column:id"`
	UserID    uuid.UUID      `gorm:"column:user_id;index"`
	Kind      string         `gorm:"column:kind"`
	Context   datatypes.JSON `gorm:"column:context"`
	ReadAt    *time.Time     `gorm:"column:read_at"`
	CreatedAt time.Time      `gorm:"column:created_at"`
}

func (notificationModel) TableName() string { return "notifications" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&notificationModel{})
}

func (r *Repository) Create(ctx context.Context, userID uuid.UUID, kind string, context map[string]interface{}) (Notification, error) {
	contextJSON, err := json.Marshal(context)
	if err != nil {
		return Notification{}, fmt.Errorf("marshal notification context: %w", err)
	}
	row := notificationModel{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      kind,
		Context:   contextJSON,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Notification{}, err
	}
	return toNotification(row)
}

func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]Notification, error) {
	var rows []notificationModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	items := make([]Notification, 0, len(rows))
	for _, row := range rows {
		notification, err := toNotification(row)
		if err != nil {
			return nil, err
		}
		items = append(items, notification)
	}
	return items, nil
}

func (r *Repository) MarkRead(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&notificationModel{}).
		Where("id = ?", id).
		Update("read_at", time.Now().UTC()).Error
}

func toNotification(row notificationModel) (Notification, error) {
	var context map[string]interface{}
	if len(row.Context) > 0 {
		if err := json.Unmarshal(row.Context, &context); err != nil {
			return Notification{}, fmt.Errorf("unmarshal notification context: %w", err)
		}
	}
	return Notification{
		ID:        row.ID,
		UserID:    row.UserID,
		Kind:      row.Kind,
		Context:   context,
		ReadAt:    row.ReadAt,
		CreatedAt: row.CreatedAt,
	}, nil
}
