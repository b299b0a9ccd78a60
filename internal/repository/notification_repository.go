package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"task-planner/internal/model"
)

// NotificationRepository persists scheduled alerts so they survive restarts.
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

func (r *NotificationRepository) MarkStatus(ctx context.Context, id string, status model.NotificationStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Notification{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("mark notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListScheduled returns alerts still waiting to fire, soonest first.
func (r *NotificationRepository) ListScheduled(ctx context.Context) ([]model.Notification, error) {
	var list []model.Notification
	if err := r.db.WithContext(ctx).Where("status = ?", model.NotificationScheduled).
		Order("fire_at ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
