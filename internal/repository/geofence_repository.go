package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"task-planner/internal/model"
)

// GeofenceRepository keeps one active region per task.
type GeofenceRepository struct {
	db *gorm.DB
}

func NewGeofenceRepository(db *gorm.DB) *GeofenceRepository {
	return &GeofenceRepository{db: db}
}

// Replace drops any region already registered for the task and stores g.
func (r *GeofenceRepository) Replace(ctx context.Context, g *model.Geofence) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ? OR id = ?", g.TaskID, g.ID).Delete(&model.Geofence{}).Error; err != nil {
			return fmt.Errorf("drop geofence: %w", err)
		}
		if err := tx.Create(g).Error; err != nil {
			return fmt.Errorf("create geofence: %w", err)
		}
		return nil
	})
}

// DeleteByTask removes the task's region and reports whether one existed.
func (r *GeofenceRepository) DeleteByTask(ctx context.Context, taskID string) (bool, error) {
	res := r.db.WithContext(ctx).Where("task_id = ?", taskID).Delete(&model.Geofence{})
	if res.Error != nil {
		return false, fmt.Errorf("delete geofence: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *GeofenceRepository) ListByUser(ctx context.Context, userID string) ([]model.Geofence, error) {
	var list []model.Geofence
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *GeofenceRepository) SetInside(ctx context.Context, id string, inside bool) error {
	if err := r.db.WithContext(ctx).Model(&model.Geofence{}).Where("id = ?", id).
		Update("inside", inside).Error; err != nil {
		return fmt.Errorf("update geofence: %w", err)
	}
	return nil
}

// SavedLocationRepository stores favourite places picked by users.
type SavedLocationRepository struct {
	db *gorm.DB
}

func NewSavedLocationRepository(db *gorm.DB) *SavedLocationRepository {
	return &SavedLocationRepository{db: db}
}

func (r *SavedLocationRepository) Create(ctx context.Context, loc *model.SavedLocation) error {
	if err := r.db.WithContext(ctx).Create(loc).Error; err != nil {
		return fmt.Errorf("save location: %w", err)
	}
	return nil
}

// ListByUser returns the most recent saved places, newest first.
func (r *SavedLocationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.SavedLocation, error) {
	var list []model.SavedLocation
	db := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	if err := db.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
