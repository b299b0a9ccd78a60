package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"task-planner/internal/model"
)

// ErrDuplicateEmail is returned when an account already uses the email.
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository handles accounts and their notification devices.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	db := r.db.WithContext(ctx)
	var count int64
	if err := db.Model(&model.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if count > 0 {
		return ErrDuplicateEmail
	}
	if err := db.Create(user).Error; err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// UpdateProfile writes only the non-empty values.
func (r *UserRepository) UpdateProfile(ctx context.Context, id, displayName, passwordHash string) error {
	updates := map[string]interface{}{}
	if displayName != "" {
		updates["display_name"] = displayName
	}
	if passwordHash != "" {
		updates["password_hash"] = passwordHash
	}
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddDevice registers a chat for the user; registering the same chat twice is a no-op.
func (r *UserRepository) AddDevice(ctx context.Context, userID string, chatID int64) error {
	device := model.Device{UserID: userID, ChatID: chatID}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&device).Error; err != nil {
		return fmt.Errorf("add device: %w", err)
	}
	return nil
}

func (r *UserRepository) RemoveDevice(ctx context.Context, userID string, chatID int64) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND chat_id = ?", userID, chatID).
		Delete(&model.Device{}).Error; err != nil {
		return fmt.Errorf("remove device: %w", err)
	}
	return nil
}

func (r *UserRepository) ListDevices(ctx context.Context, userID string) ([]model.Device, error) {
	var devices []model.Device
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
