package model

import "time"

// User is an account signed up with email and password.
type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	DisplayName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Devices      []Device `gorm:"foreignKey:UserID"`
}

// Device is a Telegram chat that receives the user's notifications.
type Device struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"uniqueIndex:idx_user_device;size:36"`
	ChatID    int64  `gorm:"uniqueIndex:idx_user_device"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
