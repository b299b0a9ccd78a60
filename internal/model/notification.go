package model

import "time"

type NotificationStatus string

const (
	NotificationScheduled NotificationStatus = "scheduled"
	NotificationDelivered NotificationStatus = "delivered"
	NotificationCancelled NotificationStatus = "cancelled"
)

// Delivery channels. ChannelTasks is loud, ChannelDefault is delivered silently.
const (
	ChannelTasks   = "tasks"
	ChannelDefault = "default"
)

// Notification is a scheduled alert owned by a user, optionally tied to a task.
type Notification struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"index;not null"`
	TaskID    string `gorm:"index"`
	Label     string
	Title     string
	Body      string
	Channel   string             `gorm:"size:16;default:default"`
	FireAt    time.Time          `gorm:"index"`
	Status    NotificationStatus `gorm:"size:16;index;default:scheduled"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
