package model

import (
	"strings"
	"time"
)

// Priority ranks a task in lists and reminders.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority maps free text to a priority, defaulting to medium.
func ParsePriority(raw string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(raw))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Notification labels used as keys of Task.NotificationIDs.
const (
	LabelMinus6    = "minus6"
	LabelMinus1    = "minus1"
	LabelMinus5Min = "minus5min"
	LabelUmbrella  = "umbrella"
)

// TaskLocation is the picked place a task is bound to.
type TaskLocation struct {
	Description string  `json:"description"`
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lng"`
	Radius      float64 `json:"radius"`
}

// Task represents a single item in the planner.
// DueDate and DueTime keep exactly what the user typed.
type Task struct {
	ID              string            `gorm:"primaryKey;size:36"`
	UserID          string            `gorm:"index;not null"`
	Title           string            `gorm:"not null"`
	DueDate         string            `gorm:"index"`
	DueTime         string
	Priority        Priority          `gorm:"size:8;default:medium"`
	IsCompleted     bool              `gorm:"default:false"`
	HasLocation     bool              `gorm:"default:false"`
	Location        *TaskLocation     `gorm:"serializer:json"`
	HasWeather      bool              `gorm:"default:false"`
	NotificationIDs map[string]string `gorm:"serializer:json"`
	GeofenceID      string
	CreatedAt       time.Time `gorm:"autoCreateTime;<-:create"`
	UpdatedAt       time.Time
}
