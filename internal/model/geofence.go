package model

import "time"

// Geofence is the active entry-triggered region registered for a task.
type Geofence struct {
	ID        string `gorm:"primaryKey"`
	TaskID    string `gorm:"uniqueIndex;size:36"`
	UserID    string `gorm:"index;size:36"`
	Title     string
	Latitude  float64
	Longitude float64
	Radius    float64
	Inside    bool `gorm:"default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SavedLocation is a place the user picked once and may reuse.
type SavedLocation struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      string `gorm:"index;size:36"`
	Description string
	Latitude    float64
	Longitude   float64
	CreatedAt   time.Time
}
