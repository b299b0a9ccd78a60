package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"unicode/utf8"

	"task-planner/internal/logger"
	"task-planner/internal/model"
	"task-planner/internal/repository"
)

const (
	// DefaultRadius is used when a picked location carries no radius, in meters.
	DefaultRadius = 1000
	// LabelGeofence tags notifications raised on region entry.
	LabelGeofence = "geofence"

	maxIdentifierLen = 200
	earthRadius      = 6371000.0
)

// Region is a circular area around a task's place.
type Region struct {
	TaskID    string
	UserID    string
	Title     string
	Latitude  float64
	Longitude float64
	Radius    float64
}

// Notifier raises an immediate notification.
type Notifier interface {
	Notify(ctx context.Context, userID string, content Content) (string, error)
}

// GeofenceService registers task regions and turns position updates into entry alerts.
type GeofenceService struct {
	repo     *repository.GeofenceRepository
	notifier Notifier
	log      *slog.Logger
}

func NewGeofenceService(repo *repository.GeofenceRepository, notifier Notifier) *GeofenceService {
	return &GeofenceService{repo: repo, notifier: notifier, log: logger.With("geofence")}
}

// Register replaces the task's region and returns its identifier.
func (s *GeofenceService) Register(ctx context.Context, r Region) (string, error) {
	if r.Radius <= 0 {
		r.Radius = DefaultRadius
	}
	id, err := regionIdentifier(r.TaskID, r.Title)
	if err != nil {
		return "", err
	}
	g := model.Geofence{
		ID:        id,
		TaskID:    r.TaskID,
		UserID:    r.UserID,
		Title:     r.Title,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Radius:    r.Radius,
	}
	if err := s.repo.Replace(ctx, &g); err != nil {
		return "", err
	}
	return id, nil
}

// Unregister stops monitoring the task's region, if any.
func (s *GeofenceService) Unregister(ctx context.Context, taskID string) error {
	removed, err := s.repo.DeleteByTask(ctx, taskID)
	if err != nil {
		return err
	}
	if removed {
		s.log.Debug("geofence removed", "task_id", taskID)
	}
	return nil
}

// HandlePosition checks the user's regions against a new position and alerts on entry.
// Leaving a region only re-arms it.
func (s *GeofenceService) HandlePosition(ctx context.Context, userID string, lat, lng float64) ([]model.Geofence, error) {
	regions, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var entered []model.Geofence
	for _, g := range regions {
		inside := Distance(lat, lng, g.Latitude, g.Longitude) <= g.Radius
		if inside == g.Inside {
			continue
		}
		if err := s.repo.SetInside(ctx, g.ID, inside); err != nil {
			s.log.Warn("failed to update region state", "task_id", g.TaskID, "error", err)
			continue
		}
		if !inside {
			continue
		}
		entered = append(entered, g)
		_, err := s.notifier.Notify(ctx, userID, Content{
			TaskID:  g.TaskID,
			Label:   LabelGeofence,
			Title:   "You're nearby",
			Body:    "You are close to: " + g.Title,
			Channel: model.ChannelTasks,
		})
		if err != nil {
			s.log.Warn("failed to send geofence alert", "task_id", g.TaskID, "error", err)
		}
	}
	return entered, nil
}

// Distance returns the great-circle distance between two points in meters.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(a))
}

func regionIdentifier(taskID, title string) (string, error) {
	raw, err := json.Marshal(struct {
		TaskID string `json:"taskId"`
		Title  string `json:"title"`
	}{taskID, title})
	if err != nil {
		return "", err
	}
	if len(raw) > maxIdentifierLen {
		raw = raw[:maxIdentifierLen]
		// never split a multi-byte rune
		for len(raw) > 0 && !utf8.Valid(raw) {
			raw = raw[:len(raw)-1]
		}
	}
	return string(raw), nil
}
