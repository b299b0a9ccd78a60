package service

import (
	"context"
	"log/slog"
	"strings"

	"task-planner/internal/logger"
	"task-planner/internal/model"
	"task-planner/internal/places"
	"task-planner/internal/repository"
)

const recentLocations = 5

// LocationService picks places for tasks and remembers them per user.
type LocationService struct {
	places *places.Client
	saved  *repository.SavedLocationRepository
	log    *slog.Logger
}

func NewLocationService(placesClient *places.Client, saved *repository.SavedLocationRepository) *LocationService {
	return &LocationService{places: placesClient, saved: saved, log: logger.With("locations")}
}

// Search returns autocomplete suggestions, biased towards near when given.
func (s *LocationService) Search(ctx context.Context, query string, near *PickedLocation) ([]places.Suggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	var bias *places.Bias
	if near != nil {
		bias = &places.Bias{Latitude: near.Latitude, Longitude: near.Longitude}
	}
	return s.places.Autocomplete(ctx, query, bias)
}

// Resolve turns a suggestion into coordinates and remembers it.
func (s *LocationService) Resolve(ctx context.Context, user *model.User, placeID string) (*PickedLocation, error) {
	place, err := s.places.Details(ctx, placeID)
	if err != nil {
		return nil, err
	}
	picked := &PickedLocation{
		Description: place.Description,
		Latitude:    place.Latitude,
		Longitude:   place.Longitude,
		Radius:      DefaultRadius,
	}
	s.remember(ctx, user, picked)
	return picked, nil
}

// FromCoordinates labels a shared pin. Geocoding failures fall back to a coordinate label.
func (s *LocationService) FromCoordinates(ctx context.Context, user *model.User, lat, lng float64) *PickedLocation {
	label, err := s.places.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		s.log.Debug("reverse geocode failed", "error", err)
		label = places.FallbackLabel(lat, lng)
	}
	picked := &PickedLocation{Description: label, Latitude: lat, Longitude: lng, Radius: DefaultRadius}
	s.remember(ctx, user, picked)
	return picked
}

// Recent lists the user's last picked places.
func (s *LocationService) Recent(ctx context.Context, user *model.User) ([]model.SavedLocation, error) {
	if user == nil {
		return nil, ErrNotSignedIn
	}
	return s.saved.ListByUser(ctx, user.ID, recentLocations)
}

func (s *LocationService) remember(ctx context.Context, user *model.User, picked *PickedLocation) {
	if user == nil {
		return
	}
	err := s.saved.Create(ctx, &model.SavedLocation{
		UserID:      user.ID,
		Description: picked.Description,
		Latitude:    picked.Latitude,
		Longitude:   picked.Longitude,
	})
	if err != nil {
		s.log.Warn("failed to remember location", "user_id", user.ID, "error", err)
	}
}
