package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"task-planner/internal/model"
	"task-planner/internal/places"
	"task-planner/internal/repository"
)

func newLocationFixture(t *testing.T) (*LocationService, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/place/autocomplete/json":
			if r.URL.Query().Get("location") == "" {
				http.Error(w, "expected a bias", http.StatusBadRequest)
				return
			}
			fmt.Fprint(w, `{"status":"OK","predictions":[{"description":"Bakery","place_id":"p1"}]}`)
		case "/place/details/json":
			fmt.Fprint(w, `{"status":"OK","result":{"formatted_address":"Bakery, Main St","geometry":{"location":{"lat":10,"lng":20}}}}`)
		case "/geocode/json":
			http.Error(w, "down", http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	client := places.NewClient("key", srv.URL, srv.Client(), nil)
	saved := repository.NewSavedLocationRepository(newTestDB(t))
	return NewLocationService(client, saved), srv
}

func TestLocationSearchAndResolve(t *testing.T) {
	svc, _ := newLocationFixture(t)
	ctx := context.Background()
	user := &model.User{ID: "u1"}

	if got, err := svc.Search(ctx, "   ", nil); err != nil || got != nil {
		t.Fatalf("blank search = %v, %v", got, err)
	}
	suggestions, err := svc.Search(ctx, "bakery", &PickedLocation{Latitude: 1, Longitude: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("suggestions = %+v", suggestions)
	}

	picked, err := svc.Resolve(ctx, user, suggestions[0].PlaceID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if picked.Description != "Bakery, Main St" || picked.Latitude != 10 || picked.Radius != DefaultRadius {
		t.Errorf("picked = %+v", picked)
	}

	recent, err := svc.Recent(ctx, user)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Description != "Bakery, Main St" {
		t.Errorf("recent = %+v", recent)
	}
}

func TestFromCoordinatesFallsBack(t *testing.T) {
	svc, _ := newLocationFixture(t)
	picked := svc.FromCoordinates(context.Background(), nil, 1.5, -2)
	if picked.Description != "Lat 1.5, Lng -2" {
		t.Errorf("description = %q", picked.Description)
	}
	if _, err := svc.Recent(context.Background(), nil); err != ErrNotSignedIn {
		t.Errorf("signed-out Recent err = %v", err)
	}
}

func TestRecentIsCapped(t *testing.T) {
	svc, _ := newLocationFixture(t)
	ctx := context.Background()
	user := &model.User{ID: "u1"}
	for i := 0; i < recentLocations+3; i++ {
		svc.FromCoordinates(ctx, user, float64(i), 0)
	}
	recent, err := svc.Recent(ctx, user)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != recentLocations {
		t.Fatalf("recent = %d, want %d", len(recent), recentLocations)
	}
	if recent[0].Latitude != float64(recentLocations+2) {
		t.Errorf("newest first: got lat %v", recent[0].Latitude)
	}
}
