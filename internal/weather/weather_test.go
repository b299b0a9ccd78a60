package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"task-planner/internal/cache"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryCache) GetJSON(_ context.Context, key string, target interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(raw, target)
}

func (m *memoryCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = raw
	return nil
}

func dayUnix(ymd string) int64 {
	t, _ := time.ParseInLocation("2006-01-02 15:04", ymd+" 12:00", time.UTC)
	return t.Unix()
}

func newTestServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/data/3.0/onecall", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Query().Get("appid") != "key" || r.URL.Query().Get("units") != "metric" {
			http.Error(w, "bad params", http.StatusUnauthorized)
			return
		}
		fmt.Fprintf(w, `{"daily":[
			{"dt":%d,"pop":0.1,"weather":[{"main":"Clear","icon":"01d"}]},
			{"dt":%d,"pop":0.8,"weather":[{"main":"Clouds","icon":"04d"}]},
			{"dt":%d,"pop":0.0,"weather":[{"main":"Drizzle","icon":"09d"}]}
		]}`, dayUnix("2025-03-10"), dayUnix("2025-03-11"), dayUnix("2025-03-12"))
	})
	mux.HandleFunc("/data/2.5/weather", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		fmt.Fprint(w, `{"name":"Berlin","weather":[{"main":"Rain","icon":"10d"}],"main":{"temp":7.5,"humidity":80},"wind":{"speed":3.2},"sys":{"sunrise":1741586400}}`)
	})
	mux.HandleFunc("/data/2.5/forecast", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		base := dayUnix("2025-03-10")
		fmt.Fprintf(w, `{"list":[
			{"dt":%d,"main":{"temp":5},"pop":0.1,"weather":[{"icon":"01d"}]},
			{"dt":%d,"main":{"temp":9},"pop":0.2,"weather":[{"icon":"10d"}]},
			{"dt":%d,"main":{"temp":3},"pop":0.6,"weather":[{"icon":"04n"}]}
		]}`, base, base+3*3600, base+24*3600)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestWillLikelyRainOnDate(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	c := NewClient("key", Options{BaseURL: srv.URL, Location: time.UTC, Cache: &memoryCache{}})
	ctx := context.Background()

	tests := []struct {
		date string
		want bool
	}{
		{"2025-03-10", false},
		{"2025-03-11", true}, // pop above threshold
		{"2025-03-12", true}, // drizzle
		{"2025-04-01", false},
	}
	for _, tt := range tests {
		got, err := c.WillLikelyRainOnDate(ctx, 52.52, 13.405, tt.date)
		if err != nil {
			t.Fatalf("%s: %v", tt.date, err)
		}
		if got != tt.want {
			t.Errorf("%s: rain = %v, want %v", tt.date, got, tt.want)
		}
	}
	if hits != 1 {
		t.Errorf("upstream hits = %d, want 1 (cached)", hits)
	}

	if _, err := c.WillLikelyRainOnDate(ctx, 0, 0, "not-a-date"); err == nil {
		t.Error("bad date accepted")
	}
}

func TestMissingKey(t *testing.T) {
	c := NewClient("", Options{})
	if _, err := c.WillLikelyRainOnDate(context.Background(), 1, 1, "2025-03-10"); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("err = %v, want ErrMissingKey", err)
	}
}

func TestUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("key", Options{BaseURL: srv.URL})
	if _, err := c.Current(context.Background(), 1, 1); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestCurrentAndForecast(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	c := NewClient("key", Options{BaseURL: srv.URL, Location: time.UTC})
	ctx := context.Background()

	cur, err := c.Current(ctx, 52.52, 13.405)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur.Name != "Berlin" || cur.Condition != "Rain" || cur.FeelsLikeC != 7.5 || cur.Sunrise.IsZero() {
		t.Errorf("current = %+v", cur)
	}

	fc, err := c.Forecast(ctx, 52.52, 13.405)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(fc.Hourly) != 3 || len(fc.Daily) != 2 {
		t.Fatalf("forecast = %+v", fc)
	}
	day := fc.Daily[0]
	if day.MinC != 5 || day.MaxC != 9 || day.PopMax != 0.2 || day.Icon != "10d" {
		t.Errorf("first day = %+v", day)
	}
	if !UmbrellaLikely(fc.Hourly, time.Unix(dayUnix("2025-03-10"), 0)) {
		t.Error("UmbrellaLikely = false, want true")
	}
}
