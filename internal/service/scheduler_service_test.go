package service

import (
	"errors"
	"testing"
	"time"
)

func TestOnceScheduleFiresOnce(t *testing.T) {
	at := time.Date(2025, 8, 28, 10, 0, 0, 0, time.UTC)
	s := onceSchedule{at: at}

	if got := s.Next(at.Add(-time.Hour)); !got.Equal(at) {
		t.Fatalf("Next before = %s, want %s", got, at)
	}
	if got := s.Next(at); !got.IsZero() {
		t.Fatalf("Next at = %s, want zero", got)
	}
	if got := s.Next(at.Add(time.Second)); !got.IsZero() {
		t.Fatalf("Next after = %s, want zero", got)
	}
}

func TestBuildDailySpec(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"08:00", "0 0 8 * * *", false},
		{"23:59", "0 59 23 * * *", false},
		{"7:5", "0 5 7 * * *", false},
		{"24:00", "", true},
		{"08:61", "", true},
		{"0800", "", true},
	}
	for _, tt := range tests {
		got, err := buildDailySpec(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("buildDailySpec(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("buildDailySpec(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScheduleAtRejectsPast(t *testing.T) {
	s := NewSchedulerService(time.UTC)
	if _, err := s.ScheduleAt(time.Now().Add(-time.Minute), func() {}); !errors.Is(err, ErrTriggerInPast) {
		t.Fatalf("err = %v, want ErrTriggerInPast", err)
	}
}

func TestScheduleAtRunsJobAndRemovesEntry(t *testing.T) {
	s := NewSchedulerService(time.UTC)
	s.Start()
	defer s.Stop()

	fired := make(chan struct{}, 1)
	id, err := s.ScheduleAt(time.Now().Add(1100*time.Millisecond), func() { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("ScheduleAt: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not fire")
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.cron.Entry(id).Valid() {
		if time.Now().After(deadline) {
			t.Fatal("entry not removed after firing")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestRemoveCancelsPendingJob(t *testing.T) {
	s := NewSchedulerService(time.UTC)
	s.Start()
	defer s.Stop()

	fired := make(chan struct{}, 1)
	id, err := s.ScheduleAt(time.Now().Add(800*time.Millisecond), func() { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("ScheduleAt: %v", err)
	}
	s.Remove(id)

	select {
	case <-fired:
		t.Fatal("removed job fired")
	case <-time.After(1500 * time.Millisecond):
	}
}
