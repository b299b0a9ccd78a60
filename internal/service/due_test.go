package service

import (
	"testing"
	"time"
)

func TestParseDue(t *testing.T) {
	loc := time.FixedZone("test", 2*3600)
	tests := []struct {
		date, clock string
		want        time.Time
		ok          bool
	}{
		{"2025-08-28", "10:00", time.Date(2025, 8, 28, 10, 0, 0, 0, loc), true},
		{"2025-8-5", "7:05", time.Date(2025, 8, 5, 7, 5, 0, 0, loc), true},
		{" 2024-02-29 ", "23:59:30", time.Date(2024, 2, 29, 23, 59, 0, 0, loc), true},
		{"2025-02-29", "10:00", time.Time{}, false},
		{"2025-00-10", "10:00", time.Time{}, false},
		{"2025-08-28", "24:00", time.Time{}, false},
		{"2025-08-28", "10:60", time.Time{}, false},
		{"2025-08-28", "10", time.Time{}, false},
		{"2025-08-28", "10:00:99", time.Time{}, false},
		{"2025-08-28", "10:00:00:00", time.Time{}, false},
		{"2025-08-28", "", time.Time{}, false},
		{"", "10:00", time.Time{}, false},
		{"28.08.2025", "10:00", time.Time{}, false},
		{"2025-08-xx", "10:00", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseDue(tt.date, tt.clock, loc)
		if ok != tt.ok {
			t.Errorf("ParseDue(%q, %q) ok = %v, want %v", tt.date, tt.clock, ok, tt.ok)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("ParseDue(%q, %q) = %s, want %s", tt.date, tt.clock, got, tt.want)
		}
	}
}

func TestParseDueDateIsMidnight(t *testing.T) {
	got, ok := ParseDueDate("2025-12-31", time.UTC)
	if !ok {
		t.Fatal("expected a valid date")
	}
	if want := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestNormalizeDueDate(t *testing.T) {
	tests := []struct {
		in, want string
		ok       bool
	}{
		{"2025-8-5", "2025-08-05", true},
		{" 2025-08-05 ", "2025-08-05", true},
		{"2024-2-29", "2024-02-29", true},
		{"2025-2-30", "", false},
		{"2025/08/05", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeDueDate(tt.in, time.UTC)
		if ok != tt.ok || got != tt.want {
			t.Errorf("NormalizeDueDate(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeDueTime(t *testing.T) {
	tests := []struct {
		in, want string
		ok       bool
	}{
		{"07:30", "07:30", true},
		{"7:5", "07:05", true},
		{"23:59:10", "23:59", true},
		{"10:00:99", "", false},
		{"24:00", "", false},
		{"7pm", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeDueTime(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("NormalizeDueTime(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
