package reminder

import (
	"testing"
	"time"
)

func TestNextRunBeforeTarget(t *testing.T) {
	now := time.Date(2024, 1, 1, 19, 59, 59, 0, time.UTC)
	next, err := NextRun("20:00", now)
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	want := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNextRunAtExactTarget(t *testing.T) {
	// The target time is "used" at the instant it occurs: equality rolls
	// over to tomorrow so the same instant never fires twice.
	now := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	next, err := NextRun("20:00", now)
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	want := time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNextRunAfterTarget(t *testing.T) {
	now := time.Date(2024, 1, 1, 20, 0, 1, 0, time.UTC)
	next, err := NextRun("20:00", now)
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	want := time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNextRunMonthRollover(t *testing.T) {
	now := time.Date(2024, 1, 31, 22, 0, 0, 0, time.UTC)
	next, err := NextRun("20:00", now)
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	want := time.Date(2024, 2, 1, 20, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNextRunKeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2024, 6, 15, 8, 30, 0, 0, loc)
	next, err := NextRun("09:15", now)
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	want := time.Date(2024, 6, 15, 9, 15, 0, 0, loc)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
	if next.Location() != loc {
		t.Errorf("location = %v, want %v", next.Location(), loc)
	}
}

func TestNextRunInvalid(t *testing.T) {
	for _, bad := range []string{"", "25:00", "12:75", "noon", "-1:30"} {
		if _, err := NextRun(bad, time.Now()); err == nil {
			t.Errorf("NextRun(%q): expected error", bad)
		}
	}
}
