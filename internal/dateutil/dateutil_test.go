package dateutil

import (
	"testing"
	"time"
)

func TestDaysBetween(t *testing.T) {
	base := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		b    time.Time
		want int
	}{
		{"same day", base.Add(-20 * time.Hour), 0},
		{"next morning", time.Date(2025, 3, 11, 0, 5, 0, 0, time.UTC), 1},
		{"across month", time.Date(2025, 4, 9, 1, 0, 0, 0, time.UTC), 30},
		{"past", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), -9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysBetween(base, tt.b); got != tt.want {
				t.Errorf("DaysBetween = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsToday(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	if !IsToday(now.Add(10*time.Hour), now) {
		t.Error("Expected later the same day to be today")
	}
	if IsToday(now.Add(-9*time.Hour), now) {
		t.Error("Expected the previous evening not to be today")
	}
}

func TestStartOfPeriods(t *testing.T) {
	ts := time.Date(2025, 8, 14, 15, 4, 5, 0, time.UTC) // Thursday

	if got := StartOfWeek(ts); !got.Equal(time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartOfWeek = %v", got)
	}
	if got := StartOfMonth(ts); !got.Equal(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartOfMonth = %v", got)
	}
	if got := StartOfQuarter(ts); !got.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartOfQuarter = %v", got)
	}
	if got := EndOfDay(ts); !got.Equal(time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)) {
		t.Errorf("EndOfDay = %v", got)
	}
	if Quarter(ts) != 3 {
		t.Errorf("Quarter = %d", Quarter(ts))
	}
}

func TestCombineDateTime(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	got, err := CombineDateTime(day, "14:45")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !got.Equal(time.Date(2025, 3, 10, 14, 45, 0, 0, time.UTC)) {
		t.Errorf("CombineDateTime = %v", got)
	}

	for _, bad := range []string{"", "25:00", "10:61", "ten:30", "10"} {
		if _, err := CombineDateTime(day, bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestStreak(t *testing.T) {
	// Wednesday 2025-03-12.
	now := time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)
	weekdays := []int{1, 2, 3, 4, 5}

	at := func(month time.Month, day, n int) []time.Time {
		out := make([]time.Time, n)
		for i := range out {
			out[i] = time.Date(2025, month, day, 9+i, 0, 0, 0, time.UTC)
		}
		return out
	}

	var events []time.Time
	events = append(events, at(3, 6, 2)...)  // Thu
	events = append(events, at(3, 7, 2)...)  // Fri
	events = append(events, at(3, 10, 2)...) // Mon
	events = append(events, at(3, 11, 2)...) // Tue

	if got := Streak(events, 2, weekdays, now); got != 4 {
		t.Errorf("Expected streak of 4 across the weekend, got %d", got)
	}

	withToday := append(append([]time.Time{}, events...), at(3, 12, 2)...)
	if got := Streak(withToday, 2, weekdays, now); got != 5 {
		t.Errorf("Expected today to extend the streak to 5, got %d", got)
	}

	if got := Streak(events, 3, weekdays, now); got != 0 {
		t.Errorf("Expected no streak with a higher goal, got %d", got)
	}

	if got := Streak(nil, 1, weekdays, now); got != 0 {
		t.Errorf("Expected no streak without events, got %d", got)
	}
}
