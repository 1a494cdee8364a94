package filters

import (
	"testing"
	"time"

	"offer-tracker/internal/models"
)

// Wednesday, May 14 2025.
var now = time.Date(2025, 5, 14, 15, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		preset    Preset
		wantStart time.Time
		wantEnd   time.Time
	}{
		{Today, day(2025, 5, 14), day(2025, 5, 15)},
		{Yesterday, day(2025, 5, 13), day(2025, 5, 14)},
		{ThisWeek, day(2025, 5, 11), day(2025, 5, 18)},
		{LastWeek, day(2025, 5, 4), day(2025, 5, 11)},
		{Last7Days, day(2025, 5, 8), day(2025, 5, 15)},
		{ThisMonth, day(2025, 5, 1), day(2025, 6, 1)},
		{LastMonth, day(2025, 4, 1), day(2025, 5, 1)},
		{Last30Days, day(2025, 4, 15), day(2025, 5, 15)},
		{ThisQuarter, day(2025, 4, 1), day(2025, 7, 1)},
		{ThisYear, day(2025, 1, 1), day(2026, 1, 1)},
	}

	for _, tt := range tests {
		t.Run(string(tt.preset), func(t *testing.T) {
			start, end, err := Resolve(tt.preset, now)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if !start.Equal(tt.wantStart) {
				t.Errorf("start = %v, want %v", start, tt.wantStart)
			}
			// Ranges are inclusive and end on the last nanosecond before the next period.
			if !end.Add(time.Nanosecond).Equal(tt.wantEnd) {
				t.Errorf("end = %v, want just before %v", end, tt.wantEnd)
			}
		})
	}
}

func TestResolve_AllTimeAndInvalid(t *testing.T) {
	start, end, err := Resolve(AllTime, now)
	if err != nil || !start.IsZero() || !end.IsZero() {
		t.Errorf("Expected open range for allTime, got %v %v %v", start, end, err)
	}
	if _, _, err := Resolve(Custom, now); err == nil {
		t.Error("Expected error resolving custom without bounds")
	}
	if _, _, err := Resolve("fortnight", now); err == nil {
		t.Error("Expected error for unknown preset")
	}
}

func TestNormalize(t *testing.T) {
	got, err := State{}.Normalize(now)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got.Preset != ThisMonth || got.CSAT != All || got.Converted != All || got.HasFollowup != All {
		t.Errorf("Expected defaults to be filled, got %+v", got)
	}

	custom, err := State{Preset: Custom, Start: day(2025, 2, 3).Add(10 * time.Hour), End: day(2025, 2, 5)}.Normalize(now)
	if err != nil {
		t.Fatalf("Normalize custom failed: %v", err)
	}
	if !custom.Start.Equal(day(2025, 2, 3)) || !custom.End.Add(time.Nanosecond).Equal(day(2025, 2, 6)) {
		t.Errorf("Expected whole-day custom range, got %v - %v", custom.Start, custom.End)
	}

	invalid := []State{
		{Preset: Custom},
		{Preset: Custom, Start: day(2025, 2, 5), End: day(2025, 2, 3)},
		{CSAT: "great"},
		{Converted: "maybe"},
		{HasFollowup: "sometimes"},
	}
	for i, s := range invalid {
		if _, err := s.Normalize(now); err == nil {
			t.Errorf("Case %d: expected validation error for %+v", i, s)
		}
	}
}

func TestApply(t *testing.T) {
	followup := now.AddDate(0, 0, 2)
	offers := []models.Offer{
		{ID: "1", Channel: "Phone", OfferType: "Upgrade", Date: now.AddDate(0, 0, -1), CSAT: models.CSATPositive,
			Conversion: models.ConvertedOn(now)},
		{ID: "2", Channel: "Chat", OfferType: "Retention", Date: now.AddDate(0, 0, -3), FollowupDate: &followup},
		{ID: "3", Channel: "Email", OfferType: "Upgrade", Date: now.AddDate(0, -2, 0), CSAT: models.CSATNegative},
		{ID: "4", Channel: "phone", OfferType: "Add-on", Date: now},
	}

	tests := []struct {
		name  string
		state State
		want  []string
	}{
		{"this month", State{Preset: ThisMonth}, []string{"1", "2", "4"}},
		{"all time", State{Preset: AllTime}, []string{"1", "2", "3", "4"}},
		{"channel ignores case", State{Preset: AllTime, Channels: []string{"Phone"}}, []string{"1", "4"}},
		{"offer type", State{Preset: AllTime, OfferTypes: []string{"Upgrade"}}, []string{"1", "3"}},
		{"csat none", State{Preset: AllTime, CSAT: CSATNone}, []string{"2", "4"}},
		{"csat negative", State{Preset: AllTime, CSAT: "negative"}, []string{"3"}},
		{"converted yes", State{Preset: AllTime, Converted: Yes}, []string{"1"}},
		{"converted no", State{Preset: Last7Days, Converted: No}, []string{"2", "4"}},
		{"has followup", State{Preset: AllTime, HasFollowup: Yes}, []string{"2"}},
		{"today", State{Preset: Today}, []string{"4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := tt.state.Normalize(now)
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			got := Apply(offers, state)
			ids := make([]string, len(got))
			for i, o := range got {
				ids[i] = o.ID
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, ids)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("Expected %v, got %v", tt.want, ids)
					break
				}
			}
		})
	}
}

func TestSession(t *testing.T) {
	clock := now
	session := NewSession(func() time.Time { return clock })

	if got := session.Get(); got.Preset != ThisMonth {
		t.Fatalf("Expected a new session to start on thisMonth, got %s", got.Preset)
	}

	if _, err := session.Set(State{Preset: LastWeek, Channels: []string{"Chat"}}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := session.Set(State{CSAT: "bogus"}); err == nil {
		t.Error("Expected invalid state to be rejected")
	}
	got := session.Get()
	if got.Preset != LastWeek || len(got.Channels) != 1 {
		t.Errorf("Rejected Set must keep the previous state, got %+v", got)
	}

	// A week later the relative preset follows the calendar.
	clock = now.AddDate(0, 0, 7)
	if start := session.Get().Start; !start.Equal(day(2025, 5, 11)) {
		t.Errorf("Expected lastWeek to move with the clock, got %v", start)
	}

	reset := session.Reset()
	if reset.Preset != ThisMonth || len(reset.Channels) != 0 {
		t.Errorf("Expected reset to the default filter, got %+v", reset)
	}
}
