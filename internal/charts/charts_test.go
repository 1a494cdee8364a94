package charts

import (
	"reflect"
	"testing"
	"time"

	"offer-tracker/internal/models"
)

// Wednesday, May 14 2025.
var now = time.Date(2025, 5, 14, 15, 30, 0, 0, time.UTC)

func offerOn(t time.Time) models.Offer {
	return models.Offer{ID: t.String(), Channel: "Phone", OfferType: "Upgrade", Date: t}
}

func TestCategoryBreakdowns_NeverEmpty(t *testing.T) {
	placeholder := []Slice{{Label: NoDataLabel, Value: 1}}

	for name, got := range map[string][]Slice{
		"channel":    ByChannel(nil),
		"offerType":  ByOfferType([]models.Offer{}),
		"csat":       ByCSAT(nil),
		"conversion": ByConversion(nil, now),
	} {
		if !reflect.DeepEqual(got, placeholder) {
			t.Errorf("%s: expected single placeholder, got %+v", name, got)
		}
	}

	// Offers exist but none carries a rating.
	if got := ByCSAT([]models.Offer{offerOn(now)}); !reflect.DeepEqual(got, placeholder) {
		t.Errorf("Expected placeholder for unrated offers, got %+v", got)
	}
}

func TestConversionStatus_PendingBoundary(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want Status
	}{
		{"today", now, StatusPending},
		{"29 days ago", now.AddDate(0, 0, -29), StatusPending},
		{"29 days ago late evening", time.Date(2025, 4, 15, 23, 59, 0, 0, time.UTC), StatusPending},
		{"exactly 30 days ago", now.AddDate(0, 0, -30), StatusNotConverted},
		{"30 days ago early morning", time.Date(2025, 4, 14, 0, 1, 0, 0, time.UTC), StatusNotConverted},
		{"a year ago", now.AddDate(-1, 0, 0), StatusNotConverted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConversionStatus(offerOn(tt.date), now); got != tt.want {
				t.Errorf("ConversionStatus = %s, want %s", got, tt.want)
			}
		})
	}

	converted := offerOn(now.AddDate(0, 0, -90))
	converted.Conversion = models.ConvertedOn(now.AddDate(0, 0, -80))
	if got := ConversionStatus(converted, now); got != StatusConverted {
		t.Errorf("Expected converted, got %s", got)
	}
}

func TestBreakdowns(t *testing.T) {
	offers := []models.Offer{
		{Channel: "Chat", OfferType: "Upgrade", Date: now, CSAT: models.CSATNegative},
		{Channel: "Phone", OfferType: "Upgrade", Date: now, CSAT: models.CSATPositive, Conversion: models.ConvertedOn(now)},
		{Channel: "Phone", OfferType: "Retention", Date: now.AddDate(0, 0, -40)},
		{Channel: "Email", OfferType: "Add-on", Date: now.AddDate(0, 0, -2), CSAT: models.CSATPositive},
	}

	wantChannels := []Slice{{"Phone", 2}, {"Chat", 1}, {"Email", 1}}
	if got := ByChannel(offers); !reflect.DeepEqual(got, wantChannels) {
		t.Errorf("ByChannel = %+v, want %+v", got, wantChannels)
	}

	wantTypes := []Slice{{"Upgrade", 2}, {"Add-on", 1}, {"Retention", 1}}
	if got := ByOfferType(offers); !reflect.DeepEqual(got, wantTypes) {
		t.Errorf("ByOfferType = %+v, want %+v", got, wantTypes)
	}

	wantCSAT := []Slice{{"Positive", 2}, {"Negative", 1}}
	if got := ByCSAT(offers); !reflect.DeepEqual(got, wantCSAT) {
		t.Errorf("ByCSAT = %+v, want %+v", got, wantCSAT)
	}

	wantConversion := []Slice{{"Converted", 1}, {"Pending", 2}, {"Not Converted", 1}}
	if got := ByConversion(offers, now); !reflect.DeepEqual(got, wantConversion) {
		t.Errorf("ByConversion = %+v, want %+v", got, wantConversion)
	}
}

func TestSeries_WeekView(t *testing.T) {
	sunday := time.Date(2025, 5, 11, 0, 0, 0, 0, time.UTC)
	saturdayNight := time.Date(2025, 5, 17, 23, 59, 59, 0, time.UTC)
	offers := []models.Offer{
		offerOn(sunday),
		offerOn(sunday.Add(5 * time.Hour)),
		offerOn(now),
		offerOn(saturdayNight),
		offerOn(sunday.Add(-time.Second)),
	}
	offers[2].Conversion = models.ConvertedOn(now)

	points, err := Series(offers, ViewWeek, now, 5)
	if err != nil {
		t.Fatalf("Series failed: %v", err)
	}
	if len(points) != 7 {
		t.Fatalf("Expected 7 day buckets, got %d", len(points))
	}

	wantCounts := []int{2, 0, 0, 1, 0, 0, 1}
	for i, p := range points {
		if p.Count != wantCounts[i] {
			t.Errorf("Bucket %d (%s): count %d, want %d", i, p.Label, p.Count, wantCounts[i])
		}
		if p.Goal != 5 {
			t.Errorf("Bucket %d: goal %d, want daily goal 5", i, p.Goal)
		}
	}
	if points[3].Converted != 1 {
		t.Errorf("Expected one conversion on Wednesday, got %d", points[3].Converted)
	}
	if points[0].Label != "May 11" {
		t.Errorf("Unexpected first label %q", points[0].Label)
	}
}

func TestSeries_QuarterViewUsesWeeklyGoal(t *testing.T) {
	points, err := Series(nil, ViewQuarter, now, 3)
	if err != nil {
		t.Fatalf("Series failed: %v", err)
	}
	if len(points) != 14 {
		t.Fatalf("Expected 14 week buckets in Q2 2025, got %d", len(points))
	}
	for _, p := range points {
		if p.Goal != 21 {
			t.Errorf("Week %s: goal %d, want 21", p.Label, p.Goal)
		}
	}

	first, last := points[0], points[len(points)-1]
	if !first.Start.Equal(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("First bucket must be clipped to the quarter start, got %v", first.Start)
	}
	if !last.End.Add(time.Nanosecond).Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Last bucket must be clipped to the quarter end, got %v", last.End)
	}
}

func TestSeries_YearAndErrors(t *testing.T) {
	points, err := Series([]models.Offer{offerOn(now)}, ViewYear, now, 2)
	if err != nil {
		t.Fatalf("Series failed: %v", err)
	}
	if len(points) != 12 {
		t.Fatalf("Expected 12 months, got %d", len(points))
	}
	if points[0].Goal != 62 || points[1].Goal != 56 {
		t.Errorf("Expected month goals 62 and 56, got %d and %d", points[0].Goal, points[1].Goal)
	}
	if points[4].Count != 1 || points[4].Label != "May 2025" {
		t.Errorf("Expected the May bucket to hold the offer, got %+v", points[4])
	}

	if _, err := Series(nil, "decade", now, 1); err == nil {
		t.Error("Expected error for unknown view")
	}
	if _, err := SeriesRange(nil, now, now.AddDate(0, 0, -1), Day, 1); err == nil {
		t.Error("Expected error for inverted range")
	}
	if _, err := SeriesRange(nil, now, now, "hour", 1); err == nil {
		t.Error("Expected error for unknown bucket")
	}
}

func TestSeriesRange_Quarters(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)
	points, err := SeriesRange([]models.Offer{offerOn(now)}, start, end, Quarter, 1)
	if err != nil {
		t.Fatalf("SeriesRange failed: %v", err)
	}
	if len(points) != 4 {
		t.Fatalf("Expected 4 quarters, got %d", len(points))
	}
	if points[1].Label != "Q2 2025" || points[1].Count != 1 || points[1].Goal != 91 {
		t.Errorf("Unexpected Q2 bucket: %+v", points[1])
	}
}

func TestSummarize(t *testing.T) {
	overdue := now.Add(-time.Hour)
	offers := []models.Offer{
		{Date: now.Add(-2 * time.Hour), CSAT: models.CSATPositive, Conversion: models.ConvertedOn(now)},
		{Date: now.Add(-time.Hour), FollowupDate: &overdue},
		{Date: now.AddDate(0, 0, -1), CSAT: models.CSATNeutral},
		{Date: now.AddDate(0, 0, -45), CSAT: models.CSATNegative},
	}

	got := Summarize(offers, now, 4, []int{1, 2, 3, 4, 5})

	if got.Total != 4 || got.Today != 2 || got.ThisWeek != 3 {
		t.Errorf("Unexpected counts: %+v", got)
	}
	if got.GoalProgress != 50 {
		t.Errorf("GoalProgress = %v, want 50", got.GoalProgress)
	}
	if got.Converted != 1 || got.Pending != 2 || got.NotConverted != 1 || got.ConversionRate != 25 {
		t.Errorf("Unexpected conversion numbers: %+v", got)
	}
	if got.Positive != 1 || got.Neutral != 1 || got.Negative != 1 {
		t.Errorf("Unexpected CSAT numbers: %+v", got)
	}
	if got.PendingFollowups != 1 || got.OverdueFollowups != 1 {
		t.Errorf("Unexpected follow-up numbers: %+v", got)
	}
	if got.Streak != 0 {
		t.Errorf("Expected no streak when the goal was never met, got %d", got.Streak)
	}
}
