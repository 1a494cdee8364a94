package database

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"offer-tracker/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "offers.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEmptyStores(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.LoadOffers(ctx); !errors.Is(err, ErrEmpty) {
		t.Errorf("Expected ErrEmpty for offers, got %v", err)
	}
	if _, err := db.LoadUserSettings(ctx); !errors.Is(err, ErrEmpty) {
		t.Errorf("Expected ErrEmpty for settings, got %v", err)
	}
	var theme string
	if err := db.GetPreference(ctx, PrefTheme, &theme); !errors.Is(err, ErrEmpty) {
		t.Errorf("Expected ErrEmpty for preference, got %v", err)
	}
}

func TestReplaceOffers_PreservesOrderAndFields(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	date := time.Date(2025, 5, 14, 10, 0, 0, 0, time.UTC)
	followup := date.AddDate(0, 0, 3)
	converted := date.AddDate(0, 0, 1)

	in := []models.Offer{
		{
			ID:           uuid.New().String(),
			CaseNumber:   "CASE-2",
			Channel:      "Chat",
			OfferType:    "Add-on",
			Date:         date,
			FollowupDate: &followup,
			Conversion:   models.ConvertedOn(converted),
			CSAT:         models.CSATPositive,
			CSATComment:  "happy",
		},
		{
			ID:         uuid.New().String(),
			CaseNumber: "CASE-1",
			Channel:    "Phone",
			OfferType:  "Upgrade",
			Date:       date.Add(-time.Hour),
			Notes:      "call back",
		},
	}

	if err := db.ReplaceOffers(ctx, in); err != nil {
		t.Fatalf("ReplaceOffers failed: %v", err)
	}

	out, err := db.LoadOffers(ctx)
	if err != nil {
		t.Fatalf("LoadOffers failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Expected 2 offers, got %d", len(out))
	}
	if out[0].CaseNumber != "CASE-2" || out[1].CaseNumber != "CASE-1" {
		t.Errorf("Expected saved order to be kept, got %s, %s", out[0].CaseNumber, out[1].CaseNumber)
	}

	first := out[0]
	if first.FollowupDate == nil || !first.FollowupDate.Equal(followup) {
		t.Errorf("Expected follow-up %v, got %v", followup, first.FollowupDate)
	}
	if d, ok := first.Conversion.Date(); !ok || !d.Equal(converted) {
		t.Errorf("Expected conversion on %v, got %v (%v)", converted, d, ok)
	}
	if first.CSAT != models.CSATPositive || first.CSATComment != "happy" {
		t.Errorf("Expected csat to round trip, got %s %q", first.CSAT, first.CSATComment)
	}
	if out[1].Conversion.Converted() || out[1].FollowupDate != nil {
		t.Error("Expected second offer to have no conversion or follow-up")
	}

	// A second replace drops what is no longer in the collection.
	if err := db.ReplaceOffers(ctx, in[1:]); err != nil {
		t.Fatalf("ReplaceOffers failed: %v", err)
	}
	out, err = db.LoadOffers(ctx)
	if err != nil {
		t.Fatalf("LoadOffers failed: %v", err)
	}
	if len(out) != 1 || out[0].ID != in[1].ID {
		t.Errorf("Expected only %s to remain, got %+v", in[1].ID, out)
	}
}

func TestUserSettings_Upsert(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	settings := models.DefaultUserSettings()
	settings.UserName = "Dana"
	if err := db.SaveUserSettings(ctx, settings); err != nil {
		t.Fatalf("SaveUserSettings failed: %v", err)
	}

	settings.DailyGoal = 12
	if err := db.SaveUserSettings(ctx, settings); err != nil {
		t.Fatalf("SaveUserSettings failed: %v", err)
	}

	got, err := db.LoadUserSettings(ctx)
	if err != nil {
		t.Fatalf("LoadUserSettings failed: %v", err)
	}
	if !reflect.DeepEqual(got, settings) {
		t.Errorf("Expected %+v, got %+v", settings, got)
	}
}

func TestPreferencesAndClear(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	prefs := models.DefaultDashboardPreferences()
	prefs.DefaultView = "month"
	if err := db.SetPreference(ctx, PrefDashboardPreferences, prefs); err != nil {
		t.Fatalf("SetPreference failed: %v", err)
	}
	if err := db.SetPreference(ctx, PrefTheme, "dark"); err != nil {
		t.Fatalf("SetPreference failed: %v", err)
	}

	var got models.DashboardPreferences
	if err := db.GetPreference(ctx, PrefDashboardPreferences, &got); err != nil {
		t.Fatalf("GetPreference failed: %v", err)
	}
	if !reflect.DeepEqual(got, prefs) {
		t.Errorf("Expected %+v, got %+v", prefs, got)
	}

	if err := db.ReplaceOffers(ctx, []models.Offer{{ID: "a", CaseNumber: "C", Channel: "Phone", OfferType: "Upgrade", Date: time.Now()}}); err != nil {
		t.Fatalf("ReplaceOffers failed: %v", err)
	}
	if err := db.SaveUserSettings(ctx, models.DefaultUserSettings()); err != nil {
		t.Fatalf("SaveUserSettings failed: %v", err)
	}

	if err := db.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if _, err := db.LoadOffers(ctx); !errors.Is(err, ErrEmpty) {
		t.Errorf("Expected offers cleared, got %v", err)
	}
	if _, err := db.LoadUserSettings(ctx); !errors.Is(err, ErrEmpty) {
		t.Errorf("Expected settings cleared, got %v", err)
	}
	var theme string
	if err := db.GetPreference(ctx, PrefTheme, &theme); !errors.Is(err, ErrEmpty) {
		t.Errorf("Expected preferences cleared, got %v", err)
	}
}
