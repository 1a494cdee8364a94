package settings

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"offer-tracker/internal/events"
	"offer-tracker/internal/legacy"
	"offer-tracker/internal/models"
	"offer-tracker/internal/storage"
	"offer-tracker/internal/validation"
)

type recordingStore struct {
	mu    sync.Mutex
	saves []models.UserSettings
	seed  models.UserSettings
}

func (r *recordingStore) GetUserSettings(context.Context) models.UserSettings {
	return r.seed
}

func (r *recordingStore) SaveUserSettings(_ context.Context, s models.UserSettings) storage.SaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, s)
	return storage.SaveResult{}
}

func (r *recordingStore) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func (r *recordingStore) last() models.UserSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves[len(r.saves)-1]
}

func withWorkdays(days ...int) *recordingStore {
	seed := models.DefaultUserSettings()
	seed.Settings.Streak.Workdays = days
	return &recordingStore{seed: seed}
}

func TestToggleWorkday_LastDayIsKept(t *testing.T) {
	store := withWorkdays(3)
	svc := NewService(store)
	svc.Load(context.Background())

	days, err := svc.ToggleWorkday(context.Background(), 3)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !reflect.DeepEqual(days, []int{3}) {
		t.Errorf("Expected [3], got %v", days)
	}
	if got := svc.Get().Settings.Streak.Workdays; len(got) != 1 {
		t.Errorf("Workdays must never become empty, got %v", got)
	}
	if store.count() != 0 {
		t.Error("Refused toggle must not persist")
	}
}

func TestToggleWorkday_AddAndRemove(t *testing.T) {
	store := withWorkdays(1, 5)
	svc := NewService(store)
	ctx := context.Background()
	svc.Load(ctx)

	days, err := svc.ToggleWorkday(ctx, 3)
	if err != nil {
		t.Fatalf("ToggleWorkday failed: %v", err)
	}
	if !reflect.DeepEqual(days, []int{1, 3, 5}) {
		t.Errorf("Expected sorted [1 3 5], got %v", days)
	}

	days, _ = svc.ToggleWorkday(ctx, 1)
	if !reflect.DeepEqual(days, []int{3, 5}) {
		t.Errorf("Expected [3 5], got %v", days)
	}
	if !reflect.DeepEqual(store.last().Settings.Streak.Workdays, []int{3, 5}) {
		t.Errorf("Expected persisted [3 5], got %v", store.last().Settings.Streak.Workdays)
	}

	if _, err := svc.ToggleWorkday(ctx, 7); err == nil {
		t.Error("Expected error for day index 7")
	}
}

func TestUpdateUser_RejectsInvalidGoal(t *testing.T) {
	store := &recordingStore{seed: models.DefaultUserSettings()}
	svc := NewService(store)
	ctx := context.Background()
	svc.Load(ctx)

	got, err := svc.UpdateUser(ctx, "Robin", 0)
	var vErr *validation.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "dailyGoal" {
		t.Fatalf("Expected dailyGoal validation error, got %v", err)
	}
	if got.DailyGoal != 5 || got.UserName != "" {
		t.Errorf("State must be unchanged, got %+v", got)
	}

	got, err = svc.UpdateUser(ctx, "  Robin ", 12)
	if err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if got.UserName != "Robin" || got.DailyGoal != 12 {
		t.Errorf("Unexpected settings: %+v", got)
	}
	if store.count() != 1 {
		t.Errorf("Expected one save, got %d", store.count())
	}
}

func TestUpdateSettings_ShallowMerge(t *testing.T) {
	store := &recordingStore{seed: models.DefaultUserSettings()}
	svc := NewService(store)
	ctx := context.Background()
	svc.Load(ctx)

	large := "large"
	got, err := svc.UpdateSettings(ctx, models.SettingsPatch{
		FontSize:      &large,
		Notifications: &models.NotificationSettings{FollowupReminders: false, ReminderTime: "08:30"},
	})
	if err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}

	want := models.DefaultUserSettings().Settings
	want.FontSize = "large"
	want.Notifications = models.NotificationSettings{ReminderTime: "08:30"}
	if !reflect.DeepEqual(got.Settings, want) {
		t.Errorf("Merge mismatch:\n got  %+v\n want %+v", got.Settings, want)
	}
	if !reflect.DeepEqual(store.last(), got) {
		t.Error("Expected the merged whole to be persisted")
	}

	huge := "huge"
	if _, err := svc.UpdateSettings(ctx, models.SettingsPatch{FontSize: &huge}); err == nil {
		t.Error("Expected invalid font size to be rejected")
	}
	if _, err := svc.UpdateSettings(ctx, models.SettingsPatch{Streak: &models.StreakSettings{}}); err == nil {
		t.Error("Expected empty workdays to be rejected")
	}
	if svc.Get().Settings.FontSize != "large" {
		t.Error("Rejected patches must leave state unchanged")
	}
}

func TestVocabularies(t *testing.T) {
	store := &recordingStore{seed: models.DefaultUserSettings()}
	svc := NewService(store)
	ctx := context.Background()
	svc.Load(ctx)

	got, err := svc.AddChannel(ctx, " Social ")
	if err != nil {
		t.Fatalf("AddChannel failed: %v", err)
	}
	if got.Channels[len(got.Channels)-1] != "Social" {
		t.Errorf("Expected trimmed Social appended, got %v", got.Channels)
	}

	saves := store.count()
	got, _ = svc.AddChannel(ctx, "phone")
	if len(got.Channels) != 5 || store.count() != saves {
		t.Errorf("Case-insensitive duplicate must be ignored, got %v", got.Channels)
	}

	if _, err := svc.AddOfferType(ctx, "   "); err == nil {
		t.Error("Expected empty offer type to be rejected")
	}

	got, err = svc.RemoveOfferType(ctx, "add-on")
	if err != nil {
		t.Fatalf("RemoveOfferType failed: %v", err)
	}
	if !reflect.DeepEqual(got.OfferTypes, []string{"Upgrade", "New Service", "Retention"}) {
		t.Errorf("Unexpected offer types: %v", got.OfferTypes)
	}

	if _, err := svc.RemoveChannel(ctx, "Fax"); !errors.Is(err, ErrLabelNotFound) {
		t.Errorf("Expected ErrLabelNotFound, got %v", err)
	}
}

func TestAutosave_CoalescesWrites(t *testing.T) {
	store := &recordingStore{seed: models.DefaultUserSettings()}
	svc := NewService(store, WithAutosaveDelay(time.Hour))
	ctx := context.Background()
	svc.Load(ctx)

	_, _ = svc.UpdateUser(ctx, "Kim", 6)
	_, _ = svc.AddChannel(ctx, "SMS")
	_, _ = svc.ToggleWorkday(ctx, 6)

	if store.count() != 0 {
		t.Fatalf("Expected no writes before the delay, got %d", store.count())
	}

	res := svc.Flush(ctx)
	if !res.OK() {
		t.Fatalf("Flush failed: %+v", res)
	}
	if store.count() != 1 {
		t.Fatalf("Expected one coalesced write, got %d", store.count())
	}
	last := store.last()
	if last.UserName != "Kim" || last.Channels[len(last.Channels)-1] != "SMS" ||
		!reflect.DeepEqual(last.Settings.Streak.Workdays, []int{1, 2, 3, 4, 5, 6}) {
		t.Errorf("Flushed snapshot is missing changes: %+v", last)
	}

	svc.Flush(ctx)
	if store.count() != 1 {
		t.Error("Flush without pending changes must not write")
	}
}

func TestAutosave_TimerFires(t *testing.T) {
	store := &recordingStore{seed: models.DefaultUserSettings()}
	svc := NewService(store, WithAutosaveDelay(10*time.Millisecond))
	ctx := context.Background()
	svc.Load(ctx)
	defer svc.Close(ctx)

	_, _ = svc.UpdateUser(ctx, "Lee", 4)

	deadline := time.Now().Add(2 * time.Second)
	for store.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.count() != 1 {
		t.Fatalf("Expected the debounced write, got %d writes", store.count())
	}
	if store.last().UserName != "Lee" {
		t.Errorf("Unexpected persisted settings: %+v", store.last())
	}
}

func TestSettingsUpdatedEvent(t *testing.T) {
	store := &recordingStore{seed: models.DefaultUserSettings()}
	manager := events.NewManager(true)
	received := make(chan models.UserSettings, 1)
	manager.Subscribe(events.EventSettingsUpdated, func(_ context.Context, e events.Event) error {
		received <- e.Data.(events.SettingsData).Settings
		return nil
	})

	svc := NewService(store, WithEvents(manager))
	ctx := context.Background()
	svc.Load(ctx)
	_, _ = svc.UpdateUser(ctx, "Ari", 9)

	select {
	case got := <-received:
		if got.DailyGoal != 9 {
			t.Errorf("Expected goal 9 in event, got %d", got.DailyGoal)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected settings.updated event")
	}
}

func TestPersistsThroughLegacyFallback(t *testing.T) {
	fallback := legacy.NewMemoryStore()
	backing := storage.NewService(failingPrimary{}, fallback)
	ctx := context.Background()

	svc := NewService(backing)
	svc.Load(ctx)
	_, _ = svc.ToggleWorkday(ctx, 0)

	reloaded := NewService(backing)
	reloaded.Load(ctx)
	if !reflect.DeepEqual(reloaded.Get().Settings.Streak.Workdays, []int{0, 1, 2, 3, 4, 5}) {
		t.Errorf("Expected workdays to survive via the legacy tier, got %v", reloaded.Get().Settings.Streak.Workdays)
	}
}

var errDown = errors.New("primary down")

type failingPrimary struct{}

func (failingPrimary) LoadOffers(context.Context) ([]models.Offer, error) { return nil, errDown }
func (failingPrimary) ReplaceOffers(context.Context, []models.Offer) error { return errDown }
func (failingPrimary) LoadUserSettings(context.Context) (models.UserSettings, error) {
	return models.UserSettings{}, errDown
}
func (failingPrimary) SaveUserSettings(context.Context, models.UserSettings) error { return errDown }
func (failingPrimary) GetPreference(context.Context, string, any) error { return errDown }
func (failingPrimary) SetPreference(context.Context, string, any) error { return errDown }
func (failingPrimary) Clear(context.Context) error { return errDown }

// gatedStore holds SaveUserSettings until release is closed and logs the order of
// saves against other recorded steps.
type gatedStore struct {
	mu      sync.Mutex
	steps   []string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) GetUserSettings(context.Context) models.UserSettings {
	return models.DefaultUserSettings()
}

func (g *gatedStore) SaveUserSettings(context.Context, models.UserSettings) storage.SaveResult {
	g.entered <- struct{}{}
	<-g.release
	g.record("save")
	return storage.SaveResult{}
}

func (g *gatedStore) record(step string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.steps = append(g.steps, step)
}

func TestReset_WaitsForSaveInFlight(t *testing.T) {
	store := &gatedStore{entered: make(chan struct{}, 1), release: make(chan struct{})}
	svc := NewService(store, WithAutosaveDelay(time.Hour))
	ctx := context.Background()
	svc.Load(ctx)

	if _, err := svc.UpdateUser(ctx, "Sam", 9); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	go svc.Flush(ctx)
	<-store.entered

	done := make(chan struct{})
	go func() {
		svc.Reset(func() { store.record("clear") })
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Reset must wait for the save in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	<-done

	store.mu.Lock()
	steps := append([]string(nil), store.steps...)
	store.mu.Unlock()
	if !reflect.DeepEqual(steps, []string{"save", "clear"}) {
		t.Errorf("Expected the clear to follow the save, got %v", steps)
	}
	if got := svc.Get(); got.UserName != models.DefaultUserSettings().UserName || got.DailyGoal != models.DefaultUserSettings().DailyGoal {
		t.Errorf("Expected defaults after reset, got %+v", got)
	}
}

func TestReset_DropsPendingAutosave(t *testing.T) {
	store := &recordingStore{seed: models.DefaultUserSettings()}
	svc := NewService(store, WithAutosaveDelay(time.Hour))
	ctx := context.Background()
	svc.Load(ctx)

	_, _ = svc.UpdateUser(ctx, "Sam", 9)

	cleared := false
	svc.Reset(func() { cleared = true })
	if !cleared {
		t.Fatal("Expected the clear callback to run")
	}

	svc.Flush(ctx)
	if store.count() != 0 {
		t.Errorf("Expected no write after reset, got %d", store.count())
	}
}
