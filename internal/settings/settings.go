// Package settings owns the user profile, the channel and offer-type vocabularies and the
// nested preference bag. Changes are applied in memory immediately and persisted either
// right away or through a debounced autosave.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"offer-tracker/internal/events"
	"offer-tracker/internal/models"
	"offer-tracker/internal/storage"
	"offer-tracker/internal/validation"
)

// ErrLabelNotFound is returned when removing a channel or offer type that is not configured.
var ErrLabelNotFound = errors.New("label not found")

// Store persists the settings bag.
type Store interface {
	GetUserSettings(ctx context.Context) models.UserSettings
	SaveUserSettings(ctx context.Context, settings models.UserSettings) storage.SaveResult
}

// Service is the user/settings state.
type Service struct {
	mu      sync.Mutex
	current models.UserSettings
	dirty   bool
	timer   *time.Timer

	// saveMu keeps snapshots reaching the store in the order they were taken.
	saveMu sync.Mutex

	store  Store
	delay  time.Duration
	events *events.Manager
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithAutosaveDelay coalesces writes made within d of each other. Zero persists every change.
func WithAutosaveDelay(d time.Duration) Option {
	return func(s *Service) { s.delay = d }
}

// WithEvents publishes settings.updated events to m.
func WithEvents(m *events.Manager) Option {
	return func(s *Service) { s.events = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a service holding the default settings until Load runs.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		current: models.DefaultUserSettings(),
		store:   store,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory settings with the persisted ones.
func (s *Service) Load(ctx context.Context) {
	loaded := s.store.GetUserSettings(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = loaded.Clone()
	s.dirty = false
}

// Get returns a copy of the current settings.
func (s *Service) Get() models.UserSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// UpdateUser sets the user name and daily goal. An invalid goal leaves state unchanged.
func (s *Service) UpdateUser(ctx context.Context, name string, goal int) (models.UserSettings, error) {
	if err := validation.ValidateDailyGoal(goal); err != nil {
		return s.Get(), err
	}
	return s.mutate(ctx, func(u *models.UserSettings) error {
		u.UserName = validation.SanitizeString(name)
		u.DailyGoal = goal
		return nil
	})
}

// UpdateSettings shallow-merges patch into the nested settings object.
func (s *Service) UpdateSettings(ctx context.Context, patch models.SettingsPatch) (models.UserSettings, error) {
	if err := validatePatch(patch); err != nil {
		return s.Get(), err
	}
	return s.mutate(ctx, func(u *models.UserSettings) error {
		applyPatch(&u.Settings, patch)
		return nil
	})
}

// ToggleWorkday adds or removes a day-of-week index. Removing the last remaining day is
// refused silently and the unchanged set is returned.
func (s *Service) ToggleWorkday(ctx context.Context, day int) ([]int, error) {
	if err := validation.ValidateDayIndex(day); err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, func(u *models.UserSettings) error {
		days := u.Settings.Streak.Workdays
		i := slices.Index(days, day)
		switch {
		case i < 0:
			days = append(days, day)
			slices.Sort(days)
		case len(days) == 1:
			return errUnchanged
		default:
			days = slices.Delete(days, i, i+1)
		}
		u.Settings.Streak.Workdays = days
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated.Settings.Streak.Workdays, nil
}

// AddChannel appends a channel unless an equal one (ignoring case) exists.
func (s *Service) AddChannel(ctx context.Context, name string) (models.UserSettings, error) {
	return s.addLabel(ctx, name, "channel", func(u *models.UserSettings) *[]string { return &u.Channels })
}

// RemoveChannel removes a channel, matching case-insensitively.
func (s *Service) RemoveChannel(ctx context.Context, name string) (models.UserSettings, error) {
	return s.removeLabel(ctx, name, func(u *models.UserSettings) *[]string { return &u.Channels })
}

// AddOfferType appends an offer type unless an equal one (ignoring case) exists.
func (s *Service) AddOfferType(ctx context.Context, name string) (models.UserSettings, error) {
	return s.addLabel(ctx, name, "offerType", func(u *models.UserSettings) *[]string { return &u.OfferTypes })
}

// RemoveOfferType removes an offer type, matching case-insensitively.
func (s *Service) RemoveOfferType(ctx context.Context, name string) (models.UserSettings, error) {
	return s.removeLabel(ctx, name, func(u *models.UserSettings) *[]string { return &u.OfferTypes })
}

// Reset restores defaults in memory without writing and drops any pending autosave.
// It waits for a save already in flight; clear, when not nil, then runs before any
// new save can start.
func (s *Service) Reset(clear func()) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.current = models.DefaultUserSettings()
	s.dirty = false
	if clear != nil {
		clear()
	}
}

// Flush writes a pending autosave immediately.
func (s *Service) Flush(ctx context.Context) storage.SaveResult {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return storage.SaveResult{}
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	snapshot := s.current.Clone()
	s.dirty = false
	s.mu.Unlock()

	res := s.store.SaveUserSettings(ctx, snapshot)
	if !res.OK() {
		s.logger.Error("settings not persisted", "error", res.Err())
	}
	return res
}

// Close flushes any pending write.
func (s *Service) Close(ctx context.Context) {
	s.Flush(ctx)
}

var errUnchanged = errors.New("unchanged")

// mutate applies fn to a copy of the settings, commits it, and schedules persistence.
// fn returning errUnchanged leaves everything as is without reporting an error.
func (s *Service) mutate(ctx context.Context, fn func(*models.UserSettings) error) (models.UserSettings, error) {
	s.mu.Lock()
	next := s.current.Clone()
	if err := fn(&next); err != nil {
		current := s.current.Clone()
		s.mu.Unlock()
		if errors.Is(err, errUnchanged) {
			return current, nil
		}
		return current, err
	}
	s.current = next
	s.dirty = true

	immediate := s.delay <= 0
	if !immediate {
		if s.timer == nil {
			s.timer = time.AfterFunc(s.delay, func() { s.Flush(context.Background()) })
		} else {
			s.timer.Reset(s.delay)
		}
	}
	s.mu.Unlock()

	if immediate {
		s.Flush(ctx)
	}

	updated := next.Clone()
	s.events.PublishSettingsUpdated(ctx, updated)
	return updated, nil
}

func (s *Service) addLabel(ctx context.Context, name, field string, list func(*models.UserSettings) *[]string) (models.UserSettings, error) {
	name = validation.SanitizeString(name)
	if err := validation.ValidateLabel(name, field); err != nil {
		return s.Get(), err
	}
	return s.mutate(ctx, func(u *models.UserSettings) error {
		labels := list(u)
		if indexFold(*labels, name) >= 0 {
			return errUnchanged
		}
		*labels = append(*labels, name)
		return nil
	})
}

func (s *Service) removeLabel(ctx context.Context, name string, list func(*models.UserSettings) *[]string) (models.UserSettings, error) {
	name = validation.SanitizeString(name)
	return s.mutate(ctx, func(u *models.UserSettings) error {
		labels := list(u)
		i := indexFold(*labels, name)
		if i < 0 {
			return fmt.Errorf("remove %q: %w", name, ErrLabelNotFound)
		}
		*labels = slices.Delete(*labels, i, i+1)
		return nil
	})
}

func indexFold(list []string, name string) int {
	return slices.IndexFunc(list, func(v string) bool { return strings.EqualFold(v, name) })
}

func validatePatch(p models.SettingsPatch) error {
	if p.FontSize != nil {
		if err := validation.ValidateOneOf(*p.FontSize, "fontSize", validation.FontSizes); err != nil {
			return err
		}
	}
	if p.Density != nil {
		if err := validation.ValidateOneOf(*p.Density, "density", validation.Densities); err != nil {
			return err
		}
	}
	if p.Notifications != nil && p.Notifications.ReminderTime != "" {
		if err := validation.ValidateClock(p.Notifications.ReminderTime, "reminderTime"); err != nil {
			return err
		}
	}
	if p.Streak != nil {
		if err := validation.ValidateWorkdays(p.Streak.Workdays); err != nil {
			return err
		}
	}
	return nil
}

func applyPatch(s *models.Settings, p models.SettingsPatch) {
	if p.GreetingStyle != nil {
		s.GreetingStyle = *p.GreetingStyle
	}
	if p.FontSize != nil {
		s.FontSize = *p.FontSize
	}
	if p.Density != nil {
		s.Density = *p.Density
	}
	if p.ShowAppearancePreview != nil {
		s.ShowAppearancePreview = *p.ShowAppearancePreview
	}
	if p.Notifications != nil {
		s.Notifications = *p.Notifications
	}
	if p.Streak != nil {
		streak := *p.Streak
		streak.Workdays = slices.Clone(streak.Workdays)
		slices.Sort(streak.Workdays)
		s.Streak = streak
	}
}
