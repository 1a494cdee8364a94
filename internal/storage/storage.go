// Package storage is the two-tier persistence facade.
//
// Every domain (offers, user settings, theme, dashboard preferences) is read from the
// primary store first. When the primary read fails, or the primary holds nothing, the
// value is read from the legacy flat-key store instead. Every write goes to the primary
// store and is then mirrored into the legacy store regardless of the primary outcome, so
// the fallback reader always sees the latest write.
//
// Storage failures are logged and reported through SaveResult; they are never returned
// as errors, so callers can treat persistence as best effort.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"offer-tracker/internal/database"
	"offer-tracker/internal/legacy"
	"offer-tracker/internal/models"
	"offer-tracker/internal/tracing"
)

// DefaultTheme is returned when no theme has been saved.
const DefaultTheme = "light"

// Primary is the structured store tried first on every read.
type Primary interface {
	LoadOffers(ctx context.Context) ([]models.Offer, error)
	ReplaceOffers(ctx context.Context, offers []models.Offer) error
	LoadUserSettings(ctx context.Context) (models.UserSettings, error)
	SaveUserSettings(ctx context.Context, settings models.UserSettings) error
	GetPreference(ctx context.Context, key string, dest any) error
	SetPreference(ctx context.Context, key string, value any) error
	Clear(ctx context.Context) error
}

// SaveResult reports the outcome of each tier of a write.
type SaveResult struct {
	PrimaryErr error
	LegacyErr  error
}

// OK reports whether at least one tier holds the write.
func (r SaveResult) OK() bool {
	return r.PrimaryErr == nil || r.LegacyErr == nil
}

// Degraded reports whether the write only reached the fallback tier.
func (r SaveResult) Degraded() bool {
	return r.PrimaryErr != nil && r.LegacyErr == nil
}

// Err returns the combined failure when neither tier accepted the write.
func (r SaveResult) Err() error {
	if r.OK() {
		return nil
	}
	return errors.Join(r.PrimaryErr, r.LegacyErr)
}

// Service is the storage facade.
type Service struct {
	primary Primary
	legacy  legacy.Store
	logger  *slog.Logger
	tracer  *tracing.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for storage failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a storage facade over a primary and a legacy store.
func NewService(primary Primary, fallback legacy.Store, opts ...Option) *Service {
	s := &Service{
		primary: primary,
		legacy:  fallback,
		logger:  slog.Default(),
		tracer:  tracing.GetTracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOffers returns the saved offer collection, or an empty collection.
func (s *Service) GetOffers(ctx context.Context) []models.Offer {
	ctx, span := s.tracer.StartSpan(ctx, "storage.GetOffers")
	defer span.End()

	offers, err := s.primary.LoadOffers(ctx)
	if err == nil && len(offers) > 0 {
		span.SetAttributes(attribute.String("storage.tier", "primary"), attribute.Int("offers.count", len(offers)))
		return offers
	}
	s.logPrimaryMiss("offers", err)

	span.SetAttributes(attribute.String("storage.tier", "legacy"))
	var fallback []models.Offer
	if err := legacy.GetJSON(ctx, s.legacy, legacy.KeyOffers, &fallback); err != nil {
		if !errors.Is(err, legacy.ErrNotFound) {
			s.logger.Error("legacy read failed", "domain", "offers", "error", err)
		}
		return []models.Offer{}
	}
	if fallback == nil {
		fallback = []models.Offer{}
	}
	return fallback
}

// SaveOffers stores the whole collection in both tiers.
func (s *Service) SaveOffers(ctx context.Context, offers []models.Offer) SaveResult {
	ctx, span := s.tracer.StartSpan(ctx, "storage.SaveOffers")
	defer span.End()
	span.SetAttributes(attribute.Int("offers.count", len(offers)))

	if offers == nil {
		offers = []models.Offer{}
	}

	var res SaveResult
	res.PrimaryErr = s.primary.ReplaceOffers(ctx, offers)
	res.LegacyErr = legacy.SetJSON(ctx, s.legacy, legacy.KeyOffers, offers)
	return s.finish(span, "offers", res)
}

// GetUserSettings returns the saved user settings, filled in with defaults.
func (s *Service) GetUserSettings(ctx context.Context) models.UserSettings {
	ctx, span := s.tracer.StartSpan(ctx, "storage.GetUserSettings")
	defer span.End()

	settings, err := s.primary.LoadUserSettings(ctx)
	if err == nil {
		span.SetAttributes(attribute.String("storage.tier", "primary"))
		return normalizeSettings(settings)
	}
	s.logPrimaryMiss("userSettings", err)

	span.SetAttributes(attribute.String("storage.tier", "legacy"))
	return normalizeSettings(s.legacyUserSettings(ctx))
}

// legacyUserSettings rebuilds the bag from the flat keys. The nested settings object
// is read first, then the per-field keys override it.
func (s *Service) legacyUserSettings(ctx context.Context) models.UserSettings {
	settings := models.DefaultUserSettings()

	var nested models.UserSettings
	if err := legacy.GetJSON(ctx, s.legacy, legacy.KeyUserSettings, &nested); err == nil {
		settings = nested
	} else if !errors.Is(err, legacy.ErrNotFound) {
		s.logger.Error("legacy read failed", "key", legacy.KeyUserSettings, "error", err)
	}

	if name, err := s.legacy.Get(ctx, legacy.KeyUserName); err == nil {
		settings.UserName = name
	}
	if raw, err := s.legacy.Get(ctx, legacy.KeyDailyGoal); err == nil {
		if goal, convErr := strconv.Atoi(raw); convErr == nil {
			settings.DailyGoal = goal
		}
	}

	var list []string
	if err := legacy.GetJSON(ctx, s.legacy, legacy.KeyChannels, &list); err == nil {
		settings.Channels = list
	}
	list = nil
	if err := legacy.GetJSON(ctx, s.legacy, legacy.KeyOfferTypes, &list); err == nil {
		settings.OfferTypes = list
	}

	return settings
}

// SaveUserSettings stores the settings bag in both tiers.
func (s *Service) SaveUserSettings(ctx context.Context, settings models.UserSettings) SaveResult {
	ctx, span := s.tracer.StartSpan(ctx, "storage.SaveUserSettings")
	defer span.End()

	var res SaveResult
	res.PrimaryErr = s.primary.SaveUserSettings(ctx, settings)
	res.LegacyErr = errors.Join(
		s.legacy.Set(ctx, legacy.KeyUserName, settings.UserName),
		s.legacy.Set(ctx, legacy.KeyDailyGoal, strconv.Itoa(settings.DailyGoal)),
		legacy.SetJSON(ctx, s.legacy, legacy.KeyChannels, settings.Channels),
		legacy.SetJSON(ctx, s.legacy, legacy.KeyOfferTypes, settings.OfferTypes),
		legacy.SetJSON(ctx, s.legacy, legacy.KeyUserSettings, settings),
	)
	return s.finish(span, "userSettings", res)
}

// GetTheme returns the saved theme name.
func (s *Service) GetTheme(ctx context.Context) string {
	ctx, span := s.tracer.StartSpan(ctx, "storage.GetTheme")
	defer span.End()

	var theme string
	err := s.primary.GetPreference(ctx, database.PrefTheme, &theme)
	if err == nil && theme != "" {
		return theme
	}
	s.logPrimaryMiss("theme", err)

	theme, err = s.legacy.Get(ctx, legacy.KeyTheme)
	if err != nil || theme == "" {
		return DefaultTheme
	}
	return theme
}

// SaveTheme stores the theme name in both tiers.
func (s *Service) SaveTheme(ctx context.Context, theme string) SaveResult {
	ctx, span := s.tracer.StartSpan(ctx, "storage.SaveTheme")
	defer span.End()

	var res SaveResult
	res.PrimaryErr = s.primary.SetPreference(ctx, database.PrefTheme, theme)
	res.LegacyErr = s.legacy.Set(ctx, legacy.KeyTheme, theme)
	return s.finish(span, "theme", res)
}

// GetDashboardPreferences returns the saved dashboard layout.
func (s *Service) GetDashboardPreferences(ctx context.Context) models.DashboardPreferences {
	ctx, span := s.tracer.StartSpan(ctx, "storage.GetDashboardPreferences")
	defer span.End()

	var prefs models.DashboardPreferences
	err := s.primary.GetPreference(ctx, database.PrefDashboardPreferences, &prefs)
	if err == nil {
		return prefs
	}
	s.logPrimaryMiss("dashboardPreferences", err)

	prefs = models.DashboardPreferences{}
	if err := legacy.GetJSON(ctx, s.legacy, legacy.KeyDashboardPreferences, &prefs); err != nil {
		return models.DefaultDashboardPreferences()
	}
	return prefs
}

// SaveDashboardPreferences stores the dashboard layout in both tiers.
func (s *Service) SaveDashboardPreferences(ctx context.Context, prefs models.DashboardPreferences) SaveResult {
	ctx, span := s.tracer.StartSpan(ctx, "storage.SaveDashboardPreferences")
	defer span.End()

	var res SaveResult
	res.PrimaryErr = s.primary.SetPreference(ctx, database.PrefDashboardPreferences, prefs)
	res.LegacyErr = legacy.SetJSON(ctx, s.legacy, legacy.KeyDashboardPreferences, prefs)
	return s.finish(span, "dashboardPreferences", res)
}

// ClearAllData empties the primary store and the whole legacy key space.
func (s *Service) ClearAllData(ctx context.Context) SaveResult {
	ctx, span := s.tracer.StartSpan(ctx, "storage.ClearAllData")
	defer span.End()

	var res SaveResult
	res.PrimaryErr = s.primary.Clear(ctx)

	var errs []error
	for _, key := range legacy.AllKeys {
		if err := s.legacy.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	if err := s.legacy.Clear(ctx); err != nil {
		errs = append(errs, err)
	}
	res.LegacyErr = errors.Join(errs...)

	return s.finish(span, "all", res)
}

func (s *Service) logPrimaryMiss(domain string, err error) {
	if err == nil || errors.Is(err, database.ErrEmpty) {
		return
	}
	s.logger.Warn("primary read failed, using legacy store", "domain", domain, "error", err)
}

func (s *Service) finish(span trace.Span, domain string, res SaveResult) SaveResult {
	if res.PrimaryErr != nil {
		s.logger.Warn("primary write failed", "domain", domain, "error", res.PrimaryErr)
		span.RecordError(res.PrimaryErr)
	}
	if res.LegacyErr != nil {
		s.logger.Warn("legacy mirror failed", "domain", domain, "error", res.LegacyErr)
		span.RecordError(res.LegacyErr)
	}
	if !res.OK() {
		s.logger.Error("write lost on both tiers", "domain", domain)
		span.SetStatus(codes.Error, "write failed on both tiers")
	}
	return res
}

func normalizeSettings(settings models.UserSettings) models.UserSettings {
	defaults := models.DefaultUserSettings()
	if settings.DailyGoal < 1 {
		settings.DailyGoal = defaults.DailyGoal
	}
	if settings.Channels == nil {
		settings.Channels = defaults.Channels
	}
	if settings.OfferTypes == nil {
		settings.OfferTypes = defaults.OfferTypes
	}
	if len(settings.Settings.Streak.Workdays) == 0 {
		settings.Settings.Streak.Workdays = defaults.Settings.Streak.Workdays
	}
	return settings
}
