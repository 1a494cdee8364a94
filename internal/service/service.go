// Package service composes the offer tracker components behind the HTTP and CLI surfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"offer-tracker/internal/charts"
	"offer-tracker/internal/dateutil"
	"offer-tracker/internal/events"
	"offer-tracker/internal/export"
	"offer-tracker/internal/features"
	"offer-tracker/internal/filters"
	"offer-tracker/internal/models"
	"offer-tracker/internal/offers"
	"offer-tracker/internal/settings"
	"offer-tracker/internal/storage"
	"offer-tracker/internal/theme"
	"offer-tracker/internal/tracing"
	"offer-tracker/internal/validation"
)

// ErrExportDisabled is returned when the export feature is switched off.
var ErrExportDisabled = errors.New("export is disabled")

// Breakdown categories.
const (
	CategoryChannel    = "channel"
	CategoryOfferType  = "offerType"
	CategoryCSAT       = "csat"
	CategoryConversion = "conversion"
)

var (
	categories = []string{CategoryChannel, CategoryOfferType, CategoryCSAT, CategoryConversion}
	buckets    = []string{string(charts.Day), string(charts.Week), string(charts.Month), string(charts.Quarter)}
)

// DuplicateError reports an existing offer with the same case number.
type DuplicateError struct {
	Existing models.Offer
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("an offer with case number %q already exists", e.Existing.CaseNumber)
}

// Deps holds the components a Service coordinates.
type Deps struct {
	Offers   *offers.Repository
	Settings *settings.Service
	Storage  *storage.Service
	Theme    *theme.Store
	Filters  *filters.Session
	Events   *events.Manager
	Features *features.Manager
	Saver    export.Saver
	Clock    func() time.Time
	Logger   *slog.Logger
}

// Service provides the operations that span more than one component.
type Service struct {
	Offers   *offers.Repository
	Settings *settings.Service
	Storage  *storage.Service
	Theme    *theme.Store
	Filters  *filters.Session
	Events   *events.Manager
	Features *features.Manager

	saver  export.Saver
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a new service instance.
func NewService(d Deps) *Service {
	s := &Service{
		Offers:   d.Offers,
		Settings: d.Settings,
		Storage:  d.Storage,
		Theme:    d.Theme,
		Filters:  d.Filters,
		Events:   d.Events,
		Features: d.Features,
		saver:    d.Saver,
		now:      d.Clock,
		logger:   d.Logger,
	}
	if s.Features == nil {
		s.Features = features.NewManager().Defaults()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Load reads offers and settings from storage.
func (s *Service) Load(ctx context.Context) {
	s.Offers.Load(ctx)
	s.Settings.Load(ctx)
}

// Now returns the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// CreateOffer adds an offer. A case number already in use yields a *DuplicateError
// unless force is set, in which case the offer is added and the duplicate reported.
func (s *Service) CreateOffer(ctx context.Context, in models.OfferInput, force bool) (models.CreateOfferResponse, error) {
	if err := validation.ValidateOfferInput(in); err != nil {
		return models.CreateOfferResponse{}, err
	}

	dup, found := s.Offers.FindDuplicate(in.CaseNumber, "")
	if found && !force {
		return models.CreateOfferResponse{}, &DuplicateError{Existing: dup}
	}

	offer, err := s.Offers.Add(ctx, in)
	if err != nil {
		return models.CreateOfferResponse{}, err
	}

	resp := models.CreateOfferResponse{Offer: offer}
	if found {
		resp.Duplicate = &dup
	}
	return resp, nil
}

// UpdateOffer applies a partial update with the same duplicate rule as CreateOffer,
// ignoring the offer being edited.
func (s *Service) UpdateOffer(ctx context.Context, id string, u models.OfferUpdate, force bool) (models.CreateOfferResponse, error) {
	if _, err := s.Offers.Get(id); err != nil {
		return models.CreateOfferResponse{}, err
	}
	if err := validation.ValidateOfferUpdate(u); err != nil {
		return models.CreateOfferResponse{}, err
	}

	var (
		dup   models.Offer
		found bool
	)
	if caseNumber, ok := u.CaseNumber.Get(); ok {
		dup, found = s.Offers.FindDuplicate(caseNumber, id)
		if found && !force {
			return models.CreateOfferResponse{}, &DuplicateError{Existing: dup}
		}
	}

	offer, err := s.Offers.Update(ctx, id, u)
	if err != nil {
		return models.CreateOfferResponse{}, err
	}

	resp := models.CreateOfferResponse{Offer: offer}
	if found {
		resp.Duplicate = &dup
	}
	return resp, nil
}

// ImportOffers replaces the whole collection with list, as read from a backup in the
// storage schema. Nothing changes unless every offer is valid.
func (s *Service) ImportOffers(ctx context.Context, list []models.Offer) error {
	seen := make(map[string]bool, len(list))
	for i, o := range list {
		if o.ID == "" {
			return &validation.ValidationError{Field: fmt.Sprintf("offers[%d].id", i), Message: "is required"}
		}
		if seen[o.ID] {
			return &validation.ValidationError{Field: fmt.Sprintf("offers[%d].id", i), Message: "is duplicated"}
		}
		seen[o.ID] = true
		if o.Date.IsZero() {
			return &validation.ValidationError{Field: fmt.Sprintf("offers[%d].date", i), Message: "is required"}
		}
		in := models.OfferInput{
			CaseNumber:  o.CaseNumber,
			Channel:     o.Channel,
			OfferType:   o.OfferType,
			Notes:       o.Notes,
			CSAT:        o.CSAT,
			CSATComment: o.CSATComment,
		}
		if err := validation.ValidateOfferInput(in); err != nil {
			return err
		}
	}

	s.Offers.Replace(ctx, list)
	s.logger.Info("offers imported", "count", len(list))
	return nil
}

// FilteredOffers returns the offers matching the session filter.
func (s *Service) FilteredOffers() []models.Offer {
	return filters.Apply(s.Offers.List(), s.Filters.Get())
}

// Series returns chart points for the filtered offers. A bucket spans the filter range;
// otherwise the view (or the dashboard default) picks the period containing now.
func (s *Service) Series(ctx context.Context, view, bucket string) ([]charts.Point, error) {
	list := s.FilteredOffers()
	goal := s.Settings.Get().DailyGoal
	now := s.now()

	if bucket != "" {
		if err := validation.ValidateOneOf(bucket, "bucket", buckets); err != nil {
			return nil, err
		}
		state := s.Filters.Get()
		start, end := state.Start, state.End
		if start.IsZero() {
			start = earliestOffer(list, now)
		}
		if end.IsZero() {
			end = now
		}
		return charts.SeriesRange(list, start, end, charts.Bucket(bucket), goal)
	}

	if view == "" {
		view = s.Storage.GetDashboardPreferences(ctx).DefaultView
	}
	if err := validation.ValidateOneOf(view, "view", validation.Views); err != nil {
		return nil, err
	}
	return charts.Series(list, charts.View(view), now, goal)
}

// Breakdown returns the category counts of the filtered offers.
func (s *Service) Breakdown(category string) ([]charts.Slice, error) {
	if err := validation.ValidateOneOf(category, "category", categories); err != nil {
		return nil, err
	}

	list := s.FilteredOffers()
	switch category {
	case CategoryChannel:
		return charts.ByChannel(list), nil
	case CategoryOfferType:
		return charts.ByOfferType(list), nil
	case CategoryCSAT:
		return charts.ByCSAT(list), nil
	default:
		return charts.ByConversion(list, s.now()), nil
	}
}

// Summary computes the dashboard numbers over all offers using the streak settings.
func (s *Service) Summary() charts.Summary {
	user := s.Settings.Get()
	streak := user.Settings.Streak

	workdays := streak.Workdays
	if streak.CountWeekends {
		workdays = append(slices.Clone(workdays), 0, 6)
	}

	summary := charts.Summarize(s.Offers.List(), s.now(), user.DailyGoal, workdays)
	if !streak.Enabled {
		summary.Streak = 0
	}
	return summary
}

// GoalProgress returns the number of offers logged on now's day and the daily goal.
func (s *Service) GoalProgress(now time.Time) (today, goal int) {
	for _, o := range s.Offers.List() {
		if dateutil.IsToday(o.Date, now) {
			today++
		}
	}
	return today, s.Settings.Get().DailyGoal
}

// Export writes the offer report through the configured saver.
func (s *Service) Export(ctx context.Context) (export.Result, error) {
	if !s.Features.IsEnabled(features.FeatureExport) || s.saver == nil {
		return export.Result{}, ErrExportDisabled
	}

	ctx, span := tracing.GetTracer().StartSpan(ctx, "service.Export")
	defer span.End()

	res := export.Export(ctx, s.saver, s.Offers.List(), s.now())
	if !res.Success {
		s.logger.Warn("export failed", "error", res.Error)
	}
	return res, nil
}

// Reset clears both storage tiers and returns every component to its defaults.
func (s *Service) Reset(ctx context.Context) storage.SaveResult {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "service.Reset")
	defer span.End()

	var res storage.SaveResult
	s.Settings.Reset(func() {
		s.Offers.Reset(func() { res = s.Storage.ClearAllData(ctx) })
	})
	s.Filters.Reset()

	s.Events.Publish(ctx, events.EventDataCleared, nil)
	return res
}

// Close flushes pending settings writes.
func (s *Service) Close(ctx context.Context) {
	s.Settings.Close(ctx)
}

func earliestOffer(list []models.Offer, fallback time.Time) time.Time {
	earliest := fallback
	for _, o := range list {
		if o.Date.Before(earliest) {
			earliest = o.Date
		}
	}
	return earliest
}
