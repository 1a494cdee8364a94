// Package offers owns the in-memory offer collection. Every mutation updates the
// collection and then writes the whole collection back through the storage facade;
// there are no partial writes and the last writer wins.
package offers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"offer-tracker/internal/events"
	"offer-tracker/internal/idgen"
	"offer-tracker/internal/models"
	"offer-tracker/internal/storage"
	"offer-tracker/internal/validation"
)

var (
	// ErrNotFound is returned when no offer has the requested id.
	ErrNotFound = errors.New("offer not found")
	// ErrNoFollowupDue is returned when no pending follow-up is due.
	ErrNoFollowupDue = errors.New("no follow-up is due")
)

// Store persists the full offer collection.
type Store interface {
	GetOffers(ctx context.Context) []models.Offer
	SaveOffers(ctx context.Context, offers []models.Offer) storage.SaveResult
}

// IDGenerator produces offer identifiers.
type IDGenerator interface {
	NewID() string
}

// Repository is the offer collection and its operations.
type Repository struct {
	mu     sync.Mutex
	offers []models.Offer

	store  Store
	ids    IDGenerator
	now    func() time.Time
	events *events.Manager
	logger *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithIDGenerator replaces the default UUID generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(r *Repository) { r.ids = ids }
}

// WithEvents publishes offer events to m.
func WithEvents(m *events.Manager) Option {
	return func(r *Repository) { r.events = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

// NewRepository creates an empty repository; call Load to hydrate it.
func NewRepository(store Store, opts ...Option) *Repository {
	r := &Repository{
		offers: []models.Offer{},
		store:  store,
		ids:    idgen.New(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load replaces the in-memory collection with the persisted one.
func (r *Repository) Load(ctx context.Context) {
	loaded := r.store.GetOffers(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers = loaded
	r.logger.Info("offers loaded", "count", len(loaded))
}

// List returns a copy of the collection in creation order.
func (r *Repository) List() []models.Offer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneAll(r.offers)
}

// Get returns the offer with id.
func (r *Repository) Get(id string) (models.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return models.Offer{}, ErrNotFound
	}
	return clone(r.offers[i]), nil
}

// Add creates an offer with a fresh id and the current timestamp. The offer is
// converted exactly when a conversion date is supplied.
func (r *Repository) Add(ctx context.Context, in models.OfferInput) (models.Offer, error) {
	if err := validation.ValidateOfferInput(in); err != nil {
		return models.Offer{}, err
	}

	offer := models.Offer{
		ID:                r.ids.NewID(),
		CaseNumber:        validation.SanitizeString(in.CaseNumber),
		Channel:           validation.SanitizeString(in.Channel),
		OfferType:         validation.SanitizeString(in.OfferType),
		Date:              r.now(),
		Notes:             strings.TrimSpace(in.Notes),
		FollowupCompleted: in.FollowupCompleted,
		CSAT:              in.CSAT,
		CSATComment:       strings.TrimSpace(in.CSATComment),
	}
	if t, ok := in.FollowupDate.Get(); ok {
		offer.FollowupDate = &t
	}
	if offer.FollowupDate == nil {
		offer.FollowupCompleted = false
	}
	if t, ok := in.ConversionDate.Get(); ok {
		offer.Conversion = models.ConvertedOn(t)
	}

	r.mu.Lock()
	r.offers = append(r.offers, offer)
	r.persistLocked(ctx)
	r.mu.Unlock()

	r.events.PublishOffer(ctx, events.EventOfferCreated, offer)
	return clone(offer), nil
}

// Update merges a partial update into the offer with id. Setting a conversion date
// marks the offer converted; clearing it marks the offer unconverted.
func (r *Repository) Update(ctx context.Context, id string, u models.OfferUpdate) (models.Offer, error) {
	if err := validation.ValidateOfferUpdate(u); err != nil {
		return models.Offer{}, err
	}

	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		return models.Offer{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	applyUpdate(&r.offers[i], u)
	updated := clone(r.offers[i])
	r.persistLocked(ctx)
	r.mu.Unlock()

	r.events.PublishOffer(ctx, events.EventOfferUpdated, updated)
	return updated, nil
}

// Delete removes the offer with id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	removed := r.offers[i]
	r.offers = append(r.offers[:i:i], r.offers[i+1:]...)
	r.persistLocked(ctx)
	r.mu.Unlock()

	r.events.PublishOffer(ctx, events.EventOfferDeleted, removed)
	return nil
}

// FindDuplicate returns the first-created offer whose case number matches, ignoring
// case and surrounding space, skipping excludeID.
func (r *Repository) FindDuplicate(caseNumber, excludeID string) (models.Offer, bool) {
	want := strings.TrimSpace(caseNumber)
	if want == "" {
		return models.Offer{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	found := -1
	for i, o := range r.offers {
		if o.ID == excludeID || !strings.EqualFold(strings.TrimSpace(o.CaseNumber), want) {
			continue
		}
		if found < 0 || o.Date.Before(r.offers[found].Date) {
			found = i
		}
	}
	if found < 0 {
		return models.Offer{}, false
	}
	return clone(r.offers[found]), true
}

// CheckFollowups returns the offers whose follow-up is due at or before now and not
// completed, most urgent (earliest due) first.
func (r *Repository) CheckFollowups(now time.Time) []models.Offer {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []models.Offer
	for _, o := range r.offers {
		if o.HasPendingFollowup() && !o.FollowupDate.After(now) {
			due = append(due, clone(o))
		}
	}
	sortByFollowup(due)
	return due
}

// Upcoming returns pending follow-ups due after now and no later than now+within,
// earliest first.
func (r *Repository) Upcoming(now time.Time, within time.Duration) []models.Offer {
	limit := now.Add(within)

	r.mu.Lock()
	defer r.mu.Unlock()

	var upcoming []models.Offer
	for _, o := range r.offers {
		if o.HasPendingFollowup() && o.FollowupDate.After(now) && !o.FollowupDate.After(limit) {
			upcoming = append(upcoming, clone(o))
		}
	}
	sortByFollowup(upcoming)
	return upcoming
}

// CompleteNextFollowup marks the earliest due follow-up completed and returns it. The
// choice and the completion happen under one lock, so concurrent callers never pick the
// same offer.
func (r *Repository) CompleteNextFollowup(ctx context.Context, now time.Time) (models.Offer, error) {
	r.mu.Lock()
	next := -1
	for i, o := range r.offers {
		if !o.HasPendingFollowup() || o.FollowupDate.After(now) {
			continue
		}
		if next < 0 || o.FollowupDate.Before(*r.offers[next].FollowupDate) {
			next = i
		}
	}
	if next < 0 {
		r.mu.Unlock()
		return models.Offer{}, ErrNoFollowupDue
	}
	r.offers[next].FollowupCompleted = true
	completed := clone(r.offers[next])
	r.persistLocked(ctx)
	r.mu.Unlock()

	r.events.PublishOffer(ctx, events.EventOfferUpdated, completed)
	r.events.PublishOffer(ctx, events.EventFollowupCompleted, completed)
	return completed, nil
}

// CompleteFollowup marks the follow-up of offer id resolved, keeping its date.
func (r *Repository) CompleteFollowup(ctx context.Context, id string) (models.Offer, error) {
	offer, err := r.Update(ctx, id, models.OfferUpdate{FollowupCompleted: models.Some(true)})
	if err != nil {
		return models.Offer{}, err
	}
	r.events.PublishOffer(ctx, events.EventFollowupCompleted, offer)
	return offer, nil
}

// RescheduleFollowup moves the follow-up of offer id to when and reopens it.
func (r *Repository) RescheduleFollowup(ctx context.Context, id string, when time.Time) (models.Offer, error) {
	return r.Update(ctx, id, models.OfferUpdate{
		FollowupDate:      models.Some(when),
		FollowupCompleted: models.Some(false),
	})
}

// Replace swaps the whole collection, as done by an import.
func (r *Repository) Replace(ctx context.Context, offers []models.Offer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers = cloneAll(offers)
	r.persistLocked(ctx)
}

// Reset drops the in-memory collection without writing. clear, when not nil, runs while
// the lock is held, so no save can land between emptying storage and the reset.
func (r *Repository) Reset(clear func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers = []models.Offer{}
	if clear != nil {
		clear()
	}
}

func (r *Repository) indexOf(id string) int {
	for i, o := range r.offers {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func (r *Repository) persistLocked(ctx context.Context) {
	res := r.store.SaveOffers(ctx, cloneAll(r.offers))
	if !res.OK() {
		r.logger.Error("offers not persisted", "error", res.Err())
	}
}

func applyUpdate(o *models.Offer, u models.OfferUpdate) {
	if v, ok := u.CaseNumber.Get(); ok {
		o.CaseNumber = validation.SanitizeString(v)
	}
	if v, ok := u.Channel.Get(); ok {
		o.Channel = validation.SanitizeString(v)
	}
	if v, ok := u.OfferType.Get(); ok {
		o.OfferType = validation.SanitizeString(v)
	}
	if u.Notes.Set {
		o.Notes = strings.TrimSpace(u.Notes.Value)
	}

	if u.FollowupDate.Set {
		if t, ok := u.FollowupDate.Get(); ok {
			o.FollowupDate = &t
			// A new date reopens the follow-up unless the update says otherwise.
			o.FollowupCompleted = false
		} else {
			o.FollowupDate = nil
			o.FollowupCompleted = false
		}
	}
	if v, ok := u.FollowupCompleted.Get(); ok && o.FollowupDate != nil {
		o.FollowupCompleted = v
	}

	if u.ConversionDate.Set {
		if t, ok := u.ConversionDate.Get(); ok {
			o.Conversion = models.ConvertedOn(t)
		} else {
			o.Conversion = models.Unconverted()
		}
	}

	if u.CSAT.Set {
		o.CSAT = u.CSAT.Value
	}
	if u.CSATComment.Set {
		o.CSATComment = strings.TrimSpace(u.CSATComment.Value)
	}
}

func sortByFollowup(list []models.Offer) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].FollowupDate.Before(*list[j].FollowupDate)
	})
}

func clone(o models.Offer) models.Offer {
	if o.FollowupDate != nil {
		t := *o.FollowupDate
		o.FollowupDate = &t
	}
	return o
}

func cloneAll(list []models.Offer) []models.Offer {
	out := make([]models.Offer, len(list))
	for i, o := range list {
		out[i] = clone(o)
	}
	return out
}
