// Package filters holds the session-only analytics filter state and applies it to offers.
package filters

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"offer-tracker/internal/dateutil"
	"offer-tracker/internal/models"
	"offer-tracker/internal/validation"
)

// Preset names a date range relative to now.
type Preset string

const (
	Today       Preset = "today"
	Yesterday   Preset = "yesterday"
	ThisWeek    Preset = "thisWeek"
	LastWeek    Preset = "lastWeek"
	Last7Days   Preset = "last7Days"
	ThisMonth   Preset = "thisMonth"
	LastMonth   Preset = "lastMonth"
	Last30Days  Preset = "last30Days"
	ThisQuarter Preset = "thisQuarter"
	ThisYear    Preset = "thisYear"
	AllTime     Preset = "allTime"
	Custom      Preset = "custom"
)

// Presets lists every preset in menu order.
var Presets = []Preset{
	Today, Yesterday, ThisWeek, LastWeek, Last7Days, ThisMonth,
	LastMonth, Last30Days, ThisQuarter, ThisYear, AllTime, Custom,
}

// DefaultPreset is applied when a session starts or is reset.
const DefaultPreset = ThisMonth

// Tri-state values for yes/no filters.
const (
	All = "all"
	Yes = "yes"
	No  = "no"
)

// CSATNone matches offers without a rating.
const CSATNone = "none"

var (
	triStates   = []string{All, Yes, No}
	csatFilters = []string{All, string(models.CSATPositive), string(models.CSATNeutral), string(models.CSATNegative), CSATNone}
)

// State is the analytics filter. Empty Channels or OfferTypes include everything; zero
// Start or End leaves that side of the range open.
type State struct {
	Preset      Preset    `json:"preset"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Channels    []string  `json:"channels"`
	OfferTypes  []string  `json:"offerTypes"`
	CSAT        string    `json:"csat"`
	Converted   string    `json:"converted"`
	HasFollowup string    `json:"hasFollowup"`
}

// Default returns the filter a new session starts with.
func Default(now time.Time) State {
	start, end, _ := Resolve(DefaultPreset, now)
	return State{
		Preset:      DefaultPreset,
		Start:       start,
		End:         end,
		Channels:    []string{},
		OfferTypes:  []string{},
		CSAT:        All,
		Converted:   All,
		HasFollowup: All,
	}
}

// Resolve returns the inclusive range of a preset. AllTime returns zero times. Custom has
// no range of its own and is rejected.
func Resolve(p Preset, now time.Time) (time.Time, time.Time, error) {
	today := dateutil.StartOfDay(now)

	switch p {
	case Today:
		return today, dateutil.EndOfDay(today), nil
	case Yesterday:
		y := today.AddDate(0, 0, -1)
		return y, dateutil.EndOfDay(y), nil
	case ThisWeek:
		start := dateutil.StartOfWeek(now)
		return start, start.AddDate(0, 0, 7).Add(-time.Nanosecond), nil
	case LastWeek:
		end := dateutil.StartOfWeek(now)
		return end.AddDate(0, 0, -7), end.Add(-time.Nanosecond), nil
	case Last7Days:
		return today.AddDate(0, 0, -6), dateutil.EndOfDay(today), nil
	case ThisMonth:
		start := dateutil.StartOfMonth(now)
		return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond), nil
	case LastMonth:
		end := dateutil.StartOfMonth(now)
		return end.AddDate(0, -1, 0), end.Add(-time.Nanosecond), nil
	case Last30Days:
		return today.AddDate(0, 0, -29), dateutil.EndOfDay(today), nil
	case ThisQuarter:
		start := dateutil.StartOfQuarter(now)
		return start, start.AddDate(0, 3, 0).Add(-time.Nanosecond), nil
	case ThisYear:
		start := dateutil.StartOfYear(now)
		return start, start.AddDate(1, 0, 0).Add(-time.Nanosecond), nil
	case AllTime:
		return time.Time{}, time.Time{}, nil
	case Custom:
		return time.Time{}, time.Time{}, &validation.ValidationError{Field: "preset", Message: "custom ranges need explicit start and end"}
	}
	return time.Time{}, time.Time{}, &validation.ValidationError{Field: "preset", Message: fmt.Sprintf("unknown preset %q", p)}
}

// Normalize validates s, fills empty enumerations with All and resolves the preset range.
// Custom ranges keep their bounds and are widened to whole days.
func (s State) Normalize(now time.Time) (State, error) {
	if s.Preset == "" {
		s.Preset = DefaultPreset
	}
	if s.CSAT == "" {
		s.CSAT = All
	}
	if s.Converted == "" {
		s.Converted = All
	}
	if s.HasFollowup == "" {
		s.HasFollowup = All
	}
	if err := validation.ValidateOneOf(s.CSAT, "csat", csatFilters); err != nil {
		return State{}, err
	}
	if err := validation.ValidateOneOf(s.Converted, "converted", triStates); err != nil {
		return State{}, err
	}
	if err := validation.ValidateOneOf(s.HasFollowup, "hasFollowup", triStates); err != nil {
		return State{}, err
	}

	if s.Preset == Custom {
		if s.Start.IsZero() || s.End.IsZero() {
			return State{}, &validation.ValidationError{Field: "preset", Message: "custom ranges need explicit start and end"}
		}
		s.Start = dateutil.StartOfDay(s.Start)
		s.End = dateutil.EndOfDay(s.End)
		if s.End.Before(s.Start) {
			return State{}, &validation.ValidationError{Field: "end", Message: "must not be before start"}
		}
	} else {
		start, end, err := Resolve(s.Preset, now)
		if err != nil {
			return State{}, err
		}
		s.Start, s.End = start, end
	}

	s.Channels = slices.Clone(s.Channels)
	s.OfferTypes = slices.Clone(s.OfferTypes)
	if s.Channels == nil {
		s.Channels = []string{}
	}
	if s.OfferTypes == nil {
		s.OfferTypes = []string{}
	}
	return s, nil
}

// InRange reports whether t falls inside the state's inclusive date range.
func (s State) InRange(t time.Time) bool {
	if !s.Start.IsZero() && t.Before(s.Start) {
		return false
	}
	if !s.End.IsZero() && t.After(s.End) {
		return false
	}
	return true
}

// Matches reports whether the offer passes every filter.
func (s State) Matches(o models.Offer) bool {
	if !s.InRange(o.Date) {
		return false
	}
	if len(s.Channels) > 0 && !containsFold(s.Channels, o.Channel) {
		return false
	}
	if len(s.OfferTypes) > 0 && !containsFold(s.OfferTypes, o.OfferType) {
		return false
	}

	switch s.CSAT {
	case "", All:
	case CSATNone:
		if o.CSAT != "" {
			return false
		}
	default:
		if string(o.CSAT) != s.CSAT {
			return false
		}
	}

	return triState(s.Converted, o.Conversion.Converted()) && triState(s.HasFollowup, o.FollowupDate != nil)
}

// Apply returns the offers matching s, preserving order.
func Apply(offers []models.Offer, s State) []models.Offer {
	out := make([]models.Offer, 0, len(offers))
	for _, o := range offers {
		if s.Matches(o) {
			out = append(out, o)
		}
	}
	return out
}

func triState(filter string, value bool) bool {
	switch filter {
	case Yes:
		return value
	case No:
		return !value
	}
	return true
}

func containsFold(list []string, v string) bool {
	return slices.ContainsFunc(list, func(item string) bool { return strings.EqualFold(item, v) })
}

// Session is the per-process filter state. It is never persisted.
type Session struct {
	mu    sync.Mutex
	state State
	now   func() time.Time
}

// NewSession starts a session on the default filter.
func NewSession(now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{state: Default(now()), now: now}
}

// Get returns the current filter. Relative presets are re-resolved so a long-running
// session follows the calendar.
func (s *Session) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.state.Normalize(s.now())
	if err != nil {
		return s.state
	}
	return state
}

// Set replaces the filter after validating it.
func (s *Session) Set(state State) (State, error) {
	normalized, err := state.Normalize(s.now())
	if err != nil {
		return State{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = normalized
	return normalized, nil
}

// Reset returns to the default filter.
func (s *Session) Reset() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Default(s.now())
	return s.state
}
