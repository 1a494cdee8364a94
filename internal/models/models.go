package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CSAT is a customer satisfaction rating.
type CSAT string

const (
	CSATPositive CSAT = "positive"
	CSATNeutral  CSAT = "neutral"
	CSATNegative CSAT = "negative"
)

// Valid reports whether c is one of the known ratings.
func (c CSAT) Valid() bool {
	switch c {
	case CSATPositive, CSATNeutral, CSATNegative:
		return true
	}
	return false
}

// Conversion is the conversion outcome of an offer. The zero value is unconverted.
type Conversion struct {
	date *time.Time
}

// Unconverted returns the unconverted outcome.
func Unconverted() Conversion { return Conversion{} }

// ConvertedOn returns a converted outcome recorded at t.
func ConvertedOn(t time.Time) Conversion { return Conversion{date: &t} }

// Converted reports whether the offer converted.
func (c Conversion) Converted() bool { return c.date != nil }

// Date returns the conversion date, if any.
func (c Conversion) Date() (time.Time, bool) {
	if c.date == nil {
		return time.Time{}, false
	}
	return *c.date, true
}

// Offer is a logged sales/support interaction tracked through to conversion.
type Offer struct {
	ID                string
	CaseNumber        string
	Channel           string
	OfferType         string
	Date              time.Time
	Notes             string
	FollowupDate      *time.Time
	FollowupCompleted bool
	Conversion        Conversion
	CSAT              CSAT
	CSATComment       string
}

// HasPendingFollowup reports whether a follow-up is scheduled and not yet resolved.
func (o Offer) HasPendingFollowup() bool {
	return o.FollowupDate != nil && !o.FollowupCompleted
}

// offerJSON is the persisted shape. converted is denormalized from conversionDate.
type offerJSON struct {
	ID                string `json:"id"`
	CaseNumber        string `json:"caseNumber"`
	Channel           string `json:"channel"`
	OfferType         string `json:"offerType"`
	Date              string `json:"date"`
	Notes             string `json:"notes,omitempty"`
	FollowupDate      string `json:"followupDate,omitempty"`
	FollowupCompleted bool   `json:"followupCompleted,omitempty"`
	ConversionDate    string `json:"conversionDate,omitempty"`
	Converted         bool   `json:"converted"`
	CSAT              CSAT   `json:"csat,omitempty"`
	CSATComment       string `json:"csatComment,omitempty"`
}

// MarshalJSON writes the offer in the storage/wire schema.
func (o Offer) MarshalJSON() ([]byte, error) {
	out := offerJSON{
		ID:                o.ID,
		CaseNumber:        o.CaseNumber,
		Channel:           o.Channel,
		OfferType:         o.OfferType,
		Date:              FormatTime(o.Date),
		Notes:             o.Notes,
		FollowupCompleted: o.FollowupCompleted,
		Converted:         o.Conversion.Converted(),
		CSAT:              o.CSAT,
		CSATComment:       o.CSATComment,
	}
	if o.FollowupDate != nil {
		out.FollowupDate = FormatTime(*o.FollowupDate)
	}
	if d, ok := o.Conversion.Date(); ok {
		out.ConversionDate = FormatTime(d)
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the storage/wire schema. A present conversionDate wins over the
// converted flag; a bare converted=true is dated on the offer's own date.
func (o *Offer) UnmarshalJSON(data []byte) error {
	var in offerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	date, err := ParseTime(in.Date)
	if err != nil {
		return fmt.Errorf("offer %s: invalid date: %w", in.ID, err)
	}

	*o = Offer{
		ID:                in.ID,
		CaseNumber:        in.CaseNumber,
		Channel:           in.Channel,
		OfferType:         in.OfferType,
		Date:              date,
		Notes:             in.Notes,
		FollowupCompleted: in.FollowupCompleted,
		CSAT:              in.CSAT,
		CSATComment:       in.CSATComment,
	}

	if in.FollowupDate != "" {
		t, err := ParseTime(in.FollowupDate)
		if err != nil {
			return fmt.Errorf("offer %s: invalid followupDate: %w", in.ID, err)
		}
		o.FollowupDate = &t
	}

	switch {
	case in.ConversionDate != "":
		t, err := ParseTime(in.ConversionDate)
		if err != nil {
			return fmt.Errorf("offer %s: invalid conversionDate: %w", in.ID, err)
		}
		o.Conversion = ConvertedOn(t)
	case in.Converted:
		o.Conversion = ConvertedOn(date)
	}

	return nil
}

const dateOnly = "2006-01-02"

// FormatTime renders t in the ISO form used by storage.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// ParseTime accepts RFC3339 timestamps and plain YYYY-MM-DD dates (local midnight).
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(dateOnly, s, time.Local)
}

// OfferInput holds the user-supplied fields of a new offer.
type OfferInput struct {
	CaseNumber        string           `json:"caseNumber"`
	Channel           string           `json:"channel"`
	OfferType         string           `json:"offerType"`
	Notes             string           `json:"notes,omitempty"`
	FollowupDate      Field[time.Time] `json:"followupDate"`
	FollowupCompleted bool             `json:"followupCompleted,omitempty"`
	ConversionDate    Field[time.Time] `json:"conversionDate"`
	CSAT              CSAT             `json:"csat,omitempty"`
	CSATComment       string           `json:"csatComment,omitempty"`
}

// OfferUpdate is a partial update. Unset fields leave the offer unchanged; nullable
// fields set to null clear the value.
type OfferUpdate struct {
	CaseNumber        Field[string]    `json:"caseNumber"`
	Channel           Field[string]    `json:"channel"`
	OfferType         Field[string]    `json:"offerType"`
	Notes             Field[string]    `json:"notes"`
	FollowupDate      Field[time.Time] `json:"followupDate"`
	FollowupCompleted Field[bool]      `json:"followupCompleted"`
	ConversionDate    Field[time.Time] `json:"conversionDate"`
	CSAT              Field[CSAT]      `json:"csat"`
	CSATComment       Field[string]    `json:"csatComment"`
}

// UserSettings is the persisted user profile and preference bag.
type UserSettings struct {
	UserName   string   `json:"userName"`
	DailyGoal  int      `json:"dailyGoal"`
	Channels   []string `json:"channels"`
	OfferTypes []string `json:"offerTypes"`
	Settings   Settings `json:"settings"`
}

// Settings is the nested, shallow-merged preference object.
type Settings struct {
	GreetingStyle         string               `json:"greetingStyle"`
	FontSize              string               `json:"fontSize"`
	Density               string               `json:"density"`
	ShowAppearancePreview bool                 `json:"showAppearancePreview"`
	Notifications         NotificationSettings `json:"notifications"`
	Streak                StreakSettings       `json:"streak"`
}

// NotificationSettings toggles reminders.
type NotificationSettings struct {
	FollowupReminders bool   `json:"followupReminders"`
	DailyGoalReminder bool   `json:"dailyGoalReminder"`
	ReminderTime      string `json:"reminderTime"`
}

// StreakSettings configures streak counting. Workdays are day-of-week indices 0-6
// (Sunday = 0) and are never empty.
type StreakSettings struct {
	Enabled       bool  `json:"enabled"`
	Workdays      []int `json:"workdays"`
	CountWeekends bool  `json:"countWeekends"`
}

// SettingsPatch is a shallow partial update of Settings.
type SettingsPatch struct {
	GreetingStyle         *string               `json:"greetingStyle,omitempty"`
	FontSize              *string               `json:"fontSize,omitempty"`
	Density               *string               `json:"density,omitempty"`
	ShowAppearancePreview *bool                 `json:"showAppearancePreview,omitempty"`
	Notifications         *NotificationSettings `json:"notifications,omitempty"`
	Streak                *StreakSettings       `json:"streak,omitempty"`
}

// DefaultUserSettings returns the settings used before anything is persisted.
func DefaultUserSettings() UserSettings {
	return UserSettings{
		DailyGoal:  5,
		Channels:   []string{"Phone", "Chat", "Email", "In Person"},
		OfferTypes: []string{"Upgrade", "New Service", "Add-on", "Retention"},
		Settings: Settings{
			GreetingStyle: "friendly",
			FontSize:      "medium",
			Density:       "comfortable",
			Notifications: NotificationSettings{
				FollowupReminders: true,
				DailyGoalReminder: true,
				ReminderTime:      "09:00",
			},
			Streak: StreakSettings{
				Enabled:  true,
				Workdays: []int{1, 2, 3, 4, 5},
			},
		},
	}
}

// Clone returns a deep copy.
func (u UserSettings) Clone() UserSettings {
	c := u
	c.Channels = append([]string(nil), u.Channels...)
	c.OfferTypes = append([]string(nil), u.OfferTypes...)
	c.Settings.Streak.Workdays = append([]int(nil), u.Settings.Streak.Workdays...)
	return c
}

// DashboardPreferences controls the dashboard layout.
type DashboardPreferences struct {
	DefaultView  string   `json:"defaultView"`
	VisibleCards []string `json:"visibleCards"`
	ChartType    string   `json:"chartType"`
}

// DefaultDashboardPreferences returns the initial dashboard layout.
func DefaultDashboardPreferences() DashboardPreferences {
	return DashboardPreferences{
		DefaultView:  "week",
		VisibleCards: []string{"today", "streak", "conversion", "followups"},
		ChartType:    "bar",
	}
}

// ThemeState is the appearance configuration.
type ThemeState struct {
	Theme                 string `json:"theme"`
	FontSize              string `json:"fontSize"`
	Density               string `json:"density"`
	ShowAppearancePreview bool   `json:"showAppearancePreview"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DuplicateResponse reports a case-number collision.
type DuplicateResponse struct {
	Duplicate bool   `json:"duplicate"`
	Offer     *Offer `json:"offer,omitempty"`
}

// CreateOfferResponse is returned when an offer is added.
type CreateOfferResponse struct {
	Offer     Offer  `json:"offer"`
	Duplicate *Offer `json:"duplicate,omitempty"`
}
