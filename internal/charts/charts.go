// Package charts turns an offer collection into chart series and breakdowns. Every
// function is pure; callers filter the offers first.
package charts

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"offer-tracker/internal/dateutil"
	"offer-tracker/internal/models"
)

// NoDataLabel is the placeholder slice returned for an empty breakdown.
const NoDataLabel = "No Data"

// PendingWindowDays is how long an unconverted offer stays pending.
const PendingWindowDays = 30

// Bucket is the width of one series point.
type Bucket string

const (
	Day     Bucket = "day"
	Week    Bucket = "week"
	Month   Bucket = "month"
	Quarter Bucket = "quarter"
)

// View is a dashboard period.
type View string

const (
	ViewWeek    View = "week"
	ViewMonth   View = "month"
	ViewQuarter View = "quarter"
	ViewYear    View = "year"
)

// Status is the conversion outcome shown in charts.
type Status string

const (
	StatusConverted    Status = "converted"
	StatusPending      Status = "pending"
	StatusNotConverted Status = "not_converted"
)

// Point is one bucket of a time series. Start and End are inclusive.
type Point struct {
	Label     string    `json:"label"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Count     int       `json:"count"`
	Converted int       `json:"converted"`
	Goal      int       `json:"goal"`
}

// Slice is one category of a breakdown.
type Slice struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// Series buckets the offers of the view's period containing now: a week by day, a month
// by day, a quarter by week and a year by month.
func Series(offers []models.Offer, view View, now time.Time, dailyGoal int) ([]Point, error) {
	var (
		start  time.Time
		end    time.Time
		bucket Bucket
	)
	switch view {
	case ViewWeek:
		start = dateutil.StartOfWeek(now)
		end = start.AddDate(0, 0, 7)
		bucket = Day
	case ViewMonth:
		start = dateutil.StartOfMonth(now)
		end = start.AddDate(0, 1, 0)
		bucket = Day
	case ViewQuarter:
		start = dateutil.StartOfQuarter(now)
		end = start.AddDate(0, 3, 0)
		bucket = Week
	case ViewYear:
		start = dateutil.StartOfYear(now)
		end = start.AddDate(1, 0, 0)
		bucket = Month
	default:
		return nil, fmt.Errorf("unknown view %q", view)
	}
	return SeriesRange(offers, start, end.Add(-time.Nanosecond), bucket, dailyGoal)
}

// SeriesRange buckets offers dated within [start, end]. Buckets are aligned to calendar
// boundaries (weeks start on Sunday) and clipped to the range. The goal of a bucket is the
// daily goal for a day, seven times it for a week, and the daily goal times the calendar
// days of a month or quarter.
func SeriesRange(offers []models.Offer, start, end time.Time, bucket Bucket, dailyGoal int) ([]Point, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("range end %s is before start %s", end, start)
	}
	switch bucket {
	case Day, Week, Month, Quarter:
	default:
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}

	var points []Point
	for cursor := alignStart(start, bucket); !cursor.After(end); {
		next := advance(cursor, bucket)

		p := Point{
			Label: label(cursor, bucket),
			Start: latest(cursor, start),
			End:   earliest(next.Add(-time.Nanosecond), end),
			Goal:  dailyGoal * goalDays(cursor, next, bucket),
		}
		for _, o := range offers {
			if o.Date.Before(p.Start) || o.Date.After(p.End) {
				continue
			}
			p.Count++
			if o.Conversion.Converted() {
				p.Converted++
			}
		}
		points = append(points, p)
		cursor = next
	}
	return points, nil
}

func alignStart(t time.Time, b Bucket) time.Time {
	switch b {
	case Day:
		return dateutil.StartOfDay(t)
	case Week:
		return dateutil.StartOfWeek(t)
	case Month:
		return dateutil.StartOfMonth(t)
	}
	return dateutil.StartOfQuarter(t)
}

func advance(t time.Time, b Bucket) time.Time {
	switch b {
	case Day:
		return t.AddDate(0, 0, 1)
	case Week:
		return t.AddDate(0, 0, 7)
	case Month:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 3, 0)
	}
}

func goalDays(start, next time.Time, b Bucket) int {
	switch b {
	case Day:
		return 1
	case Week:
		return 7
	}
	return dateutil.DaysBetween(start, next)
}

func label(t time.Time, b Bucket) string {
	switch b {
	case Day, Week:
		return dateutil.FormatShort(t)
	case Month:
		return t.Format("Jan 2006")
	}
	return fmt.Sprintf("Q%d %d", dateutil.Quarter(t), t.Year())
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// ConversionStatus classifies an offer. An unconverted offer is pending while fewer than
// PendingWindowDays calendar days have passed since it was logged.
func ConversionStatus(o models.Offer, now time.Time) Status {
	if o.Conversion.Converted() {
		return StatusConverted
	}
	if dateutil.DaysBetween(o.Date, now) < PendingWindowDays {
		return StatusPending
	}
	return StatusNotConverted
}

// ByChannel counts offers per channel, largest first.
func ByChannel(offers []models.Offer) []Slice {
	return countBy(offers, func(o models.Offer) string { return o.Channel })
}

// ByOfferType counts offers per offer type, largest first.
func ByOfferType(offers []models.Offer) []Slice {
	return countBy(offers, func(o models.Offer) string { return o.OfferType })
}

// ByCSAT counts rated offers in positive, neutral, negative order. Unrated offers are
// left out.
func ByCSAT(offers []models.Offer) []Slice {
	counts := map[models.CSAT]int{}
	for _, o := range offers {
		if o.CSAT.Valid() {
			counts[o.CSAT]++
		}
	}

	var out []Slice
	for _, c := range []models.CSAT{models.CSATPositive, models.CSATNeutral, models.CSATNegative} {
		if counts[c] > 0 {
			out = append(out, Slice{Label: titles[string(c)], Value: counts[c]})
		}
	}
	return orPlaceholder(out)
}

// ByConversion counts offers per conversion status.
func ByConversion(offers []models.Offer, now time.Time) []Slice {
	counts := map[Status]int{}
	for _, o := range offers {
		counts[ConversionStatus(o, now)]++
	}

	var out []Slice
	for _, s := range []Status{StatusConverted, StatusPending, StatusNotConverted} {
		if counts[s] > 0 {
			out = append(out, Slice{Label: titles[string(s)], Value: counts[s]})
		}
	}
	return orPlaceholder(out)
}

var titles = map[string]string{
	string(models.CSATPositive): "Positive",
	string(models.CSATNeutral):  "Neutral",
	string(models.CSATNegative): "Negative",
	string(StatusConverted):     "Converted",
	string(StatusPending):       "Pending",
	string(StatusNotConverted):  "Not Converted",
}

func countBy(offers []models.Offer, key func(models.Offer) string) []Slice {
	counts := map[string]int{}
	for _, o := range offers {
		if k := key(o); k != "" {
			counts[k]++
		}
	}

	out := make([]Slice, 0, len(counts))
	for k, v := range counts {
		out = append(out, Slice{Label: k, Value: v})
	}
	slices.SortFunc(out, func(a, b Slice) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return orPlaceholder(out)
}

// orPlaceholder keeps charts renderable when there is nothing to show.
func orPlaceholder(out []Slice) []Slice {
	if len(out) == 0 {
		return []Slice{{Label: NoDataLabel, Value: 1}}
	}
	return out
}

// Summary holds the dashboard headline numbers.
type Summary struct {
	Total            int     `json:"total"`
	Today            int     `json:"today"`
	ThisWeek         int     `json:"thisWeek"`
	DailyGoal        int     `json:"dailyGoal"`
	GoalProgress     float64 `json:"goalProgress"`
	Converted        int     `json:"converted"`
	Pending          int     `json:"pending"`
	NotConverted     int     `json:"notConverted"`
	ConversionRate   float64 `json:"conversionRate"`
	Positive         int     `json:"positive"`
	Neutral          int     `json:"neutral"`
	Negative         int     `json:"negative"`
	PendingFollowups int     `json:"pendingFollowups"`
	OverdueFollowups int     `json:"overdueFollowups"`
	Streak           int     `json:"streak"`
}

// Summarize computes the dashboard numbers. Percentages are rounded to one decimal.
func Summarize(offers []models.Offer, now time.Time, dailyGoal int, workdays []int) Summary {
	s := Summary{Total: len(offers), DailyGoal: dailyGoal}
	weekStart := dateutil.StartOfWeek(now)
	dates := make([]time.Time, 0, len(offers))

	for _, o := range offers {
		dates = append(dates, o.Date)
		if dateutil.IsToday(o.Date, now) {
			s.Today++
		}
		if !o.Date.Before(weekStart) && !o.Date.After(now) {
			s.ThisWeek++
		}

		switch ConversionStatus(o, now) {
		case StatusConverted:
			s.Converted++
		case StatusPending:
			s.Pending++
		default:
			s.NotConverted++
		}

		switch o.CSAT {
		case models.CSATPositive:
			s.Positive++
		case models.CSATNeutral:
			s.Neutral++
		case models.CSATNegative:
			s.Negative++
		}

		if o.HasPendingFollowup() {
			s.PendingFollowups++
			if o.FollowupDate.Before(now) {
				s.OverdueFollowups++
			}
		}
	}

	if dailyGoal > 0 {
		s.GoalProgress = percent(s.Today, dailyGoal)
	}
	if s.Total > 0 {
		s.ConversionRate = percent(s.Converted, s.Total)
	}
	s.Streak = dateutil.Streak(dates, dailyGoal, workdays, now)
	return s
}

func percent(part, whole int) float64 {
	return math.Round(float64(part)/float64(whole)*1000) / 10
}
