// Package reminders periodically scans for due follow-ups and announces each one once.
// It also sends the daily goal reminder once a day after the configured reminder time.
package reminders

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"offer-tracker/internal/dateutil"
	"offer-tracker/internal/events"
	"offer-tracker/internal/models"
)

// Source reports the follow-ups due at a point in time, most urgent first.
type Source interface {
	CheckFollowups(now time.Time) []models.Offer
}

// Scanner publishes followup.due for follow-ups that became due since the last scan. A
// follow-up that is rescheduled, or reopened after completion, is announced again.
type Scanner struct {
	source   Source
	events   *events.Manager
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	prefs    func() models.NotificationSettings
	progress func(now time.Time) (today, goal int)

	mu        sync.Mutex
	announced map[string]bool
	goalDay   time.Time
	ticker    *time.Ticker
	stopChan  chan struct{}
	done      chan struct{}
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithPreferences reads the notification settings before every scan. Follow-up
// reminders stay quiet while FollowupReminders is off.
func WithPreferences(prefs func() models.NotificationSettings) Option {
	return func(s *Scanner) { s.prefs = prefs }
}

// WithDailyGoal enables the daily goal reminder. progress reports the offers logged on
// now's day and the current goal.
func WithDailyGoal(progress func(now time.Time) (today, goal int)) Option {
	return func(s *Scanner) { s.progress = progress }
}

// NewScanner creates a scanner that runs every interval once started.
func NewScanner(source Source, manager *events.Manager, interval time.Duration, opts ...Option) *Scanner {
	s := &Scanner{
		source:    source,
		events:    manager,
		interval:  interval,
		now:       time.Now,
		logger:    slog.Default(),
		prefs:     func() models.NotificationSettings { return models.NotificationSettings{FollowupReminders: true} },
		announced: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan publishes the follow-ups that are due and not yet announced, and returns them.
// It sends the daily goal reminder as well when one is owed.
func (s *Scanner) Scan(ctx context.Context) []models.Offer {
	now := s.now()
	prefs := s.prefs()
	s.remindGoal(ctx, now, prefs)
	if !prefs.FollowupReminders {
		return nil
	}

	due := s.source.CheckFollowups(now)

	s.mu.Lock()
	current := make(map[string]bool, len(due))
	var fresh []models.Offer
	for _, o := range due {
		key := announceKey(o)
		current[key] = true
		if !s.announced[key] {
			fresh = append(fresh, o)
		}
	}
	s.announced = current
	s.mu.Unlock()

	for _, o := range fresh {
		s.events.PublishOffer(ctx, events.EventFollowupDue, o)
	}
	if len(fresh) > 0 {
		s.logger.Info("follow-ups due", "new", len(fresh), "total", len(due))
	}
	return fresh
}

// remindGoal publishes goal.reminder at most once per day, on the first scan at or
// after the reminder time, when fewer offers than the goal were logged today.
func (s *Scanner) remindGoal(ctx context.Context, now time.Time, prefs models.NotificationSettings) {
	if s.progress == nil || !prefs.DailyGoalReminder {
		return
	}
	at, err := dateutil.CombineDateTime(now, prefs.ReminderTime)
	if err != nil {
		s.logger.Warn("daily goal reminder skipped", "reminder_time", prefs.ReminderTime, "error", err)
		return
	}
	if now.Before(at) {
		return
	}

	day := dateutil.StartOfDay(now)
	s.mu.Lock()
	if s.goalDay.Equal(day) {
		s.mu.Unlock()
		return
	}
	s.goalDay = day
	s.mu.Unlock()

	today, goal := s.progress(now)
	if today >= goal {
		return
	}
	s.events.Publish(ctx, events.EventGoalReminder, events.GoalData{Today: today, Goal: goal})
	s.logger.Info("daily goal reminder", "today", today, "goal", goal)
}

// Start scans immediately and then on every tick until Stop.
func (s *Scanner) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.interval)
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go func(ticks <-chan time.Time, stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		s.Scan(ctx)
		for {
			select {
			case <-ticks:
				s.Scan(ctx)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}(s.ticker.C, s.stopChan, s.done)

	s.logger.Info("follow-up reminders started", "interval", s.interval.String())
}

// Stop ends the background scan and waits for it to return.
func (s *Scanner) Stop() {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return
	}
	s.ticker.Stop()
	s.ticker = nil
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
}

func announceKey(o models.Offer) string {
	return o.ID + "@" + models.FormatTime(*o.FollowupDate)
}
