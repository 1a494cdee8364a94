package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"offer-tracker/internal/config"
	"offer-tracker/internal/database"
	"offer-tracker/internal/events"
	"offer-tracker/internal/export"
	"offer-tracker/internal/features"
	"offer-tracker/internal/filters"
	"offer-tracker/internal/legacy"
	"offer-tracker/internal/models"
	"offer-tracker/internal/offers"
	"offer-tracker/internal/reminders"
	"offer-tracker/internal/settings"
	"offer-tracker/internal/storage"
	"offer-tracker/internal/theme"
)

// Runtime is a loaded Service together with the resources it owns.
type Runtime struct {
	*Service

	// Reminders is nil when the follow-up reminder feature is off.
	Reminders *reminders.Scanner

	closers []func() error
}

// Open builds every component from cfg and loads persisted state.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	rt.closers = append(rt.closers, db.Close)

	kv, err := openLegacy(cfg.Legacy)
	if err != nil {
		rt.close()
		return nil, err
	}
	if c, ok := kv.(interface{ Close() error }); ok {
		rt.closers = append(rt.closers, c.Close)
	}

	flags := features.NewManager().Defaults()
	flags.Apply(cfg.Features)

	manager := events.NewManager(flags.IsEnabled(features.FeatureEventHooks))
	store := storage.NewService(db, kv, storage.WithLogger(logger))

	delay := cfg.AutosaveDelay()
	if !flags.IsEnabled(features.FeatureSettingsAutosave) {
		delay = 0
	}

	repo := offers.NewRepository(store, offers.WithEvents(manager), offers.WithLogger(logger))
	userSettings := settings.NewService(store,
		settings.WithAutosaveDelay(delay),
		settings.WithEvents(manager),
		settings.WithLogger(logger),
	)

	rt.Service = NewService(Deps{
		Offers:   repo,
		Settings: userSettings,
		Storage:  store,
		Theme:    theme.NewStore(kv, store, theme.WithLogger(logger)),
		Filters:  filters.NewSession(nil),
		Events:   manager,
		Features: flags,
		Saver:    export.NewFileSaver(cfg.Export.Dir),
		Logger:   logger,
	})
	rt.Load(ctx)

	if flags.IsEnabled(features.FeatureFollowupReminders) {
		rt.Reminders = reminders.NewScanner(repo, manager, cfg.ReminderInterval(),
			reminders.WithLogger(logger),
			reminders.WithPreferences(func() models.NotificationSettings {
				return userSettings.Get().Settings.Notifications
			}),
			reminders.WithDailyGoal(rt.GoalProgress),
		)
	}

	logger.Info("offer tracker loaded",
		"database", cfg.Database.Path,
		"legacy_backend", cfg.Legacy.Backend,
		"offers", len(repo.List()),
	)
	return rt, nil
}

// Close stops the reminder scanner, flushes settings, drains event handlers and
// releases the stores.
func (rt *Runtime) Close(ctx context.Context) error {
	if rt.Reminders != nil {
		rt.Reminders.Stop()
	}
	rt.Service.Close(ctx)
	rt.Events.Shutdown()
	return rt.close()
}

func (rt *Runtime) close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func openLegacy(cfg config.LegacyConfig) (legacy.Store, error) {
	switch cfg.Backend {
	case config.LegacyRedis:
		store, err := legacy.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to open legacy store: %w", err)
		}
		return store, nil
	case config.LegacyMemory:
		return legacy.NewMemoryStore(), nil
	case config.LegacyDisk:
		return legacy.NewDiskStore(cfg.Path), nil
	}
	return nil, fmt.Errorf("unknown legacy backend %q", cfg.Backend)
}
