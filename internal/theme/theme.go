// Package theme persists appearance settings. Font size, density and the preview flag
// live in their own flat keys with no fallback chain; the theme name goes through the
// storage facade when one is configured.
package theme

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"offer-tracker/internal/legacy"
	"offer-tracker/internal/models"
	"offer-tracker/internal/storage"
	"offer-tracker/internal/validation"
)

// Defaults for unset keys.
const (
	DefaultTheme    = storage.DefaultTheme
	DefaultFontSize = "medium"
	DefaultDensity  = "comfortable"
)

// ThemeStore is the facade accessor pair for the theme name.
type ThemeStore interface {
	GetTheme(ctx context.Context) string
	SaveTheme(ctx context.Context, theme string) storage.SaveResult
}

// Patch updates any subset of the appearance fields.
type Patch struct {
	Theme                 *string `json:"theme,omitempty"`
	FontSize              *string `json:"fontSize,omitempty"`
	Density               *string `json:"density,omitempty"`
	ShowAppearancePreview *bool   `json:"showAppearancePreview,omitempty"`
}

// Store reads and writes the appearance keys. Store failures are logged and never
// returned: reads fall back to the defaults and writes still report the requested state.
type Store struct {
	kv     legacy.Store
	facade ThemeStore
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for store failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a store over kv. facade may be nil, in which case the theme name is
// kept in kv like the other fields.
func NewStore(kv legacy.Store, facade ThemeStore, opts ...Option) *Store {
	s := &Store{kv: kv, facade: facade, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the current appearance, with defaults for unset or unreadable keys.
func (s *Store) Get(ctx context.Context) models.ThemeState {
	state := models.ThemeState{
		Theme:    DefaultTheme,
		FontSize: DefaultFontSize,
		Density:  DefaultDensity,
	}

	if s.facade != nil {
		state.Theme = s.facade.GetTheme(ctx)
	} else if v := s.read(ctx, legacy.KeyTheme); v != "" {
		state.Theme = v
	}
	if v := s.read(ctx, legacy.KeyFontSize); v != "" {
		state.FontSize = v
	}
	if v := s.read(ctx, legacy.KeyAppDensity); v != "" {
		state.Density = v
	}
	if v := s.read(ctx, legacy.KeyShowAppearancePreview); v != "" {
		state.ShowAppearancePreview, _ = strconv.ParseBool(v)
	}
	return state
}

// Update validates every field present in p, writes them, and returns the resulting
// appearance. Only validation failures are returned as errors.
func (s *Store) Update(ctx context.Context, p Patch) (models.ThemeState, error) {
	if p.Theme != nil {
		if err := validation.ValidateOneOf(*p.Theme, "theme", validation.Themes); err != nil {
			return models.ThemeState{}, err
		}
	}
	if p.FontSize != nil {
		if err := validation.ValidateOneOf(*p.FontSize, "fontSize", validation.FontSizes); err != nil {
			return models.ThemeState{}, err
		}
	}
	if p.Density != nil {
		if err := validation.ValidateOneOf(*p.Density, "density", validation.Densities); err != nil {
			return models.ThemeState{}, err
		}
	}

	state := s.Get(ctx)
	if p.Theme != nil {
		s.writeTheme(ctx, *p.Theme)
		state.Theme = *p.Theme
	}
	if p.FontSize != nil {
		s.write(ctx, legacy.KeyFontSize, *p.FontSize)
		state.FontSize = *p.FontSize
	}
	if p.Density != nil {
		s.write(ctx, legacy.KeyAppDensity, *p.Density)
		state.Density = *p.Density
	}
	if p.ShowAppearancePreview != nil {
		s.write(ctx, legacy.KeyShowAppearancePreview, strconv.FormatBool(*p.ShowAppearancePreview))
		state.ShowAppearancePreview = *p.ShowAppearancePreview
	}
	return state, nil
}

// Toggle flips between light and dark. A "system" theme becomes dark.
func (s *Store) Toggle(ctx context.Context) models.ThemeState {
	next := "dark"
	if s.Get(ctx).Theme == "dark" {
		next = "light"
	}
	state, _ := s.Update(ctx, Patch{Theme: &next})
	return state
}

func (s *Store) writeTheme(ctx context.Context, theme string) {
	if s.facade == nil {
		s.write(ctx, legacy.KeyTheme, theme)
		return
	}
	if res := s.facade.SaveTheme(ctx, theme); !res.OK() {
		s.logger.Warn("theme not saved", "error", res.Err())
	}
}

func (s *Store) write(ctx context.Context, key, value string) {
	if err := s.kv.Set(ctx, key, value); err != nil {
		s.logger.Warn("appearance setting not saved", "key", key, "error", err)
	}
}

func (s *Store) read(ctx context.Context, key string) string {
	v, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, legacy.ErrNotFound) {
			s.logger.Warn("appearance setting unreadable, using default", "key", key, "error", err)
		}
		return ""
	}
	return v
}
