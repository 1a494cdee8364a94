package features

import (
	"sort"
	"sync"
)

// FeatureFlag represents a feature flag configuration.
type FeatureFlag struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

// Manager manages feature flags.
type Manager struct {
	mu    sync.RWMutex
	flags map[string]*FeatureFlag
}

// NewManager creates a new feature flag manager.
func NewManager() *Manager {
	return &Manager{
		flags: make(map[string]*FeatureFlag),
	}
}

// Register registers a new feature flag.
func (m *Manager) Register(name string, enabled bool, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flags[name] = &FeatureFlag{
		Name:        name,
		Enabled:     enabled,
		Description: description,
	}
}

// IsEnabled checks if a feature flag is enabled.
func (m *Manager) IsEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flag, exists := m.flags[name]
	if !exists {
		return false // Default to disabled if flag doesn't exist
	}

	return flag.Enabled
}

// Set changes a registered flag. It reports false for unknown flags.
func (m *Manager) Set(name string, enabled bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	flag, exists := m.flags[name]
	if !exists {
		return false
	}
	flag.Enabled = enabled
	return true
}

// Apply overrides flags from configuration; unknown names are ignored.
func (m *Manager) Apply(overrides map[string]bool) {
	for name, enabled := range overrides {
		m.Set(name, enabled)
	}
}

// List returns a snapshot of all flags sorted by name.
func (m *Manager) List() []FeatureFlag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]FeatureFlag, 0, len(m.flags))
	for _, v := range m.flags {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Predefined feature flag names
const (
	// FeatureFollowupReminders enables the periodic follow-up scan
	FeatureFollowupReminders = "followup_reminders"
	// FeatureEventHooks enables publishing of offer and settings events
	FeatureEventHooks = "event_hooks"
	// FeatureExport enables the report export endpoint
	FeatureExport = "export"
	// FeatureSettingsAutosave debounces settings writes instead of persisting each change
	FeatureSettingsAutosave = "settings_autosave"
)

// Defaults registers the application flags with their initial state.
func (m *Manager) Defaults() *Manager {
	m.Register(FeatureFollowupReminders, true, "Scan for due follow-ups and publish reminders")
	m.Register(FeatureEventHooks, true, "Publish offer and settings events to subscribers")
	m.Register(FeatureExport, true, "Allow exporting the offer report")
	m.Register(FeatureSettingsAutosave, true, "Coalesce settings writes with a short delay")
	return m
}
