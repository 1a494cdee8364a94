package features

import "testing"

func TestDefaultsAndOverrides(t *testing.T) {
	m := NewManager().Defaults()

	if !m.IsEnabled(FeatureFollowupReminders) {
		t.Error("Expected follow-up reminders on by default")
	}
	if m.IsEnabled("unknown_flag") {
		t.Error("Unknown flags must read as disabled")
	}

	m.Apply(map[string]bool{FeatureExport: false, "unknown_flag": true})
	if m.IsEnabled(FeatureExport) {
		t.Error("Expected export disabled by override")
	}
	if m.IsEnabled("unknown_flag") {
		t.Error("Overrides must not register new flags")
	}

	flags := m.List()
	if len(flags) != 4 {
		t.Fatalf("Expected 4 flags, got %d", len(flags))
	}
	for i := 1; i < len(flags); i++ {
		if flags[i-1].Name > flags[i].Name {
			t.Errorf("Flags not sorted: %v", flags)
		}
	}
}
