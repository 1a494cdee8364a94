package idgen

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"

	"offer-tracker/internal/validation"
)

func failingUUID() (uuid.UUID, error) { return uuid.Nil, errors.New("no entropy") }

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestNewID_Primary(t *testing.T) {
	g := New()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := g.NewID()
		if err := validation.ValidateUUID(id, "id"); err != nil {
			t.Fatalf("Invalid id %q: %v", id, err)
		}
		if seen[id] {
			t.Fatalf("Duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestNewID_SecureFallback(t *testing.T) {
	g := NewWithSources(failingUUID, bytes.NewReader(bytes.Repeat([]byte{0xff}, 16)), nil)

	id := g.NewID()
	if id != "ffffffff-ffff-4fff-bfff-ffffffffffff" {
		t.Errorf("Unexpected id %q", id)
	}
}

func TestNewID_WeakFallback(t *testing.T) {
	g := NewWithSources(failingUUID, failingReader{}, func() uint64 { return 0 })

	id := g.NewID()
	if id != "00000000-0000-4000-8000-000000000000" {
		t.Errorf("Unexpected id %q", id)
	}
	if err := validation.ValidateUUID(id, "id"); err != nil {
		t.Errorf("Weak fallback produced invalid id: %v", err)
	}
}

func TestNewID_FallbackIsVersion4(t *testing.T) {
	g := NewWithSources(failingUUID, bytes.NewReader(bytes.Repeat([]byte{0x5a}, 16)), nil)

	parsed, err := uuid.Parse(g.NewID())
	if err != nil {
		t.Fatalf("Fallback id does not parse: %v", err)
	}
	if parsed.Version() != 4 || parsed.Variant() != uuid.RFC4122 {
		t.Errorf("Expected a version 4 RFC 4122 id, got version %d variant %v", parsed.Version(), parsed.Variant())
	}
}
