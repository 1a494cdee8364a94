// Package idgen produces offer identifiers.
package idgen

import (
	crand "crypto/rand"
	"io"
	mrand "math/rand/v2"

	"github.com/google/uuid"
)

// Generator produces UUIDv4 strings, trying each source in turn: the uuid package,
// then raw bytes from a secure reader, then a pseudo-random source.
type Generator struct {
	primary func() (uuid.UUID, error)
	secure  io.Reader
	weak    func() uint64
}

// New returns a generator backed by the default sources.
func New() *Generator {
	return &Generator{
		primary: uuid.NewRandom,
		secure:  crand.Reader,
		weak:    mrand.Uint64,
	}
}

// NewWithSources is used in tests to force each fallback tier.
func NewWithSources(primary func() (uuid.UUID, error), secure io.Reader, weak func() uint64) *Generator {
	return &Generator{primary: primary, secure: secure, weak: weak}
}

// NewID returns a fresh identifier. It never fails.
func (g *Generator) NewID() string {
	if g.primary != nil {
		if id, err := g.primary(); err == nil {
			return id.String()
		}
	}

	var b [16]byte
	if g.secure != nil {
		if _, err := io.ReadFull(g.secure, b[:]); err == nil {
			return format(b)
		}
	}

	weak := g.weak
	if weak == nil {
		weak = mrand.Uint64
	}
	for i := 0; i < 16; i += 8 {
		v := weak()
		for j := 0; j < 8; j++ {
			b[i+j] = byte(v >> (8 * j))
		}
	}
	return format(b)
}

// format stamps the version 4 and RFC 4122 variant bits and renders the canonical form.
func format(b [16]byte) string {
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return uuid.UUID(b).String()
}
