// Package ledstate holds the current color of every trophy LED.
package ledstate

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/dltrophy/simulator/internal/protocol"
	"github.com/dltrophy/simulator/internal/trophy"
)

// Colors is one color per LED index.
type Colors [trophy.NumLEDs]protocol.Color

// Store is the authoritative LED color state. All entries of one update are
// applied under a single lock, so a Snapshot never sees half an update.
type Store struct {
	mu      sync.RWMutex
	colors  Colors
	version uint64
	rng     *rand.Rand
}

// New returns a store with every LED black.
func New() *Store {
	return &Store{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeeded returns a store whose Randomize sequence is reproducible.
func NewSeeded(seed uint64) *Store {
	return &Store{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// InRange reports whether i addresses an LED of the trophy.
func InRange(i int) bool {
	return i >= 0 && i < trophy.NumLEDs
}

// Apply writes every in-range entry of u in order, so the last entry for an
// index wins. Out-of-range entries are skipped and counted.
func (s *Store) Apply(u *protocol.Update) (applied, ignored int) {
	if u == nil {
		return 0, 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range u.Entries {
		if !InRange(e.Index) {
			ignored++
			continue
		}
		s.colors[e.Index] = e.Color
		applied++
	}
	if applied > 0 {
		s.version++
	}
	return applied, ignored
}

// Set changes a single LED. It reports false for an out-of-range index.
func (s *Store) Set(i int, c protocol.Color) bool {
	if !InRange(i) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.colors[i] = c
	s.version++
	return true
}

// Get returns the color of LED i.
func (s *Store) Get(i int) (protocol.Color, bool) {
	if !InRange(i) {
		return protocol.Black, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.colors[i], true
}

// Snapshot returns a copy of all colors in index order.
func (s *Store) Snapshot() Colors {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.colors
}

// Version changes whenever the colors change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Randomize gives every LED an independent random color.
func (s *Store) Randomize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.colors {
		v := s.rng.Uint32()
		s.colors[i] = protocol.Color{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16)}
	}
	s.version++
}

// Clear sets every LED to black.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.colors = Colors{}
	s.version++
}

// Restore replaces the whole state, e.g. with one saved in the journal.
func (s *Store) Restore(colors []protocol.Color) error {
	if len(colors) != trophy.NumLEDs {
		return fmt.Errorf("restore needs %d colors, got %d", trophy.NumLEDs, len(colors))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.colors[:], colors)
	s.version++
	return nil
}

// PackedRGB returns the colors as contiguous r, g, b bytes in index order.
func (c Colors) PackedRGB() []byte {
	out := make([]byte, 0, 3*len(c))
	for _, col := range c {
		out = append(out, col.R, col.G, col.B)
	}
	return out
}
