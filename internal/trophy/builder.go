package trophy

import (
	"sync"
)

// Builder owns the current Shape and the Layout derived from it. Every shape
// change rebuilds all positions at once; readers always see a complete Layout.
type Builder struct {
	mu         sync.RWMutex
	layout     *Layout
	generation uint64
}

// NewBuilder builds the initial layout for s.
func NewBuilder(s Shape) (*Builder, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Builder{layout: Build(s), generation: 1}, nil
}

// Layout returns the current layout. The returned value must not be modified.
func (b *Builder) Layout() *Layout {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.layout
}

// Shape returns the parameters of the current layout.
func (b *Builder) Shape() Shape {
	return b.Layout().Shape
}

// Generation increases by one on every rebuild, so renderers can tell when
// they need to upload positions again.
func (b *Builder) Generation() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.generation
}

// SetShape rebuilds the layout for s. An invalid shape leaves the current
// layout in place.
func (b *Builder) SetShape(s Shape) error {
	if err := s.Validate(); err != nil {
		return err
	}
	l := Build(s)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.layout = l
	b.generation++
	return nil
}

// UpdateShape applies fn to a copy of the current shape and rebuilds the
// layout from the result, all under the builder lock, so concurrent partial
// updates cannot drop each other's changes. If fn or validation fails the
// current layout stays.
func (b *Builder) UpdateShape(fn func(*Shape) error) (Shape, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.layout.Shape
	if err := fn(&s); err != nil {
		return b.layout.Shape, err
	}
	if err := s.Validate(); err != nil {
		return b.layout.Shape, err
	}
	b.layout = Build(s)
	b.generation++
	return s, nil
}
