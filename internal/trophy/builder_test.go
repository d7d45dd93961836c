package trophy

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_SetShapeRebuilds(t *testing.T) {
	b, err := NewBuilder(DefaultShape())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), b.Generation())
	before := b.Layout()

	s := DefaultShape()
	s.BaseSize = 2
	require.NoError(t, b.SetShape(s))

	assert.Equal(t, uint64(2), b.Generation())
	assert.Equal(t, 2.0, b.Shape().BaseSize)
	assert.NotEqual(t, before.Positions[0], b.Layout().Positions[0])
	assert.Equal(t, before.Positions[LogoStart], b.Layout().Positions[LogoStart], "logo must not move when only the base changes")
}

func TestBuilder_SameShapeSamePositions(t *testing.T) {
	b, err := NewBuilder(DefaultShape())
	require.NoError(t, err)
	before := b.Layout()
	require.NoError(t, b.SetShape(DefaultShape()))
	assert.Equal(t, before.Positions, b.Layout().Positions)
	assert.Equal(t, before.Min, b.Layout().Min)
	assert.Equal(t, before.Max, b.Layout().Max)
}

func TestBuilder_RejectsInvalidShape(t *testing.T) {
	_, err := NewBuilder(Shape{BaseSize: math.NaN()})
	assert.Error(t, err)

	b, err := NewBuilder(DefaultShape())
	require.NoError(t, err)
	bad := DefaultShape()
	bad.BaseSize = -3
	assert.Error(t, b.SetShape(bad))
	assert.Equal(t, uint64(1), b.Generation())
	assert.Equal(t, 1.0, b.Shape().BaseSize)
}

func TestBuilder_UpdateShape(t *testing.T) {
	b, err := NewBuilder(DefaultShape())
	require.NoError(t, err)

	got, err := b.UpdateShape(func(s *Shape) error {
		s.BaseSize = 0.5
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.BaseSize)
	assert.Equal(t, got, b.Shape())
	assert.Equal(t, uint64(2), b.Generation())

	_, err = b.UpdateShape(func(s *Shape) error {
		s.BaseSize = 9
		return errors.New("nope")
	})
	assert.EqualError(t, err, "nope")
	_, err = b.UpdateShape(func(s *Shape) error {
		s.LogoSize.X = 0
		return nil
	})
	assert.Error(t, err)
	assert.Equal(t, 0.5, b.Shape().BaseSize)
	assert.Equal(t, DefaultShape().LogoSize, b.Shape().LogoSize)
	assert.Equal(t, uint64(2), b.Generation())
}

// Partial updates touching different fields must all survive when they race.
func TestBuilder_UpdateShapeConcurrent(t *testing.T) {
	b, err := NewBuilder(DefaultShape())
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := b.UpdateShape(func(s *Shape) error { s.BaseSize += 1; return nil })
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := b.UpdateShape(func(s *Shape) error { s.LogoCenter.Z += 1; return nil })
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, DefaultShape().BaseSize+n, b.Shape().BaseSize)
	assert.Equal(t, DefaultShape().LogoCenter.Z+n, b.Shape().LogoCenter.Z)
	assert.Equal(t, uint64(1+2*n), b.Generation())
}
