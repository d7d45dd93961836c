// Package trophy computes where every LED of the Deadline trophy sits in
// space: a square perimeter of base LEDs, the irregular logo cluster and the
// two single-color fixtures.
package trophy

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// LED index partition. The layout is fixed by the trophy firmware.
const (
	NumBaseLEDs   = 64
	NumLogoLEDs   = 106
	NumRGBLEDs    = NumBaseLEDs + NumLogoLEDs
	NumSingleLEDs = 2
	NumLEDs       = NumRGBLEDs + NumSingleLEDs

	BaseStart  = 0
	LogoStart  = BaseStart + NumBaseLEDs
	BackIndex  = NumLEDs - 2
	FloorIndex = NumLEDs - 1

	ledsPerEdge = NumBaseLEDs / 4
)

// Partition names the group an LED index belongs to.
type Partition int

const (
	Outside Partition = iota
	Base
	Logo
	Back
	Floor
)

func (p Partition) String() string {
	switch p {
	case Base:
		return "base"
	case Logo:
		return "logo"
	case Back:
		return "back"
	case Floor:
		return "floor"
	default:
		return "outside"
	}
}

// PartitionOf returns the partition of LED index i, or Outside when i is not
// a valid index.
func PartitionOf(i int) Partition {
	switch {
	case i >= BaseStart && i < BaseStart+NumBaseLEDs:
		return Base
	case i >= LogoStart && i < LogoStart+NumLogoLEDs:
		return Logo
	case i == BackIndex:
		return Back
	case i == FloorIndex:
		return Floor
	default:
		return Outside
	}
}

// IsSingleColor reports whether LED i is one of the white-only fixtures.
func IsSingleColor(i int) bool {
	p := PartitionOf(i)
	return p == Back || p == Floor
}

// Shape holds the physical parameters the positions are derived from.
type Shape struct {
	BaseCenter r3.Vec  `json:"base_center"`
	BaseSize   float64 `json:"base_size"`
	LogoCenter r3.Vec  `json:"logo_center"`
	LogoSize   r2.Vec  `json:"logo_size"`
	BackPos    r3.Vec  `json:"back_pos"`
	FloorPos   r3.Vec  `json:"floor_pos"`
}

// DefaultShape returns the measured dimensions of the real trophy.
func DefaultShape() Shape {
	return Shape{
		BaseCenter: r3.Vec{X: 0, Y: -0.35, Z: 0},
		BaseSize:   1.0,
		LogoCenter: r3.Vec{X: -0.175, Y: 0.262, Z: 0},
		LogoSize:   r2.Vec{X: 0.5, Y: 0.375},
		BackPos:    r3.Vec{X: -0.05, Y: -0.1, Z: 0.02},
		FloorPos:   r3.Vec{X: 0, Y: -0.35, Z: 0},
	}
}

// Validate rejects parameters that would produce non-finite positions.
func (s Shape) Validate() error {
	checks := []struct {
		name string
		v    r3.Vec
	}{
		{"base_center", s.BaseCenter},
		{"logo_center", s.LogoCenter},
		{"logo_size", r3.Vec{X: s.LogoSize.X, Y: s.LogoSize.Y}},
		{"base_size", r3.Vec{X: s.BaseSize}},
		{"back_pos", s.BackPos},
		{"floor_pos", s.FloorPos},
	}
	for _, c := range checks {
		if !finite(c.v.X) || !finite(c.v.Y) || !finite(c.v.Z) {
			return fmt.Errorf("%s must be finite, got %v", c.name, c.v)
		}
	}
	if s.BaseSize < 0 {
		return fmt.Errorf("base_size must be non-negative, got %f", s.BaseSize)
	}
	// A zero logo axis folds grid cells onto each other.
	if s.LogoSize.X <= 0 || s.LogoSize.Y <= 0 {
		return fmt.Errorf("logo_size must be positive, got (%f, %f)", s.LogoSize.X, s.LogoSize.Y)
	}
	return nil
}

// Layout is the full set of LED positions for one Shape, plus the bounding
// box over all of them.
type Layout struct {
	Shape     Shape
	Positions [NumLEDs]r3.Vec
	Min, Max  r3.Vec
}

// Build computes the position of every LED index. It is pure: the same Shape
// always yields the same Layout.
func Build(s Shape) *Layout {
	l := &Layout{Shape: s}
	for i := 0; i < NumLEDs; i++ {
		l.Positions[i] = position(s, i)
	}
	l.Min, l.Max = bounds(l.Positions[:])
	return l
}

func position(s Shape, i int) r3.Vec {
	switch PartitionOf(i) {
	case Base:
		rel := baseOffset(i - BaseStart)
		return r3.Vec{
			X: s.BaseCenter.X + s.BaseSize*rel.X,
			Y: s.BaseCenter.Y,
			Z: s.BaseCenter.Z + s.BaseSize*rel.Y,
		}
	case Logo:
		rel := logoOffset(i - LogoStart)
		return r3.Vec{
			X: s.LogoCenter.X + s.LogoSize.X*rel.X,
			Y: s.LogoCenter.Y + s.LogoSize.Y*rel.Y,
			Z: s.LogoCenter.Z,
		}
	case Back:
		return s.BackPos
	case Floor:
		return s.FloorPos
	}
	return r3.Vec{}
}

// baseCorners are the unit-square corners in clockwise order, as (x, z).
var baseCorners = [4]r2.Vec{
	{X: +0.5, Y: +0.5},
	{X: +0.5, Y: -0.5},
	{X: -0.5, Y: -0.5},
	{X: -0.5, Y: +0.5},
}

// baseOffset places base LED k on the unit square. Each edge carries
// ledsPerEdge LEDs with half a step of margin at both corners.
func baseOffset(k int) r2.Vec {
	edge := k / ledsPerEdge
	from := baseCorners[edge%4]
	to := baseCorners[(edge+1)%4]

	step := 1.0 / float64(ledsPerEdge)
	along := float64(k%ledsPerEdge) + 0.5
	return r2.Add(from, r2.Scale(step*along, r2.Sub(to, from)))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func bounds(ps []r3.Vec) (lo, hi r3.Vec) {
	if len(ps) == 0 {
		return lo, hi
	}
	lo, hi = ps[0], ps[0]
	for _, p := range ps[1:] {
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	return lo, hi
}

// PackedVec4 returns the positions as contiguous x, y, z, w float32 records in
// index order, the layout a renderer uploads. w is always zero.
func (l *Layout) PackedVec4() []float32 {
	out := make([]float32, 0, 4*NumLEDs)
	for _, p := range l.Positions {
		out = append(out, float32(p.X), float32(p.Y), float32(p.Z), 0)
	}
	return out
}
