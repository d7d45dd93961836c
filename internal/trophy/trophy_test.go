package trophy

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/dltrophy/simulator/internal/monitoring"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

const tolerance = 1e-9

// unitShape puts both clusters at the origin with unit size so offsets can be
// checked directly.
func unitShape() Shape {
	return Shape{
		BaseSize: 1,
		LogoSize: r2.Vec{X: 1, Y: 1},
		BackPos:  r3.Vec{X: 1, Y: 2, Z: 3},
		FloorPos: r3.Vec{X: -1, Y: -2, Z: -3},
	}
}

func TestPartitionOf(t *testing.T) {
	tests := []struct {
		index int
		want  Partition
	}{
		{-1, Outside},
		{0, Base},
		{63, Base},
		{64, Logo},
		{169, Logo},
		{170, Back},
		{171, Floor},
		{172, Outside},
		{9999, Outside},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("index_%d", tt.index), func(t *testing.T) {
			assert.Equal(t, tt.want, PartitionOf(tt.index))
		})
	}
}

func TestPartitionCounts(t *testing.T) {
	counts := map[Partition]int{}
	for i := 0; i < NumLEDs; i++ {
		counts[PartitionOf(i)]++
	}
	assert.Equal(t, NumBaseLEDs, counts[Base])
	assert.Equal(t, NumLogoLEDs, counts[Logo])
	assert.Equal(t, 1, counts[Back])
	assert.Equal(t, 1, counts[Floor])
	assert.Zero(t, counts[Outside])
	assert.Equal(t, 172, NumLEDs)
	assert.True(t, IsSingleColor(BackIndex))
	assert.False(t, IsSingleColor(LogoStart))
}

func TestBuild_EveryPositionFinite(t *testing.T) {
	l := Build(DefaultShape())
	for i, p := range l.Positions {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			t.Errorf("position %d is not finite: %v", i, p)
		}
	}
}

func TestBuild_IsPure(t *testing.T) {
	first := Build(DefaultShape())
	second := Build(DefaultShape())
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Build is not deterministic (-first +second):\n%s", diff)
	}
}

func TestBasePerimeter_UnitSquare(t *testing.T) {
	l := Build(unitShape())
	step := 1.0 / ledsPerEdge

	for i := BaseStart; i < BaseStart+NumBaseLEDs; i++ {
		p := l.Positions[i]
		assert.InDelta(t, 0.0, p.Y, tolerance, "base LED %d must keep the base height", i)
		onEdge := math.Max(math.Abs(p.X), math.Abs(p.Z))
		assert.InDelta(t, 0.5, onEdge, tolerance, "base LED %d is not on the unit square: %v", i, p)

		if (i-BaseStart)%ledsPerEdge != 0 {
			prev := l.Positions[i-1]
			assert.InDelta(t, step, r3.Norm(r3.Sub(p, prev)), tolerance, "uneven spacing before LED %d", i)
		}
	}

	// half a step of margin from the corner each edge starts at
	for edge, corner := range baseCorners {
		first := l.Positions[BaseStart+edge*ledsPerEdge]
		last := l.Positions[BaseStart+edge*ledsPerEdge+ledsPerEdge-1]
		next := baseCorners[(edge+1)%4]
		assert.InDelta(t, step/2, math.Hypot(first.X-corner.X, first.Z-corner.Y), tolerance, "edge %d start margin", edge)
		assert.InDelta(t, step/2, math.Hypot(last.X-next.X, last.Z-next.Y), tolerance, "edge %d end margin", edge)
	}
}

func TestBasePerimeter_FirstLED(t *testing.T) {
	l := Build(unitShape())
	want := r3.Vec{X: 0.5, Y: 0, Z: 0.5 - 1.0/32}
	assert.InDelta(t, want.X, l.Positions[0].X, tolerance)
	assert.InDelta(t, want.Z, l.Positions[0].Z, tolerance)
}

func TestBasePerimeter_ScaledAndTranslated(t *testing.T) {
	s := unitShape()
	s.BaseCenter = r3.Vec{X: 1, Y: -2, Z: 3}
	s.BaseSize = 2
	unit := Build(unitShape())
	moved := Build(s)
	for i := BaseStart; i < BaseStart+NumBaseLEDs; i++ {
		assert.InDelta(t, 1+2*unit.Positions[i].X, moved.Positions[i].X, tolerance)
		assert.InDelta(t, -2.0, moved.Positions[i].Y, tolerance)
		assert.InDelta(t, 3+2*unit.Positions[i].Z, moved.Positions[i].Z, tolerance)
	}
}

func TestLogoLookup_IsBijection(t *testing.T) {
	seen := map[gridCell]int{}
	for k := 0; k < NumLogoLEDs; k++ {
		col, row, ok := LogoCell(k)
		require.True(t, ok)
		c := gridCell{Col: col, Row: row}
		if other, dup := seen[c]; dup {
			t.Fatalf("logo LEDs %d and %d share cell %v", other, k, c)
		}
		seen[c] = k
		assert.Equal(t, k, logoOrder[row*LogoGridWidth+col], "cell of logo LED %d does not hold it", k)
	}
	assert.Len(t, seen, NumLogoLEDs)

	_, _, ok := LogoCell(NumLogoLEDs)
	assert.False(t, ok)
	_, _, ok = LogoCell(-1)
	assert.False(t, ok)
}

func TestLogoLookup_KnownCells(t *testing.T) {
	tests := []struct {
		k        int
		col, row int
	}{
		{0, 2, 8},
		{44, 26, 20},
		{73, 0, 5},
		{97, 3, 0},
		{105, 19, 0},
	}
	for _, tt := range tests {
		col, row, ok := LogoCell(tt.k)
		require.True(t, ok)
		assert.Equal(t, []int{tt.col, tt.row}, []int{col, row}, "logo LED %d", tt.k)
	}
}

func TestLogoPositions_MatchRotatedGrid(t *testing.T) {
	s := unitShape()
	s.LogoCenter = r3.Vec{X: 0.25, Y: -0.5, Z: 0.75}
	s.LogoSize = r2.Vec{X: 2, Y: 0.5}
	l := Build(s)

	cos60, sin60 := math.Cos(math.Pi/3), math.Sin(math.Pi/3)
	for k := 0; k < NumLogoLEDs; k++ {
		col, row, _ := LogoCell(k)
		x := float64(col)/27 - 0.5
		y := -float64(row)/21 + 0.5
		rx := cos60*x - sin60*y - 0.5
		ry := sin60*x + cos60*y - 0.5

		p := l.Positions[LogoStart+k]
		assert.InDelta(t, 0.25+2*rx, p.X, tolerance, "logo LED %d x", k)
		assert.InDelta(t, -0.5+0.5*ry, p.Y, tolerance, "logo LED %d y", k)
		assert.InDelta(t, 0.75, p.Z, tolerance, "logo LED %d z", k)
	}
}

func TestLogoPositions_Distinct(t *testing.T) {
	l := Build(DefaultShape())
	for a := LogoStart; a < LogoStart+NumLogoLEDs; a++ {
		for b := a + 1; b < LogoStart+NumLogoLEDs; b++ {
			if r3.Norm(r3.Sub(l.Positions[a], l.Positions[b])) < 1e-6 {
				t.Errorf("logo LEDs %d and %d overlap at %v", a, b, l.Positions[a])
			}
		}
	}
}

func TestFixturesAreLiteral(t *testing.T) {
	s := unitShape()
	l := Build(s)
	assert.Equal(t, s.BackPos, l.Positions[BackIndex])
	assert.Equal(t, s.FloorPos, l.Positions[FloorIndex])
}

func TestBounds_CoverAllPositions(t *testing.T) {
	l := Build(DefaultShape())
	var hitMinX, hitMaxY bool
	for _, p := range l.Positions {
		assert.True(t, p.X >= l.Min.X && p.X <= l.Max.X)
		assert.True(t, p.Y >= l.Min.Y && p.Y <= l.Max.Y)
		assert.True(t, p.Z >= l.Min.Z && p.Z <= l.Max.Z)
		hitMinX = hitMinX || p.X == l.Min.X
		hitMaxY = hitMaxY || p.Y == l.Max.Y
	}
	assert.True(t, hitMinX, "Min.X should be attained by some LED")
	assert.True(t, hitMaxY, "Max.Y should be attained by some LED")
}

func TestInvertLogoOrder_MissingIndexFallsBack(t *testing.T) {
	original := monitoring.Logf
	defer func() { monitoring.Logf = original }()
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	order := append([]int(nil), logoOrder[:]...)
	for n, k := range order {
		if k == 5 {
			order[n] = __
		}
	}

	cells := invertLogoOrder(order, LogoGridWidth)
	assert.Equal(t, fallbackCell, cells[5])
	assert.Equal(t, logoCells[6], cells[6])
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "logo index 5")

	// the fallback cell is still inside the grid
	off := cellOffset(cells[5])
	assert.True(t, finite(off.X) && finite(off.Y))
}

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Build(DefaultShape()).Dump(&buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "=== TROPHY LED POSITIONS === N = 172\n"))
	for _, header := range []string{"  BASE:", "  LOGO:", "  SINGLE COLOR:", "-> Ranges:"} {
		assert.Contains(t, out, header)
	}
	assert.Contains(t, out, "    000: ")
	assert.Contains(t, out, "    171: 0.0000, -0.3500, 0.0000")
	// header + 3 partition headers + 172 LEDs + 4 range lines
	assert.Equal(t, 1+3+NumLEDs+4, strings.Count(out, "\n"))
}

func TestPackedVec4(t *testing.T) {
	l := Build(DefaultShape())
	packed := l.PackedVec4()
	require.Len(t, packed, 4*NumLEDs)
	for i := 0; i < NumLEDs; i++ {
		assert.Equal(t, float32(l.Positions[i].X), packed[4*i])
		assert.Zero(t, packed[4*i+3])
	}
}

func TestShapeValidate(t *testing.T) {
	assert.NoError(t, DefaultShape().Validate())

	bad := DefaultShape()
	bad.BaseSize = -1
	assert.Error(t, bad.Validate())

	bad = DefaultShape()
	bad.LogoCenter.Y = math.NaN()
	assert.ErrorContains(t, bad.Validate(), "logo_center")

	bad = DefaultShape()
	bad.LogoSize.X = math.Inf(1)
	assert.ErrorContains(t, bad.Validate(), "logo_size")

	bad = DefaultShape()
	bad.LogoSize.Y = 0
	assert.ErrorContains(t, bad.Validate(), "logo_size must be positive")
}
