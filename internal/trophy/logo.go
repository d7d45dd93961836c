package trophy

import (
	"math"

	"github.com/dltrophy/simulator/internal/monitoring"
	"gonum.org/v1/gonum/spatial/r2"
)

// gridCell is a (column, row) position on the logo grid; row 0 is the top.
type gridCell struct {
	Col, Row int
}

// fallbackCell is used for a logo index the grid table does not contain:
// the trailing cell of the grid.
var fallbackCell = gridCell{Col: LogoGridWidth - 1, Row: LogoGridHeight - 1}

// logoCells is the inverse of logoOrder, built once.
var logoCells = invertLogoOrder(logoOrder[:], LogoGridWidth)

// invertLogoOrder turns the cell->index table into an index->cell lookup.
// Indices missing from the table get fallbackCell and a diagnostic line.
func invertLogoOrder(order []int, width int) [NumLogoLEDs]gridCell {
	var cells [NumLogoLEDs]gridCell
	var seen [NumLogoLEDs]bool
	for n, k := range order {
		if k < 0 || k >= NumLogoLEDs {
			continue
		}
		if seen[k] {
			monitoring.Logf("[Trophy LED] logo index %d appears twice in the grid table, keeping the first cell", k)
			continue
		}
		seen[k] = true
		cells[k] = gridCell{Col: n % width, Row: n / width}
	}
	for k := range cells {
		if !seen[k] {
			monitoring.Logf("[Trophy LED] logo index %d is not on the grid, placing it at cell (%d, %d)",
				k, fallbackCell.Col, fallbackCell.Row)
			cells[k] = fallbackCell
		}
	}
	return cells
}

// LogoCell returns the grid cell of logo LED k (0-based within the logo).
func LogoCell(k int) (col, row int, ok bool) {
	if k < 0 || k >= NumLogoLEDs {
		return 0, 0, false
	}
	c := logoCells[k]
	return c.Col, c.Row, true
}

// logoRotation matches the 60 degree rotation of the logo silkscreen.
var logoRotation = r2.NewRotation(math.Pi/3, r2.Vec{})

// logoAlignment is applied after rotating to line the logo up with the base.
var logoAlignment = r2.Vec{X: -0.5, Y: -0.5}

func logoOffset(k int) r2.Vec {
	return cellOffset(logoCells[k])
}

// cellOffset converts a grid cell to the rotated unit-square coordinate. y
// grows upward while rows grow downward.
func cellOffset(c gridCell) r2.Vec {
	centered := r2.Vec{
		X: float64(c.Col)/LogoGridWidth - 0.5,
		Y: -float64(c.Row)/LogoGridHeight + 0.5,
	}
	return r2.Add(logoRotation.Rotate(centered), logoAlignment)
}
