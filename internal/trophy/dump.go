package trophy

import (
	"fmt"
	"io"
)

// Dump writes every computed position grouped by partition, followed by the
// bounding box.
func (l *Layout) Dump(w io.Writer) error {
	width := len(fmt.Sprint(NumLEDs))
	if _, err := fmt.Fprintf(w, "=== TROPHY LED POSITIONS === N = %d\n", NumLEDs); err != nil {
		return err
	}
	for i, p := range l.Positions {
		var header string
		switch i {
		case BaseStart:
			header = "  BASE:\n"
		case LogoStart:
			header = "  LOGO:\n"
		case NumRGBLEDs:
			header = "  SINGLE COLOR:\n"
		}
		if _, err := fmt.Fprintf(w, "%s    %0*d: %.4f, %.4f, %.4f\n", header, width, i, p.X, p.Y, p.Z); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "-> Ranges:\n   X [%.4f, %.4f]\n   Y [%.4f, %.4f]\n   Z [%.4f, %.4f]\n",
		l.Min.X, l.Max.X, l.Min.Y, l.Max.Y, l.Min.Z, l.Max.Z)
	return err
}
