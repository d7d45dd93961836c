package serialmirror

import (
	"github.com/dltrophy/simulator/internal/ledstate"
)

// Adalight frames start with "Ada", the LED count minus one (big endian) and
// a checksum of those two bytes, followed by r, g, b per LED.
const (
	adalightHeaderSize = 6
	adalightMagic      = "Ada"
	adalightChecksum   = 0x55
)

// AdalightFrame encodes colors as one Adalight frame.
func AdalightFrame(colors ledstate.Colors) []byte {
	n := len(colors) - 1
	hi, lo := byte(n>>8), byte(n)

	frame := make([]byte, 0, adalightHeaderSize+3*len(colors))
	frame = append(frame, adalightMagic...)
	frame = append(frame, hi, lo, hi^lo^adalightChecksum)
	return append(frame, colors.PackedRGB()...)
}
