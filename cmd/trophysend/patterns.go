package main

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/dltrophy/simulator/internal/protocol"
	"github.com/dltrophy/simulator/internal/trophy"
)

// A pattern produces the update for one frame.
type pattern func(frame int) []protocol.Entry

var partitionColors = map[trophy.Partition]protocol.Color{
	trophy.Base:  {R: 255},
	trophy.Logo:  {G: 255},
	trophy.Back:  {B: 255},
	trophy.Floor: {R: 255, G: 255, B: 255},
}

func patterns(rng *rand.Rand) map[string]pattern {
	return map[string]pattern{
		"rainbow": func(frame int) []protocol.Entry {
			offset := math.Mod(float64(frame)*2, 360)
			return fill(func(i int) protocol.Color {
				return hsvToRGB(math.Mod(offset+float64(i)/trophy.NumLEDs*360, 360), 1, 1)
			})
		},
		"random": func(int) []protocol.Entry {
			return fill(func(int) protocol.Color {
				v := rng.Uint32()
				return protocol.Color{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16)}
			})
		},
		"clear": func(int) []protocol.Entry {
			return fill(func(int) protocol.Color { return protocol.Black })
		},
		"partitions": func(int) []protocol.Entry {
			return fill(func(i int) protocol.Color { return partitionColors[trophy.PartitionOf(i)] })
		},
		// chase lights one LED at a time and only sends what changed.
		"chase": func(frame int) []protocol.Entry {
			cur := frame % trophy.NumLEDs
			prev := (cur + trophy.NumLEDs - 1) % trophy.NumLEDs
			return []protocol.Entry{
				{Index: prev, Color: protocol.Black},
				{Index: cur, Color: protocol.Color{R: 255, G: 160}},
			}
		},
	}
}

func patternNames() []string {
	var names []string
	for name := range patterns(nil) {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fill(color func(i int) protocol.Color) []protocol.Entry {
	entries := make([]protocol.Entry, trophy.NumLEDs)
	for i := range entries {
		entries[i] = protocol.Entry{Index: i, Color: color(i)}
	}
	return entries
}

// hsvToRGB converts h in [0, 360) and s, v in [0, 1] to a color.
func hsvToRGB(h, s, v float64) protocol.Color {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60.0, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return protocol.Color{R: uint8((r + m) * 255), G: uint8((g + m) * 255), B: uint8((b + m) * 255)}
}

// buildPacket encodes one frame. DRGB packets must cover every LED from 0,
// so sparse patterns only encode as WARLS.
func buildPacket(kind protocol.Kind, entries []protocol.Entry, timeout time.Duration) ([]byte, error) {
	switch kind {
	case protocol.WARLS:
		return protocol.Encode(protocol.Indexed(entries, timeout))
	case protocol.DRGB:
		u := protocol.Indexed(entries, timeout)
		u.Kind = protocol.DRGB
		return protocol.Encode(u)
	}
	return nil, fmt.Errorf("unknown protocol %v", kind)
}
