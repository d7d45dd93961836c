package protocol

import (
	"errors"
	"fmt"
	"time"
)

// ErrTooLarge is returned when an update does not fit in one packet.
var ErrTooLarge = errors.New("update does not fit in one realtime packet")

// Encode builds the payload for u. WARLS requires every index to fit in a
// byte; DRGB requires entries to be indexed 0, 1, 2, ... in order.
func Encode(u *Update) ([]byte, error) {
	timeout, err := timeoutByte(u)
	if err != nil {
		return nil, err
	}

	switch u.Kind {
	case WARLS:
		size := headerSize + warlsSize*len(u.Entries)
		if size > MaxPacketSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
		}
		out := make([]byte, 0, size)
		out = append(out, byte(WARLS), timeout)
		for _, e := range u.Entries {
			if e.Index < 0 || e.Index > 255 {
				return nil, fmt.Errorf("WARLS index %d out of byte range", e.Index)
			}
			out = append(out, byte(e.Index), e.Color.R, e.Color.G, e.Color.B)
		}
		return out, nil

	case DRGB:
		size := headerSize + rgbSize*len(u.Entries)
		if size > MaxPacketSize || len(u.Entries) > MaxSequentialLEDs {
			return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
		}
		out := make([]byte, 0, size)
		out = append(out, byte(DRGB), timeout)
		for i, e := range u.Entries {
			if e.Index != i {
				return nil, fmt.Errorf("DRGB entry %d has index %d, entries must be sequential", i, e.Index)
			}
			out = append(out, e.Color.R, e.Color.G, e.Color.B)
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot encode protocol %v", u.Kind)
}

func timeoutByte(u *Update) (byte, error) {
	if !u.HasTimeout {
		return 0, nil
	}
	seconds := u.Timeout / time.Second
	if seconds < 1 || seconds > 255 || u.Timeout%time.Second != 0 {
		return 0, fmt.Errorf("timeout %v must be whole seconds between 1s and 255s", u.Timeout)
	}
	return byte(seconds), nil
}

// Sequential builds a DRGB update covering colors[0:].
func Sequential(colors []Color, timeout time.Duration) *Update {
	u := &Update{Kind: DRGB, Entries: make([]Entry, len(colors))}
	for i, c := range colors {
		u.Entries[i] = Entry{Index: i, Color: c}
	}
	u.setTimeout(timeout)
	return u
}

// Indexed builds a WARLS update from explicit entries.
func Indexed(entries []Entry, timeout time.Duration) *Update {
	u := &Update{Kind: WARLS, Entries: append([]Entry(nil), entries...)}
	u.setTimeout(timeout)
	return u
}

func (u *Update) setTimeout(d time.Duration) {
	if d > 0 {
		u.Timeout = d
		u.HasTimeout = true
	}
}
