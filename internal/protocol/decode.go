package protocol

import (
	"fmt"
	"time"
)

const (
	// MaxPacketSize is the largest realtime payload WLED accepts.
	MaxPacketSize = 1024

	// MaxSequentialLEDs is the most LEDs a DRGB packet may address.
	MaxSequentialLEDs = 490

	headerSize = 2
	rgbSize    = 3
	warlsSize  = 4
)

// Reasons reported by Unreadable messages.
const (
	ReasonTooShort        = "buffer too short"
	ReasonUnknownProtocol = "unrecognized protocol byte"
)

// Decode interprets one packet. It always returns a Message and never panics,
// whatever the payload holds. The payload is copied where it is retained.
func Decode(payload []byte, source string, received time.Time) Message {
	h := Header{From: source, At: received}

	if len(payload) < headerSize {
		return &Unreadable{Header: h, Reason: ReasonTooShort, Raw: clone(payload)}
	}

	u := &Update{Header: h, Kind: Kind(payload[0])}
	if seconds := payload[1]; seconds != 0 {
		u.Timeout = time.Duration(seconds) * time.Second
		u.HasTimeout = true
	}
	body := payload[headerSize:]

	switch u.Kind {
	case WARLS:
		u.Entries = decodeWARLS(body)
	case DRGB:
		u.Entries = decodeDRGB(body)
	default:
		return &Unreadable{
			Header: h,
			Reason: fmt.Sprintf("%s %d", ReasonUnknownProtocol, payload[0]),
			Raw:    clone(payload),
		}
	}
	return u
}

// decodeWARLS reads (index, r, g, b) groups; a trailing partial group is
// dropped.
func decodeWARLS(body []byte) []Entry {
	entries := make([]Entry, 0, len(body)/warlsSize)
	for len(body) >= warlsSize {
		entries = append(entries, Entry{
			Index: int(body[0]),
			Color: Color{R: body[1], G: body[2], B: body[3]},
		})
		body = body[warlsSize:]
	}
	return entries
}

// decodeDRGB reads (r, g, b) groups for LEDs 0, 1, 2, ... A trailing partial
// group and anything past MaxSequentialLEDs is dropped.
func decodeDRGB(body []byte) []Entry {
	n := len(body) / rgbSize
	if n > MaxSequentialLEDs {
		n = MaxSequentialLEDs
	}
	entries := make([]Entry, n)
	for i := range entries {
		g := body[i*rgbSize:]
		entries[i] = Entry{Index: i, Color: Color{R: g[0], G: g[1], B: g[2]}}
	}
	return entries
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
