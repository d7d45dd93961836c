package protocol

import (
	"fmt"
	"time"
)

// Kind identifies the addressing scheme of an update.
type Kind uint8

const (
	// WARLS addresses LEDs explicitly, one (index, R, G, B) group per entry.
	WARLS Kind = 1
	// DRGB addresses LEDs implicitly from index 0, one (R, G, B) group per LED.
	DRGB Kind = 2
)

func (k Kind) String() string {
	switch k {
	case WARLS:
		return "WARLS"
	case DRGB:
		return "DRGB"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Color is one 8-bit RGB triple.
type Color struct {
	R, G, B uint8
}

// Black is the zero Color.
var Black = Color{}

func (c Color) String() string {
	return fmt.Sprintf("%d, %d, %d", c.R, c.G, c.B)
}

// Hex formats the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Entry sets one LED index to a color.
type Entry struct {
	Index int
	Color Color
}

// Message is the result of decoding one packet: either an *Update or an
// *Unreadable. No other implementations exist.
type Message interface {
	// Source is the sender address, "" when unknown.
	Source() string
	// Received is when the packet was decoded.
	Received() time.Time

	sealed()
}

// Header carries the fields every Message has.
type Header struct {
	From string
	At   time.Time
}

// Source returns the sender.
func (h Header) Source() string { return h.From }

// Received returns the decode time.
func (h Header) Received() time.Time { return h.At }

// Update is a successfully decoded packet. Entries keep the order of the
// packet; an index may appear more than once and the last one wins.
type Update struct {
	Header
	Kind       Kind
	Entries    []Entry
	Timeout    time.Duration
	HasTimeout bool
}

func (*Update) sealed() {}

// Unreadable is a packet that could not be decoded. No state may be changed
// because of it.
type Unreadable struct {
	Header
	Reason string
	Raw    []byte
}

func (*Unreadable) sealed() {}
