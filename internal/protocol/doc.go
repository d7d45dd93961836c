// Package protocol decodes the WLED UDP realtime payloads the trophy listens
// to.
//
// Two variants are understood, selected by the first byte:
//
//	1 WARLS  [1, timeout, (index, r, g, b)...]   explicit index per LED
//	2 DRGB   [2, timeout, (r, g, b)...]          LEDs 0, 1, 2, ... in order
//
// The second byte is the number of seconds the sender wants to stay in
// control of the display; 0 leaves the current timeout unchanged.
//
// Decode never fails with an error: anything it cannot read becomes an
// Unreadable message carrying the reason. Index values are passed through as
// sent; bounds against the display size are the consumer's business.
package protocol
