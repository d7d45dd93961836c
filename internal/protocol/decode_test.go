package protocol

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var received = time.Date(2025, 5, 10, 21, 30, 0, 0, time.UTC)

const sender = "192.168.0.23:51234"

func mustUpdate(t *testing.T, m Message) *Update {
	t.Helper()
	u, ok := m.(*Update)
	require.Truef(t, ok, "expected *Update, got %T (%s)", m, Summary(m))
	return u
}

func mustUnreadable(t *testing.T, m Message) *Unreadable {
	t.Helper()
	u, ok := m.(*Unreadable)
	require.Truef(t, ok, "expected *Unreadable, got %T (%s)", m, Summary(m))
	return u
}

func TestDecode_Updates(t *testing.T) {
	tests := []struct {
		name        string
		payload     []byte
		wantKind    Kind
		wantEntries []Entry
		wantTimeout time.Duration
		hasTimeout  bool
	}{
		{
			name:     "DRGB two LEDs without timeout",
			payload:  []byte{2, 0, 255, 0, 0, 0, 255, 0},
			wantKind: DRGB,
			wantEntries: []Entry{
				{Index: 0, Color: Color{255, 0, 0}},
				{Index: 1, Color: Color{0, 255, 0}},
			},
		},
		{
			name:        "WARLS single LED with timeout",
			payload:     []byte{1, 5, 3, 10, 20, 30},
			wantKind:    WARLS,
			wantEntries: []Entry{{Index: 3, Color: Color{10, 20, 30}}},
			wantTimeout: 5 * time.Second,
			hasTimeout:  true,
		},
		{
			name:     "DRGB trailing two byte fragment is dropped",
			payload:  []byte{2, 0, 1, 2, 3, 4, 5},
			wantKind: DRGB,
			wantEntries: []Entry{
				{Index: 0, Color: Color{1, 2, 3}},
			},
		},
		{
			name:        "DRGB trailing single byte is dropped",
			payload:     []byte{2, 0, 1, 2, 3, 9},
			wantKind:    DRGB,
			wantEntries: []Entry{{Index: 0, Color: Color{1, 2, 3}}},
		},
		{
			name:        "WARLS trailing partial group is dropped",
			payload:     []byte{1, 0, 7, 1, 1, 1, 8, 2, 2},
			wantKind:    WARLS,
			wantEntries: []Entry{{Index: 7, Color: Color{1, 1, 1}}},
		},
		{
			name:     "WARLS duplicate indices keep packet order",
			payload:  []byte{1, 0, 4, 1, 1, 1, 4, 9, 9, 9},
			wantKind: WARLS,
			wantEntries: []Entry{
				{Index: 4, Color: Color{1, 1, 1}},
				{Index: 4, Color: Color{9, 9, 9}},
			},
		},
		{
			name:        "WARLS index beyond display is passed through",
			payload:     []byte{1, 0, 250, 1, 2, 3},
			wantKind:    WARLS,
			wantEntries: []Entry{{Index: 250, Color: Color{1, 2, 3}}},
		},
		{
			name:        "header only is an empty update",
			payload:     []byte{2, 255},
			wantKind:    DRGB,
			wantEntries: []Entry{},
			wantTimeout: 255 * time.Second,
			hasTimeout:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := mustUpdate(t, Decode(tt.payload, sender, received))
			assert.Equal(t, tt.wantKind, u.Kind)
			if diff := cmp.Diff(tt.wantEntries, u.Entries); diff != "" {
				t.Errorf("entries mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.hasTimeout, u.HasTimeout)
			assert.Equal(t, tt.wantTimeout, u.Timeout)
			assert.Equal(t, sender, u.Source())
			assert.Equal(t, received, u.Received())
		})
	}
}

func TestDecode_Unreadable(t *testing.T) {
	tests := []struct {
		name       string
		payload    []byte
		wantReason string
	}{
		{"unknown protocol byte", []byte{9, 0, 1, 2, 3}, ReasonUnknownProtocol},
		{"WLED notifier protocol is not realtime", []byte{0, 0, 1, 2, 3}, ReasonUnknownProtocol},
		{"empty buffer", []byte{}, ReasonTooShort},
		{"nil buffer", nil, ReasonTooShort},
		{"single byte", []byte{2}, ReasonTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := mustUnreadable(t, Decode(tt.payload, sender, received))
			assert.NotEmpty(t, u.Reason)
			assert.True(t, strings.HasPrefix(u.Reason, tt.wantReason), "reason %q", u.Reason)
			assert.Equal(t, len(tt.payload), len(u.Raw))
			assert.Equal(t, received, u.Received())
		})
	}
}

func TestDecode_UnreadableKeepsCopy(t *testing.T) {
	payload := []byte{9, 0, 1}
	u := mustUnreadable(t, Decode(payload, sender, received))
	payload[2] = 42
	assert.Equal(t, byte(1), u.Raw[2], "Raw must not alias the receive buffer")
}

func TestDecode_DRGBFullPacket(t *testing.T) {
	payload := make([]byte, MaxPacketSize)
	payload[0] = byte(DRGB)
	for i := 2; i < len(payload); i++ {
		payload[i] = byte(i)
	}
	u := mustUpdate(t, Decode(payload, sender, received))
	// 1022 body bytes: 340 full triplets, 2 bytes left over
	require.Len(t, u.Entries, 340)
	for i, e := range u.Entries {
		assert.Equal(t, i, e.Index)
	}
	start := headerSize + 339*rgbSize
	assert.Equal(t, Color{R: byte(start), G: byte(start + 1), B: byte(start + 2)}, u.Entries[339].Color)
}

func TestDecode_DRGBTruncatesPastAddressableRange(t *testing.T) {
	payload := make([]byte, headerSize+rgbSize*(MaxSequentialLEDs+10))
	payload[0] = byte(DRGB)
	u := mustUpdate(t, Decode(payload, sender, received))
	assert.Len(t, u.Entries, MaxSequentialLEDs)
}

func TestDecode_NeverPanics(t *testing.T) {
	// every prefix of a mixed buffer, for every leading byte
	base := bytes.Repeat([]byte{1, 2, 3, 4, 5, 6, 7}, 20)
	for first := 0; first < 256; first++ {
		buf := append([]byte{byte(first)}, base...)
		for n := 0; n <= len(buf); n++ {
			m := Decode(buf[:n], "", received)
			require.NotNil(t, m)
			switch m := m.(type) {
			case *Update:
				assert.Contains(t, []Kind{WARLS, DRGB}, m.Kind)
			case *Unreadable:
				assert.NotEmpty(t, m.Reason)
			}
		}
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "WARLS", WARLS.String())
	assert.Equal(t, "DRGB", DRGB.String())
	assert.Equal(t, "Kind(7)", Kind(7).String())
}

func TestColorFormatting(t *testing.T) {
	c := Color{R: 255, G: 16, B: 0}
	assert.Equal(t, "255, 16, 0", c.String())
	assert.Equal(t, "#ff1000", c.Hex())
}
