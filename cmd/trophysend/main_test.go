package main

import (
	"context"
	"math/rand/v2"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dltrophy/simulator/internal/ledstate"
	"github.com/dltrophy/simulator/internal/protocol"
	"github.com/dltrophy/simulator/internal/trophy"
)

func TestParseKind(t *testing.T) {
	k, err := parseKind("WARLS")
	require.NoError(t, err)
	assert.Equal(t, protocol.WARLS, k)
	k, err = parseKind("2")
	require.NoError(t, err)
	assert.Equal(t, protocol.DRGB, k)
	_, err = parseKind("ddp")
	assert.Error(t, err)
}

func TestHSVToRGB(t *testing.T) {
	assert.Equal(t, protocol.Color{R: 255}, hsvToRGB(0, 1, 1))
	assert.Equal(t, protocol.Color{G: 255}, hsvToRGB(120, 1, 1))
	assert.Equal(t, protocol.Color{B: 255}, hsvToRGB(240, 1, 1))
	assert.Equal(t, protocol.Color{}, hsvToRGB(77, 1, 0))
}

// Every pattern must decode back into the store it was meant for.
func TestPatternsRoundTrip(t *testing.T) {
	all := patterns(rand.New(rand.NewPCG(1, 2)))
	for _, name := range patternNames() {
		for _, kind := range []protocol.Kind{protocol.WARLS, protocol.DRGB} {
			entries := all[name](3)
			packet, err := buildPacket(kind, entries, 2*time.Second)
			if name == "chase" && kind == protocol.DRGB {
				assert.Error(t, err, "chase is sparse")
				continue
			}
			require.NoError(t, err, "%s/%s", name, kind)

			msg := protocol.Decode(packet, "test", time.Unix(0, 0))
			u, ok := msg.(*protocol.Update)
			require.True(t, ok, "%s/%s decoded to %T", name, kind, msg)
			assert.Equal(t, 2*time.Second, u.Timeout)

			store := ledstate.New()
			applied, ignored := store.Apply(u)
			assert.Equal(t, len(entries), applied)
			assert.Zero(t, ignored)
			for _, e := range entries {
				c, _ := store.Get(e.Index)
				assert.Equal(t, e.Color, c)
			}
		}
	}
}

func TestPartitionsPattern(t *testing.T) {
	entries := patterns(nil)["partitions"](0)
	require.Len(t, entries, trophy.NumLEDs)
	assert.Equal(t, protocol.Color{R: 255}, entries[trophy.BaseStart].Color)
	assert.Equal(t, protocol.Color{G: 255}, entries[trophy.LogoStart].Color)
	assert.Equal(t, protocol.Color{B: 255}, entries[trophy.BackIndex].Color)
	assert.Equal(t, protocol.Color{R: 255, G: 255, B: 255}, entries[trophy.FloorIndex].Color)
}

func TestSend(t *testing.T) {
	target, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer target.Close()

	conn, err := net.Dial("udp", target.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	sent, err := send(context.Background(), conn, protocol.WARLS, patterns(nil)["chase"], 0, 200, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)

	require.NoError(t, target.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64)
	n, _, err := target.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 171, 0, 0, 0, 0, 255, 160, 0}, buf[:n])
}
