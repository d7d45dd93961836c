package network

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dltrophy/simulator/internal/timeutil"
)

var sender = &net.UDPAddr{IP: net.IPv4(192, 168, 1, 20), Port: 50123}

func openMockReceiver(t *testing.T, packets ...MockUDPPacket) (*Receiver, *MockUDPSocket, *timeutil.MockClock) {
	t.Helper()
	socket := NewMockUDPSocket(21324, packets...)
	clock := timeutil.NewMockClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	r := NewReceiver(ReceiverConfig{
		Port:    21324,
		RcvBuf:  4096,
		Factory: NewMockUDPSocketFactory(socket),
		Clock:   clock,
	})
	require.NoError(t, r.Open())
	return r, socket, clock
}

func TestNewReceiver_Defaults(t *testing.T) {
	r := NewReceiver(ReceiverConfig{Port: 21324})

	assert.Equal(t, DefaultPollTimeout, r.pollTimeout)
	assert.IsType(t, RealUDPSocketFactory{}, r.factory)
	assert.NotNil(t, r.Stats())
	assert.Equal(t, 21324, r.Port())
	assert.False(t, r.RunsOn(21324), "not open yet")
}

func TestReceiver_PollBeforeOpen(t *testing.T) {
	r := NewReceiver(ReceiverConfig{Port: 21324, Factory: NewMockUDPSocketFactory()})

	_, ok, err := r.Poll()
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestReceiver_PollReturnsOnePacketPerCall(t *testing.T) {
	r, socket, clock := openMockReceiver(t,
		MockUDPPacket{Data: []byte{2, 1, 255, 0, 0}, Addr: sender},
		MockUDPPacket{Data: []byte{1, 0, 5, 1, 2, 3}, Addr: sender},
	)
	assert.Equal(t, 4096, socket.ReadBufferSize)

	pkt, ok, err := r.Poll()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{2, 1, 255, 0, 0}, pkt.Data)
	assert.Equal(t, "192.168.1.20:50123", pkt.Source)
	assert.Equal(t, clock.Now(), pkt.Received)
	assert.Equal(t, 1, socket.Pending())

	pkt, ok, err = r.Poll()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 0, 5, 1, 2, 3}, pkt.Data)

	_, ok, err = r.Poll()
	require.NoError(t, err)
	assert.False(t, ok, "an empty socket times out without error")

	assert.Equal(t, int64(2), r.Stats().Total())
	assert.Len(t, socket.Deadlines, 3)
}

func TestReceiver_PacketDataIsNotShared(t *testing.T) {
	r, socket, _ := openMockReceiver(t)
	socket.Enqueue([]byte{2, 0, 1, 1, 1}, sender)
	socket.Enqueue([]byte{2, 0, 9, 9, 9}, sender)

	first, ok, err := r.Poll()
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = r.Poll()
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, []byte{2, 0, 1, 1, 1}, first.Data)
}

func TestReceiver_ReadError(t *testing.T) {
	r, socket, _ := openMockReceiver(t)
	socket.ReadError = errors.New("boom")

	_, ok, err := r.Poll()
	assert.False(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestReceiver_OpenFailure(t *testing.T) {
	factory := NewMockUDPSocketFactory()
	factory.Error = errors.New("address already in use")
	r := NewReceiver(ReceiverConfig{Port: 21324, Factory: factory})

	err := r.Open()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port 21324")
	assert.False(t, r.RunsOn(21324))
}

func TestReceiver_Rebind(t *testing.T) {
	old := NewMockUDPSocket(21324)
	replacement := NewMockUDPSocket(4048, MockUDPPacket{Data: []byte{2, 0}, Addr: sender})
	factory := NewMockUDPSocketFactory(old, replacement)
	r := NewReceiver(ReceiverConfig{Port: 21324, Factory: factory})
	require.NoError(t, r.Open())
	require.True(t, r.RunsOn(21324))

	require.NoError(t, r.Rebind(4048))

	assert.True(t, old.Closed)
	assert.True(t, r.RunsOn(4048))
	assert.False(t, r.RunsOn(21324))
	assert.Equal(t, []int{21324, 4048}, factory.Ports)

	_, ok, err := r.Poll()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReceiver_CloseTwice(t *testing.T) {
	r, socket, _ := openMockReceiver(t)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.True(t, socket.Closed)

	_, _, err := r.Poll()
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestReceiver_RealSocket(t *testing.T) {
	r := NewReceiver(ReceiverConfig{Address: "127.0.0.1", Port: 0, PollTimeout: 20 * time.Millisecond})
	require.NoError(t, r.Open())
	defer r.Close()

	_, ok, err := r.Poll()
	require.NoError(t, err)
	assert.False(t, ok)

	local := r.conn.LocalAddr().(*net.UDPAddr)
	conn, err := net.DialUDP("udp4", nil, local)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte{2, 0, 10, 20, 30})
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		pkt, ok, err := r.Poll()
		require.NoError(t, err)
		if ok {
			assert.Equal(t, []byte{2, 0, 10, 20, 30}, pkt.Data)
			return
		}
	}
	t.Fatal("packet never arrived")
}
