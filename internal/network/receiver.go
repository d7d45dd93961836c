// Package network receives realtime LED packets from UDP, or replays them from
// a capture file, one packet per poll.
package network

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/dltrophy/simulator/internal/monitoring"
	"github.com/dltrophy/simulator/internal/protocol"
	"github.com/dltrophy/simulator/internal/timeutil"
)

// DefaultPollTimeout bounds how long Poll waits when nothing is pending.
const DefaultPollTimeout = time.Millisecond

// ErrNotOpen is returned by Poll before Open succeeded or after Close.
var ErrNotOpen = errors.New("receiver is not open")

// Packet is one received datagram.
type Packet struct {
	Data     []byte
	Source   string
	Received time.Time
}

// ReceiverConfig contains configuration options for the Receiver.
type ReceiverConfig struct {
	Port        int
	Address     string // bind host, empty for all interfaces
	RcvBuf      int
	PollTimeout time.Duration
	Factory     UDPSocketFactory
	Stats       *PacketStats
	Forwarder   *PacketForwarder
	Clock       timeutil.Clock
}

// Receiver is a polling UDP listener: Poll never blocks longer than the poll
// timeout and returns at most one packet.
type Receiver struct {
	port        int
	address     string
	rcvBuf      int
	pollTimeout time.Duration
	factory     UDPSocketFactory
	stats       *PacketStats
	forwarder   *PacketForwarder
	clock       timeutil.Clock

	conn UDPSocket
	buf  []byte
}

// NewReceiver creates a Receiver; call Open before polling.
func NewReceiver(cfg ReceiverConfig) *Receiver {
	r := &Receiver{
		port:        cfg.Port,
		address:     cfg.Address,
		rcvBuf:      cfg.RcvBuf,
		pollTimeout: cfg.PollTimeout,
		factory:     cfg.Factory,
		stats:       cfg.Stats,
		forwarder:   cfg.Forwarder,
		clock:       cfg.Clock,
		buf:         make([]byte, protocol.MaxPacketSize),
	}
	if r.pollTimeout <= 0 {
		r.pollTimeout = DefaultPollTimeout
	}
	if r.factory == nil {
		r.factory = RealUDPSocketFactory{}
	}
	if r.stats == nil {
		r.stats = NewPacketStats()
	}
	if r.clock == nil {
		r.clock = timeutil.RealClock{}
	}
	return r
}

// Open binds the socket.
func (r *Receiver) Open() error {
	addr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", r.address, r.port))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := r.factory.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("socket cannot listen on port %d, is it already in use? %w", r.port, err)
	}
	if r.rcvBuf > 0 {
		if err := conn.SetReadBuffer(r.rcvBuf); err != nil {
			monitoring.Logf("[Socket] Warning: failed to set UDP receive buffer size to %d: %v", r.rcvBuf, err)
		}
	}
	r.conn = conn
	monitoring.Logf("[Socket] Listening for UDP packets on port %d", r.port)
	return nil
}

// Port returns the port the receiver is configured for.
func (r *Receiver) Port() int { return r.port }

// RunsOn reports whether the receiver is bound to port.
func (r *Receiver) RunsOn(port int) bool {
	return r.conn != nil && r.port == port
}

// Rebind closes the socket and opens a new one on port. On failure the
// receiver stays closed.
func (r *Receiver) Rebind(port int) error {
	if err := r.Close(); err != nil {
		monitoring.Logf("[Socket] Error closing port %d: %v", r.port, err)
	}
	r.port = port
	return r.Open()
}

// Stats returns the receiver's packet counters.
func (r *Receiver) Stats() *PacketStats { return r.stats }

// Poll returns the next pending packet, or ok=false when nothing arrived.
// A read timeout is not an error.
func (r *Receiver) Poll() (pkt Packet, ok bool, err error) {
	if r.conn == nil {
		return Packet{}, false, ErrNotOpen
	}
	if err := r.conn.SetReadDeadline(time.Now().Add(r.pollTimeout)); err != nil {
		return Packet{}, false, fmt.Errorf("failed to set read deadline: %w", err)
	}

	n, addr, err := r.conn.ReadFromUDP(r.buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return Packet{}, false, nil
		}
		return Packet{}, false, fmt.Errorf("UDP read error: %w", err)
	}

	data := make([]byte, n)
	copy(data, r.buf[:n])
	r.stats.AddPacket(n)
	if r.forwarder != nil {
		r.forwarder.ForwardAsync(data)
	}

	source := ""
	if addr != nil {
		source = addr.String()
	}
	return Packet{Data: data, Source: source, Received: r.clock.Now()}, true, nil
}

// Close releases the socket.
func (r *Receiver) Close() error {
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	monitoring.Logf("[Socket] Stopped listening on port %d", r.port)
	return err
}
