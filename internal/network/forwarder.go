package network

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dltrophy/simulator/internal/monitoring"
)

// forwardQueueSize is how many packets may wait for the forwarder.
const forwardQueueSize = 64

// PacketForwarder relays received packets to another realtime receiver, such
// as the physical trophy, so one sender can drive both. Forwarding never
// blocks the frame loop; packets are dropped when the queue is full.
type PacketForwarder struct {
	conn        net.Conn
	channel     chan []byte
	stats       *PacketStats
	logInterval time.Duration
	address     string
	closeOnce   sync.Once
}

// NewPacketForwarder dials the forward target.
func NewPacketForwarder(addr string, port int, stats *PacketStats, logInterval time.Duration) (*PacketForwarder, error) {
	forwardAddress := net.JoinHostPort(addr, fmt.Sprint(port))
	udpAddr, err := net.ResolveUDPAddr("udp", forwardAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %w", err)
	}
	return newPacketForwarder(conn, forwardAddress, stats, logInterval), nil
}

func newPacketForwarder(conn net.Conn, address string, stats *PacketStats, logInterval time.Duration) *PacketForwarder {
	if stats == nil {
		stats = NewPacketStats()
	}
	if logInterval <= 0 {
		logInterval = time.Minute
	}
	return &PacketForwarder{
		conn:        conn,
		channel:     make(chan []byte, forwardQueueSize),
		stats:       stats,
		logInterval: logInterval,
		address:     address,
	}
}

// Start runs the forwarding goroutine until ctx is done. Write errors are
// summarised once per log interval.
func (f *PacketForwarder) Start(ctx context.Context) {
	go func() {
		failed := 0
		var lastError error
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case packet, ok := <-f.channel:
				if !ok {
					return
				}
				if _, err := f.conn.Write(packet); err != nil {
					failed++
					lastError = err
				}
			case <-ticker.C:
				if failed > 0 && lastError != nil {
					monitoring.Logf("[Forward] %d packets to %s failed (latest: %v)", failed, f.address, lastError)
					failed = 0
					lastError = nil
				}
			}
		}
	}()

	monitoring.Logf("[Forward] Forwarding packets to %s", f.address)
}

// ForwardAsync queues packet without blocking. The caller keeps ownership of
// packet; a copy is queued.
func (f *PacketForwarder) ForwardAsync(packet []byte) {
	packetCopy := make([]byte, len(packet))
	copy(packetCopy, packet)

	select {
	case f.channel <- packetCopy:
	default:
		f.stats.AddDropped()
	}
}

// Close stops accepting packets and closes the connection.
func (f *PacketForwarder) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.channel)
		err = f.conn.Close()
	})
	return err
}
