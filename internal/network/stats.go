package network

import (
	"fmt"
	"sync"
	"time"

	"github.com/dltrophy/simulator/internal/monitoring"
)

// PacketStats counts traffic between two LogStats calls. It is safe for
// concurrent use.
type PacketStats struct {
	mu         sync.Mutex
	packets    int64
	bytes      int64
	unreadable int64
	dropped    int64
	ignored    int64
	total      int64
	lastReset  time.Time
	now        func() time.Time
}

// NewPacketStats starts counting now.
func NewPacketStats() *PacketStats {
	return &PacketStats{lastReset: time.Now(), now: time.Now}
}

// AddPacket counts one received datagram.
func (ps *PacketStats) AddPacket(bytes int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.packets++
	ps.total++
	ps.bytes += int64(bytes)
}

// AddUnreadable counts a datagram that failed to decode.
func (ps *PacketStats) AddUnreadable() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.unreadable++
}

// AddDropped counts a datagram the forwarder could not queue.
func (ps *PacketStats) AddDropped() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.dropped++
}

// AddIgnored counts update entries addressing LEDs the trophy does not have.
func (ps *PacketStats) AddIgnored(entries int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.ignored += int64(entries)
}

// Total is the number of datagrams received since start.
func (ps *PacketStats) Total() int64 {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.total
}

// StatsSnapshot is one interval of counters.
type StatsSnapshot struct {
	Packets, Bytes, Unreadable, Dropped, Ignored int64
	Duration                                     time.Duration
}

// GetAndReset returns the counters of the current interval and starts a new one.
func (ps *PacketStats) GetAndReset() StatsSnapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := ps.now()
	s := StatsSnapshot{
		Packets:    ps.packets,
		Bytes:      ps.bytes,
		Unreadable: ps.unreadable,
		Dropped:    ps.dropped,
		Ignored:    ps.ignored,
		Duration:   now.Sub(ps.lastReset),
	}
	ps.packets, ps.bytes, ps.unreadable, ps.dropped, ps.ignored = 0, 0, 0, 0, 0
	ps.lastReset = now
	return s
}

// LogStats logs the current interval and resets it. Quiet intervals are not
// logged.
func (ps *PacketStats) LogStats() {
	s := ps.GetAndReset()
	if s.Packets == 0 && s.Dropped == 0 {
		return
	}
	rate := 0.0
	if s.Duration > 0 {
		rate = float64(s.Packets) / s.Duration.Seconds()
	}
	monitoring.Logf("[Socket] %s packets (%s bytes, %.1f/s) in %v, %d unreadable, %d forward drops, %d entries out of range",
		formatWithCommas(s.Packets), formatWithCommas(s.Bytes), rate, s.Duration.Round(time.Millisecond),
		s.Unreadable, s.Dropped, s.Ignored)
}

// formatWithCommas formats a number with thousands separators
func formatWithCommas(n int64) string {
	str := fmt.Sprintf("%d", n)
	if n < 0 {
		return "-" + formatWithCommas(-n)
	}
	if len(str) <= 3 {
		return str
	}

	result := ""
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(char)
	}
	return result
}
