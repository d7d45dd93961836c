package network

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dltrophy/simulator/internal/monitoring"
)

func TestPacketStats_GetAndReset(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := start
	ps := NewPacketStats()
	ps.lastReset = start
	ps.now = func() time.Time { return now }

	ps.AddPacket(100)
	ps.AddPacket(50)
	ps.AddUnreadable()
	ps.AddDropped()
	ps.AddIgnored(3)
	now = start.Add(2 * time.Second)

	s := ps.GetAndReset()
	assert.Equal(t, StatsSnapshot{
		Packets:    2,
		Bytes:      150,
		Unreadable: 1,
		Dropped:    1,
		Ignored:    3,
		Duration:   2 * time.Second,
	}, s)

	assert.Equal(t, StatsSnapshot{}, ps.GetAndReset())
	assert.Equal(t, int64(2), ps.Total(), "total survives resets")
}

func TestPacketStats_Concurrent(t *testing.T) {
	ps := NewPacketStats()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ps.AddPacket(10)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(800), ps.Total())
	assert.Equal(t, int64(8000), ps.GetAndReset().Bytes)
}

func TestPacketStats_LogStats(t *testing.T) {
	var lines []string
	prev := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = prev })
	monitoring.SetLogger(func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	})

	ps := NewPacketStats()
	ps.LogStats()
	assert.Empty(t, lines, "quiet interval")

	ps.AddPacket(1234567)
	ps.LogStats()
	if assert.Len(t, lines, 1) {
		assert.Contains(t, lines[0], "1 packets")
		assert.Contains(t, lines[0], "1,234,567 bytes")
	}
}

func TestFormatWithCommas(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{123456, "123,456"},
		{1234567, "1,234,567"},
		{-4500, "-4,500"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatWithCommas(tt.in), "input %d", tt.in)
	}
}
