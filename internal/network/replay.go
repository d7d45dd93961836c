package network

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/dltrophy/simulator/internal/timeutil"
)

// pcapngMagic starts every pcapng section header block.
var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// captureReader is what pcapgo's classic and pcapng readers have in common.
type captureReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// CapturedPacket is a UDP payload taken from a capture file.
type CapturedPacket struct {
	Packet
	// Offset is the capture time relative to the first matching packet.
	Offset time.Duration
}

// LoadPCAP reads a pcap or pcapng file and returns the payloads of all UDP
// datagrams sent to port, in capture order. port 0 keeps every UDP datagram.
func LoadPCAP(path string, port int) ([]CapturedPacket, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture %s: %w", path, err)
	}
	defer f.Close()
	return ReadCapture(f, port)
}

// ReadCapture is LoadPCAP for an already open stream.
func ReadCapture(r io.Reader, port int) ([]CapturedPacket, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}

	var src captureReader
	if bytes.Equal(magic, pcapngMagic) {
		src, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		src, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse capture header: %w", err)
	}

	var (
		out   []CapturedPacket
		first time.Time
	)
	for {
		data, ci, err := src.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("failed to read packet %d: %w", len(out)+1, err)
		}

		packet := gopacket.NewPacket(data, src.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if port != 0 && int(udp.DstPort) != port {
			continue
		}

		if len(out) == 0 {
			first = ci.Timestamp
		}
		payload := make([]byte, len(udp.Payload))
		copy(payload, udp.Payload)
		out = append(out, CapturedPacket{
			Packet: Packet{
				Data:     payload,
				Source:   captureSource(packet, udp),
				Received: ci.Timestamp,
			},
			Offset: ci.Timestamp.Sub(first),
		})
	}
}

func captureSource(packet gopacket.Packet, udp *layers.UDP) string {
	port := strconv.Itoa(int(udp.SrcPort))
	switch ip := packet.NetworkLayer().(type) {
	case *layers.IPv4:
		return net.JoinHostPort(ip.SrcIP.String(), port)
	case *layers.IPv6:
		return net.JoinHostPort(ip.SrcIP.String(), port)
	}
	return ":" + port
}

// ReplaySource plays captured packets back with their original spacing. It
// offers the same Poll contract as Receiver, so the frame loop cannot tell a
// replay from a live socket.
type ReplaySource struct {
	packets []CapturedPacket
	clock   timeutil.Clock
	loop    bool
	stats   *PacketStats

	next  int
	start time.Time
}

// NewReplaySource replays packets against clock, starting at the first Poll.
// With loop set, playback restarts after the last packet.
func NewReplaySource(packets []CapturedPacket, clock timeutil.Clock, loop bool) *ReplaySource {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &ReplaySource{packets: packets, clock: clock, loop: loop, stats: NewPacketStats()}
}

// Stats returns the replay's packet counters.
func (s *ReplaySource) Stats() *PacketStats { return s.stats }

// Done reports whether a non-looping replay has delivered every packet.
func (s *ReplaySource) Done() bool {
	return !s.loop && s.next >= len(s.packets)
}

// Poll returns the next packet once its capture offset has elapsed.
func (s *ReplaySource) Poll() (Packet, bool, error) {
	if len(s.packets) == 0 {
		return Packet{}, false, nil
	}
	now := s.clock.Now()
	if s.start.IsZero() {
		s.start = now
	}
	if s.next >= len(s.packets) {
		if !s.loop {
			return Packet{}, false, nil
		}
		s.next = 0
		s.start = now
	}

	p := s.packets[s.next]
	if now.Sub(s.start) < p.Offset {
		return Packet{}, false, nil
	}
	s.next++
	s.stats.AddPacket(len(p.Data))

	pkt := p.Packet
	pkt.Received = now
	return pkt, true, nil
}
