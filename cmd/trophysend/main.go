// Command trophysend drives a trophy, real or simulated, with test patterns
// over the WLED realtime UDP protocols.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dltrophy/simulator/internal/config"
	"github.com/dltrophy/simulator/internal/protocol"
	"github.com/dltrophy/simulator/internal/version"
)

var (
	host        = flag.String("host", "127.0.0.1", "Trophy host")
	port        = flag.Int("port", config.DefaultUDPPort, "Trophy UDP port")
	proto       = flag.String("protocol", "drgb", "Realtime protocol: warls or drgb")
	patternName = flag.String("pattern", "rainbow", "Pattern: "+strings.Join(patternNames(), ", "))
	fps         = flag.Int("fps", 30, "Frames per second")
	frames      = flag.Int("frames", 0, "Number of frames to send (0 = until interrupted)")
	timeout     = flag.Int("timeout", 2, "Realtime timeout in seconds sent with every packet (0 = unspecified)")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func parseKind(s string) (protocol.Kind, error) {
	switch strings.ToLower(s) {
	case "warls", "1":
		return protocol.WARLS, nil
	case "drgb", "2":
		return protocol.DRGB, nil
	}
	return 0, fmt.Errorf("unknown protocol %q, use warls or drgb", s)
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println("trophysend", version.String())
		return
	}

	kind, err := parseKind(*proto)
	if err != nil {
		log.Fatal(err)
	}
	next, ok := patterns(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))[*patternName]
	if !ok {
		log.Fatalf("unknown pattern %q, available: %s", *patternName, strings.Join(patternNames(), ", "))
	}
	if *fps <= 0 {
		log.Fatal("fps must be positive")
	}
	if *timeout < 0 || *timeout > 255 {
		log.Fatal("timeout must be between 0 and 255 seconds")
	}

	target := net.JoinHostPort(*host, strconv.Itoa(*port))
	conn, err := net.Dial("udp", target)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", target, err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("Sending %s as %s to %s at %d fps", *patternName, kind, target, *fps)
	sent, err := send(ctx, conn, kind, next, time.Duration(*timeout)*time.Second, *fps, *frames)
	log.Printf("Sent %d packets", sent)
	if err != nil {
		log.Print(err)
		os.Exit(1)
	}
}

// send writes one packet per tick until ctx is done or limit frames were
// sent (limit 0 means no limit).
func send(ctx context.Context, conn net.Conn, kind protocol.Kind, next pattern, timeout time.Duration, fps, limit int) (int, error) {
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for frame := 0; limit == 0 || frame < limit; frame++ {
		packet, err := buildPacket(kind, next(frame), timeout)
		if err != nil {
			return frame, err
		}
		if _, err := conn.Write(packet); err != nil {
			log.Printf("Error sending frame %d: %v", frame, err)
		}

		select {
		case <-ctx.Done():
			return frame + 1, nil
		case <-ticker.C:
		}
	}
	return limit, nil
}
