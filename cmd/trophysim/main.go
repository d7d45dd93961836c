// Command trophysim simulates the Deadline trophy: it listens for WLED
// realtime packets, keeps the color of all 172 LEDs and serves diagnostics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dltrophy/simulator/internal/config"
	"github.com/dltrophy/simulator/internal/frameloop"
	"github.com/dltrophy/simulator/internal/journal"
	"github.com/dltrophy/simulator/internal/ledstate"
	"github.com/dltrophy/simulator/internal/monitor"
	"github.com/dltrophy/simulator/internal/monitoring"
	"github.com/dltrophy/simulator/internal/network"
	"github.com/dltrophy/simulator/internal/serialmirror"
	"github.com/dltrophy/simulator/internal/trophy"
	"github.com/dltrophy/simulator/internal/version"
)

var (
	configPath   = flag.String("config", "", "Path to a JSON config file")
	saveConfig   = flag.String("save-config", "", "Write the effective config to this JSON file and exit")
	udpPort      = flag.Int("port", config.DefaultUDPPort, "UDP port for realtime packets")
	bindAddress  = flag.String("bind", "", "Address to bind the UDP socket to (default all interfaces)")
	listen       = flag.String("listen", config.DefaultHTTPListen, "HTTP listen address for diagnostics")
	dbPath       = flag.String("db", "", "SQLite journal path (disabled when empty)")
	restoreState = flag.Bool("restore", false, "Restore the latest saved state from the journal at startup")
	forwardAddr  = flag.String("forward", "", "Forward received packets to this host")
	forwardPort  = flag.Int("forward-port", config.DefaultForwardPort, "Port to forward packets to")
	pcapFile     = flag.String("pcap", "", "Replay packets from a pcap/pcapng capture instead of listening")
	pcapLoop     = flag.Bool("pcap-loop", false, "Restart the capture replay when it ends")
	serialPort   = flag.String("serial", "", "Mirror LEDs to an Adalight controller on this serial port")
	serialBaud   = flag.Int("baud", config.DefaultSerialBaud, "Serial baud rate")
	fps          = flag.Int("fps", config.DefaultFPS, "Frames per second")
	clearOnIdle  = flag.Bool("clear-on-idle", false, "Clear the LEDs when the realtime timeout lapses")
	dumpLayout   = flag.Bool("dump-positions", false, "Print the LED positions and exit")
	showVersion  = flag.Bool("version", false, "Print version information and exit")
	verbose      = flag.Bool("verbose", false, "Enable debug logging")
)

const journalPruneInterval = time.Minute

// applyFlags copies every flag given on the command line over cfg, so
// explicit flags win over the config file and unset flags do not.
func applyFlags(fs *flag.FlagSet, cfg *config.SimulatorConfig) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.UDPPort = udpPort
		case "bind":
			cfg.ListenAddress = bindAddress
		case "listen":
			cfg.HTTPListen = listen
		case "db":
			cfg.DBPath = dbPath
		case "forward":
			cfg.ForwardAddress = forwardAddr
		case "forward-port":
			cfg.ForwardPort = forwardPort
		case "serial":
			cfg.SerialPort = serialPort
		case "baud":
			cfg.SerialBaud = serialBaud
		case "fps":
			cfg.FPS = fps
		case "clear-on-idle":
			cfg.ClearOnIdle = clearOnIdle
		}
	})
}

func loadConfig() (*config.SimulatorConfig, error) {
	cfg := config.Empty()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			return nil, err
		}
	}
	applyFlags(flag.CommandLine, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("trophysim", version.String())
		return
	}
	monitoring.SetVerbose(*verbose)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *saveConfig != "" {
		if err := config.SaveConfig(*saveConfig, cfg); err != nil {
			log.Fatalf("Failed to save config: %v", err)
		}
		log.Printf("Config written to %s", *saveConfig)
		return
	}

	builder, err := trophy.NewBuilder(cfg.GetShape())
	if err != nil {
		log.Fatalf("Invalid trophy shape: %v", err)
	}
	if *dumpLayout {
		if err := builder.Layout().Dump(os.Stdout); err != nil {
			log.Fatalf("Failed to dump positions: %v", err)
		}
		return
	}

	if err := run(cfg, builder); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.SimulatorConfig, builder *trophy.Builder) error {
	log.Printf("trophysim %s", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := ledstate.New()

	var (
		source    frameloop.Poller
		stats     *network.PacketStats
		forwarder *network.PacketForwarder
	)
	if *pcapFile != "" {
		packets, err := network.LoadPCAP(*pcapFile, cfg.GetUDPPort())
		if err != nil {
			return err
		}
		log.Printf("Replaying %d packets from %s", len(packets), *pcapFile)
		replay := network.NewReplaySource(packets, nil, *pcapLoop)
		source, stats = replay, replay.Stats()
	} else {
		stats = network.NewPacketStats()
		if addr := cfg.GetForwardAddress(); addr != "" {
			fwd, err := network.NewPacketForwarder(addr, cfg.GetForwardPort(), stats, time.Minute)
			if err != nil {
				return err
			}
			defer fwd.Close()
			forwarder = fwd
		}
		receiver := network.NewReceiver(network.ReceiverConfig{
			Port:        cfg.GetUDPPort(),
			Address:     cfg.GetListenAddress(),
			RcvBuf:      cfg.GetRcvBuf(),
			PollTimeout: cfg.GetPollTimeout(),
			Stats:       stats,
			Forwarder:   forwarder,
		})
		if err := receiver.Open(); err != nil {
			return err
		}
		defer receiver.Close()
		source = receiver
	}

	var (
		j     *journal.Journal
		saver monitor.StateSaver
		rec   frameloop.Recorder
	)
	if path := cfg.GetDBPath(); path != "" {
		var err error
		if j, err = journal.Open(path); err != nil {
			return err
		}
		defer j.Close()
		j.SetRetention(journal.Retention{
			MaxAge:      cfg.GetJournalRetention(),
			MaxMessages: cfg.GetJournalMaxMessages(),
		})
		saver, rec = j, j
		if *restoreState {
			restore(ctx, j, store, builder)
		}
	}

	var sinks []frameloop.Sink
	if path := cfg.GetSerialPort(); path != "" {
		mirror, err := serialmirror.Open(path, serialmirror.PortOptions{BaudRate: cfg.GetSerialBaud()}, nil)
		if err != nil {
			return err
		}
		defer mirror.Close()
		sinks = append(sinks, mirror)
	}

	var onIdle func()
	if cfg.GetClearOnIdle() {
		onIdle = func() {
			store.Clear()
			for _, s := range sinks {
				if err := s.Push(store); err != nil {
					log.Printf("failed to push cleared state: %v", err)
				}
			}
		}
	}

	loop, err := frameloop.New(frameloop.Config{
		Source:          source,
		Store:           store,
		Stats:           stats,
		FPS:             cfg.GetFPS(),
		StatsInterval:   cfg.GetStatsInterval(),
		RealtimeTimeout: cfg.GetRealtimeTimeout(),
		Recorder:        rec,
		Sinks:           sinks,
		OnIdle:          onIdle,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	if j != nil {
		if err := j.AttachAdminRoutes(mux); err != nil {
			return err
		}
	}
	server, err := monitor.NewServer(monitor.Config{
		Address:  cfg.GetHTTPListen(),
		Builder:  builder,
		Store:    store,
		Messages: loop,
		Saver:    saver,
		Ports:    loop,
		Mux:      mux,
	})
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if forwarder != nil {
		forwarder.Start(ctx)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(ctx); err != nil {
			log.Printf("frame loop: %v", err)
			stop()
		}
		log.Print("frame loop terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		watchReload(ctx, loop)
	}()

	if j != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.RunRetention(ctx, journalPruneInterval)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(ctx); err != nil {
			log.Printf("HTTP server: %v", err)
			stop()
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	if stats != nil {
		stats.LogStats()
	}
	log.Printf("Graceful shutdown complete")
	return nil
}

// watchReload re-reads the config on SIGHUP and moves the receiver when the
// UDP port changed. Other settings need a restart.
func watchReload(ctx context.Context, loop *frameloop.Loop) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := loadConfig()
			if err != nil {
				log.Printf("Reload failed, keeping the running config: %v", err)
				continue
			}
			if port := cfg.GetUDPPort(); port != loop.Port() {
				if err := loop.SetPort(port); err != nil {
					log.Printf("Cannot move to port %d: %v", port, err)
				}
			}
		}
	}
}

func restore(ctx context.Context, j *journal.Journal, store *ledstate.Store, builder *trophy.Builder) {
	state, err := j.LatestState(ctx)
	if errors.Is(err, journal.ErrNoState) {
		log.Printf("No saved state to restore")
		return
	}
	if err != nil {
		log.Printf("Failed to load saved state: %v", err)
		return
	}
	if err := store.Restore(state.Colors); err != nil {
		log.Printf("Saved state %s is unusable: %v", state.ID, err)
		return
	}
	if err := builder.SetShape(state.Shape); err != nil {
		log.Printf("Saved shape of %s is invalid, keeping the configured one: %v", state.ID, err)
	}
	log.Printf("Restored state %s %q from %s", state.ID, state.Label, state.SavedAt.Format(time.RFC3339))
}
