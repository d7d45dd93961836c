// Package monitor serves the simulator's diagnostic HTTP surface: text dumps
// of positions and the last message, a 3D chart and a plot of the LEDs, the
// control commands and a small JSON API.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"tailscale.com/tsweb"

	"github.com/dltrophy/simulator/internal/ledstate"
	"github.com/dltrophy/simulator/internal/monitoring"
	"github.com/dltrophy/simulator/internal/protocol"
	"github.com/dltrophy/simulator/internal/trophy"
)

// MessageLog is the frame loop's view of received traffic.
type MessageLog interface {
	DumpLastMessage(w io.Writer) error
	LastUpdate() *protocol.Update
	// RealtimeNow reports realtime control at the loop's own clock.
	RealtimeNow() bool
	Frames() uint64
}

// StateSaver persists a snapshot of the display.
type StateSaver interface {
	SaveState(ctx context.Context, label string, colors ledstate.Colors, shape trophy.Shape) (string, error)
}

// PortControl moves the UDP receiver to another port.
type PortControl interface {
	Port() int
	SetPort(port int) error
}

// Config contains configuration options for the Server.
type Config struct {
	Address string
	Builder *trophy.Builder
	Store   *ledstate.Store
	// Messages, Saver and Ports are optional.
	Messages MessageLog
	Saver    StateSaver
	Ports    PortControl
	// Mux receives the routes; a new one is created when nil.
	Mux *http.ServeMux
}

// Server is the diagnostic web server.
type Server struct {
	address  string
	builder  *trophy.Builder
	store    *ledstate.Store
	messages MessageLog
	saver    StateSaver
	ports    PortControl
	mux      *http.ServeMux
	server   *http.Server
}

// NewServer creates a Server and registers its routes.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Builder == nil || cfg.Store == nil {
		return nil, errors.New("monitor: builder and store are required")
	}
	s := &Server{
		address:  cfg.Address,
		builder:  cfg.Builder,
		store:    cfg.Store,
		messages: cfg.Messages,
		saver:    cfg.Saver,
		ports:    cfg.Ports,
		mux:      cfg.Mux,
	}
	if s.mux == nil {
		s.mux = http.NewServeMux()
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) setupRoutes() {
	debug := tsweb.Debugger(s.mux)
	debug.KVFunc("LED state version", func() any { return s.store.Version() })
	debug.KVFunc("Geometry generation", func() any { return s.builder.Generation() })
	if s.messages != nil {
		debug.KVFunc("Frames", func() any { return s.messages.Frames() })
	}

	debug.Handle("trophy/positions", "Computed LED positions and bounding box", http.HandlerFunc(s.handlePositionsDump))
	debug.Handle("trophy/last", "Last decoded realtime message", http.HandlerFunc(s.handleLastMessage))
	debug.Handle("trophy/leds.html", "3D chart of the LEDs in their current colors", http.HandlerFunc(s.handleLEDChart))
	debug.Handle("trophy/layout.png", "Front view of the LEDs (PNG)", http.HandlerFunc(s.handleLayoutPlot))
	debug.Handle("trophy/randomize", "POST: set every LED to a random color", s.command(s.store.Randomize))
	debug.Handle("trophy/clear", "POST: set every LED to black", s.command(s.store.Clear))
	debug.Handle("trophy/save", "POST: save the current colors to the journal", http.HandlerFunc(s.handleSave))

	s.mux.HandleFunc("/api/state", s.handleState)
	s.mux.HandleFunc("/api/positions", s.handlePositions)
	s.mux.HandleFunc("/api/shape", s.handleShape)
	s.mux.HandleFunc("/api/port", s.handlePort)
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("[HTTP] serving diagnostics on %s", s.address)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	return nil
}
