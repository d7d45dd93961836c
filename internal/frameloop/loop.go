// Package frameloop drives the simulator once per render frame: it polls at
// most one pending packet, decodes it and applies the result to the LED store.
package frameloop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dltrophy/simulator/internal/ledstate"
	"github.com/dltrophy/simulator/internal/monitoring"
	"github.com/dltrophy/simulator/internal/network"
	"github.com/dltrophy/simulator/internal/protocol"
	"github.com/dltrophy/simulator/internal/timeutil"
)

const (
	// DefaultFPS is the frame rate used when none is configured.
	DefaultFPS = 60

	// DefaultRealtimeTimeout is how long a sender keeps control of the
	// display when it never asked for a specific timeout.
	DefaultRealtimeTimeout = 2500 * time.Millisecond

	// DefaultStatsInterval is how often packet counters are logged.
	DefaultStatsInterval = time.Minute
)

// Poller returns at most one pending packet per call without blocking.
// Both network.Receiver and network.ReplaySource implement it.
type Poller interface {
	Poll() (network.Packet, bool, error)
}

// Rebinder is a source whose listening port can change at runtime.
// network.Receiver implements it; it is only called from the loop goroutine.
type Rebinder interface {
	Port() int
	RunsOn(port int) bool
	Rebind(port int) error
}

// ErrFixedSource is returned by SetPort when the source cannot change ports.
var ErrFixedSource = errors.New("packet source cannot change ports")

// Recorder persists every decoded message, readable or not.
type Recorder interface {
	RecordMessage(ctx context.Context, m protocol.Message) error
}

// Sink is told about the store after every applied update.
type Sink interface {
	Push(store *ledstate.Store) error
}

// Config contains configuration options for the Loop.
type Config struct {
	Source Poller
	Store  *ledstate.Store
	// Stats is optional; unreadable packets and ignored entries are counted there.
	Stats *network.PacketStats
	Clock timeutil.Clock
	FPS   int
	// StatsInterval <= 0 uses DefaultStatsInterval.
	StatsInterval time.Duration
	// RealtimeTimeout applies until a sender asks for its own; <= 0 uses
	// DefaultRealtimeTimeout.
	RealtimeTimeout time.Duration

	Recorder Recorder
	Sinks    []Sink
	// OnIdle runs on the loop goroutine when realtime control lapses.
	OnIdle func()
}

// Loop is the update loop glue. Step and Run must be called from a single
// goroutine; the accessors are safe to call from anywhere.
type Loop struct {
	source        Poller
	store         *ledstate.Store
	stats         *network.PacketStats
	clock         timeutil.Clock
	fps           int
	statsInterval time.Duration
	recorder      Recorder
	sinks         []Sink
	onIdle        func()

	lastStatsLog time.Time

	mu         sync.RWMutex
	port       int
	wantPort   int
	last       protocol.Message
	lastUpdate *protocol.Update
	timeout    time.Duration
	active     bool
	frames     uint64
}

// New creates a Loop. Source and Store are required.
func New(cfg Config) (*Loop, error) {
	if cfg.Source == nil {
		return nil, errors.New("frameloop: no packet source")
	}
	if cfg.Store == nil {
		return nil, errors.New("frameloop: no LED store")
	}
	l := &Loop{
		source:        cfg.Source,
		store:         cfg.Store,
		stats:         cfg.Stats,
		clock:         cfg.Clock,
		fps:           cfg.FPS,
		statsInterval: cfg.StatsInterval,
		recorder:      cfg.Recorder,
		sinks:         cfg.Sinks,
		onIdle:        cfg.OnIdle,
		timeout:       cfg.RealtimeTimeout,
	}
	if l.timeout <= 0 {
		l.timeout = DefaultRealtimeTimeout
	}
	if l.clock == nil {
		l.clock = timeutil.RealClock{}
	}
	if l.fps <= 0 {
		l.fps = DefaultFPS
	}
	if l.statsInterval <= 0 {
		l.statsInterval = DefaultStatsInterval
	}
	if rb, ok := l.source.(Rebinder); ok {
		l.port = rb.Port()
		l.wantPort = l.port
	}
	l.lastStatsLog = l.clock.Now()
	return l, nil
}

// FrameInterval is the time between two frames.
func (l *Loop) FrameInterval() time.Duration {
	return time.Second / time.Duration(l.fps)
}

// Step runs one frame. It reports whether a packet was consumed. Malformed
// packets are logged, never returned as errors; an error means the source
// itself failed.
func (l *Loop) Step(ctx context.Context) (bool, error) {
	l.applyPort()
	pkt, ok, err := l.source.Poll()

	l.mu.Lock()
	l.frames++
	l.mu.Unlock()

	if err != nil {
		return false, err
	}
	if !ok {
		l.checkIdle(l.clock.Now())
		return false, nil
	}

	m := protocol.Decode(pkt.Data, pkt.Source, pkt.Received)
	l.handle(ctx, m)
	return true, nil
}

// SetPort asks the loop to move its source to port. The socket is swapped on
// the loop goroutine at the start of the next Step.
func (l *Loop) SetPort(port int) error {
	if _, ok := l.source.(Rebinder); !ok {
		return ErrFixedSource
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", port)
	}
	l.mu.Lock()
	l.wantPort = port
	l.mu.Unlock()
	return nil
}

// Port returns the port the source is bound to, 0 for sources without one.
func (l *Loop) Port() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.port
}

// applyPort rebinds the source when SetPort asked for a different port. If
// the new port cannot be opened the old one is reopened. When that fails too
// the source stays closed and the following Poll reports network.ErrNotOpen.
func (l *Loop) applyPort() {
	rb, ok := l.source.(Rebinder)
	if !ok {
		return
	}
	l.mu.RLock()
	want, current := l.wantPort, l.port
	l.mu.RUnlock()
	if want == current || rb.RunsOn(want) {
		return
	}

	err := rb.Rebind(want)
	if err == nil {
		monitoring.Logf("[Socket] moved from port %d to %d", current, want)
		l.mu.Lock()
		l.port = want
		l.mu.Unlock()
		return
	}
	monitoring.Logf("[Socket] cannot move to port %d, staying on %d: %v", want, current, err)
	l.mu.Lock()
	l.wantPort = current
	l.mu.Unlock()
	if err := rb.Rebind(current); err != nil {
		monitoring.Logf("[Socket] failed to reopen port %d: %v", current, err)
	}
}

func (l *Loop) handle(ctx context.Context, m protocol.Message) {
	switch m := m.(type) {
	case *protocol.Update:
		applied, ignored := l.store.Apply(m)
		if ignored > 0 {
			if l.stats != nil {
				l.stats.AddIgnored(ignored)
			}
			monitoring.Debugf("[%s][Debug Message] %d of %d entries out of range", protocol.FormatTime(m.At), ignored, len(m.Entries))
		}

		l.mu.Lock()
		l.last = m
		l.lastUpdate = m
		if m.HasTimeout {
			l.timeout = m.Timeout
		}
		l.active = true
		l.mu.Unlock()

		if applied > 0 {
			for _, s := range l.sinks {
				if err := s.Push(l.store); err != nil {
					monitoring.Logf("[Sink] %v", err)
				}
			}
		}
	case *protocol.Unreadable:
		if l.stats != nil {
			l.stats.AddUnreadable()
		}
		monitoring.Logf("[%s][Debug Message] Unreadable: %s", protocol.FormatTime(m.At), m.Reason)

		l.mu.Lock()
		l.last = m
		l.mu.Unlock()
	}

	if l.recorder != nil {
		if err := l.recorder.RecordMessage(ctx, m); err != nil {
			monitoring.Logf("[Journal] failed to record message: %v", err)
		}
	}
}

func (l *Loop) checkIdle(now time.Time) {
	l.mu.Lock()
	lapsed := l.active && !l.realtimeLocked(now)
	if lapsed {
		l.active = false
	}
	l.mu.Unlock()

	if lapsed {
		monitoring.Debugf("[%s][Debug Message] realtime control lapsed", protocol.FormatTime(now))
		if l.onIdle != nil {
			l.onIdle()
		}
	}
}

// Run steps the loop at the configured frame rate until ctx is done. Source
// errors are logged and the loop carries on; it stops early only when the
// source reports it is closed.
func (l *Loop) Run(ctx context.Context) error {
	ticker := l.clock.NewTicker(l.FrameInterval())
	defer ticker.Stop()

	monitoring.Logf("[Loop] running at %d fps", l.fps)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			if _, err := l.Step(ctx); err != nil {
				if errors.Is(err, network.ErrNotOpen) {
					return fmt.Errorf("frame loop stopped: %w", err)
				}
				monitoring.Logf("[Loop] %v", err)
			}
			l.maybeLogStats()
		}
	}
}

func (l *Loop) maybeLogStats() {
	if l.stats == nil || l.clock.Since(l.lastStatsLog) < l.statsInterval {
		return
	}
	l.lastStatsLog = l.clock.Now()
	l.stats.LogStats()
}

// Realtime reports whether a sender is in control of the display at now:
// the last update arrived less than its timeout ago. A timeout byte of zero
// keeps the previous timeout.
func (l *Loop) Realtime(now time.Time) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.realtimeLocked(now)
}

// RealtimeNow is Realtime at the loop's clock, so replayed or mocked time
// gives the same answer the frame loop itself sees.
func (l *Loop) RealtimeNow() bool {
	return l.Realtime(l.clock.Now())
}

func (l *Loop) realtimeLocked(now time.Time) bool {
	if l.lastUpdate == nil {
		return false
	}
	return now.Before(l.lastUpdate.At.Add(l.timeout))
}

// LastMessage returns the most recently decoded message, or nil.
func (l *Loop) LastMessage() protocol.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last
}

// LastUpdate returns the most recent successfully decoded update, or nil.
func (l *Loop) LastUpdate() *protocol.Update {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastUpdate
}

// Frames is the number of frames stepped so far.
func (l *Loop) Frames() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frames
}

// DumpLastMessage writes the last decoded update, followed by the last
// unreadable packet if one arrived after it.
func (l *Loop) DumpLastMessage(w io.Writer) error {
	l.mu.RLock()
	last, update := l.last, l.lastUpdate
	l.mu.RUnlock()

	if update == nil {
		if err := protocol.Describe(w, nil); err != nil {
			return err
		}
	} else if err := protocol.Describe(w, update); err != nil {
		return err
	}
	if u, ok := last.(*protocol.Unreadable); ok {
		return protocol.Describe(w, u)
	}
	return nil
}
