// Package serialmirror copies the simulated LED state to a physical strip
// driven by an Adalight controller on a serial port.
package serialmirror

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"

	"github.com/dltrophy/simulator/internal/ledstate"
	"github.com/dltrophy/simulator/internal/monitoring"
)

// Port is the part of serial.Port the mirror needs.
type Port interface {
	io.Writer
	io.Closer
}

// Opener opens a serial device.
type Opener func(path string, mode *serial.Mode) (Port, error)

// OpenSerial opens a real serial port.
func OpenSerial(path string, mode *serial.Mode) (Port, error) {
	return serial.Open(path, mode)
}

// Mirror writes one Adalight frame per store change. It satisfies
// frameloop.Sink.
type Mirror struct {
	mu          sync.Mutex
	port        Port
	path        string
	lastVersion uint64
	written     bool
	frames      uint64
	failures    uint64
}

// Open opens path with opts and returns a mirror writing to it.
func Open(path string, opts PortOptions, open Opener) (*Mirror, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	if open == nil {
		open = OpenSerial
	}
	port, err := open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	monitoring.Logf("[Serial] mirroring LEDs to %s at %d baud", path, mode.BaudRate)
	return New(port, path), nil
}

// New wraps an already open port.
func New(port Port, path string) *Mirror {
	return &Mirror{port: port, path: path}
}

// Push sends the store's colors unless they did not change since the last
// successful write.
func (m *Mirror) Push(store *ledstate.Store) error {
	version := store.Version()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.written && version == m.lastVersion {
		return nil
	}
	if _, err := m.port.Write(AdalightFrame(store.Snapshot())); err != nil {
		m.failures++
		return fmt.Errorf("serial write to %s failed: %w", m.path, err)
	}
	m.frames++
	m.lastVersion = version
	m.written = true
	return nil
}

// Stats returns how many frames were written and how many writes failed.
func (m *Mirror) Stats() (frames, failures uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames, m.failures
}

// Close closes the port.
func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.port.Close()
}
