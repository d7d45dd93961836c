package network

import (
	"net"
	"sync"
	"time"
)

// UDPSocket is the part of *net.UDPConn the receiver uses, so tests can run
// without a real socket.
type UDPSocket interface {
	// ReadFromUDP reads one datagram.
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)

	// SetReadBuffer sets the size of the operating system's receive buffer.
	SetReadBuffer(bytes int) error

	// SetReadDeadline sets the deadline for the next read.
	SetReadDeadline(t time.Time) error

	// Close closes the socket.
	Close() error

	// LocalAddr returns the bound address.
	LocalAddr() net.Addr
}

// UDPSocketFactory opens UDP sockets.
type UDPSocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
}

// RealUDPSocketFactory opens sockets with net.ListenUDP. *net.UDPConn
// satisfies UDPSocket directly.
type RealUDPSocketFactory struct{}

// ListenUDP creates a new UDP socket.
func (RealUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// MockUDPPacket is one datagram queued on a MockUDPSocket.
type MockUDPPacket struct {
	Data []byte
	Addr *net.UDPAddr
}

// MockUDPSocket serves queued datagrams and reports a timeout when the queue
// is empty, the way a socket with a short read deadline does.
type MockUDPSocket struct {
	mu sync.Mutex

	packets []MockUDPPacket

	// Closed indicates whether Close was called.
	Closed bool
	// ReadBufferSize holds the value set by SetReadBuffer.
	ReadBufferSize int
	// Deadlines records every SetReadDeadline call.
	Deadlines []time.Time
	// LocalAddress is returned by LocalAddr.
	LocalAddress *net.UDPAddr
	// ReadError is returned once by the next ReadFromUDP call if set.
	ReadError error
}

// NewMockUDPSocket creates a mock bound to port holding packets.
func NewMockUDPSocket(port int, packets ...MockUDPPacket) *MockUDPSocket {
	return &MockUDPSocket{
		packets:      packets,
		LocalAddress: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port},
	}
}

// Enqueue adds a datagram from addr to the receive queue.
func (m *MockUDPSocket) Enqueue(data []byte, addr *net.UDPAddr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packets = append(m.packets, MockUDPPacket{Data: data, Addr: addr})
}

// Pending returns how many datagrams are still queued.
func (m *MockUDPSocket) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.packets)
}

// ReadFromUDP pops the oldest queued datagram.
func (m *MockUDPSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return 0, nil, net.ErrClosed
	}
	if m.ReadError != nil {
		err := m.ReadError
		m.ReadError = nil
		return 0, nil, err
	}
	if len(m.packets) == 0 {
		return 0, nil, &net.OpError{Op: "read", Net: "udp", Err: timeoutError{}}
	}
	pkt := m.packets[0]
	m.packets = m.packets[1:]
	return copy(b, pkt.Data), pkt.Addr, nil
}

// SetReadBuffer records the buffer size.
func (m *MockUDPSocket) SetReadBuffer(bytes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadBufferSize = bytes
	return nil
}

// SetReadDeadline records the deadline.
func (m *MockUDPSocket) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deadlines = append(m.Deadlines, t)
	return nil
}

// Close marks the socket as closed.
func (m *MockUDPSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// LocalAddr returns the mock local address.
func (m *MockUDPSocket) LocalAddr() net.Addr {
	return m.LocalAddress
}

// MockUDPSocketFactory hands out sockets from Sockets, keyed by port.
type MockUDPSocketFactory struct {
	Sockets map[int]*MockUDPSocket
	// Error is returned by ListenUDP if set.
	Error error
	// PortErrors fails ListenUDP for specific ports.
	PortErrors map[int]error
	// Ports records the port of every ListenUDP call.
	Ports []int
}

// NewMockUDPSocketFactory creates a factory serving the given sockets.
func NewMockUDPSocketFactory(sockets ...*MockUDPSocket) *MockUDPSocketFactory {
	f := &MockUDPSocketFactory{Sockets: map[int]*MockUDPSocket{}}
	for _, s := range sockets {
		f.Sockets[s.LocalAddress.Port] = s
	}
	return f
}

// ListenUDP returns the socket registered for laddr's port, creating an
// empty one if none was registered. A closed socket is reopened.
func (f *MockUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	f.Ports = append(f.Ports, laddr.Port)
	if f.Error != nil {
		return nil, f.Error
	}
	if err := f.PortErrors[laddr.Port]; err != nil {
		return nil, err
	}
	s, ok := f.Sockets[laddr.Port]
	if !ok {
		s = NewMockUDPSocket(laddr.Port)
		f.Sockets[laddr.Port] = s
	}
	s.mu.Lock()
	s.Closed = false
	s.mu.Unlock()
	return s, nil
}

// timeoutError implements net.Error for timeout simulation.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
