package transport

import (
	"net/netip"
	"sync"

	"github.com/opd-ai/udptun/metrics"
	"github.com/opd-ai/udptun/routing"
	"github.com/prometheus/client_golang/prometheus"
)

// mockSocket is a Socket double that records transmissions and the
// installed ingress callback.
type mockSocket struct {
	proto   int
	port    uint16
	mark    uint32
	ifindex int

	mu          sync.Mutex
	encap       EncapFunc
	sent        []sentDatagram
	transmitErr error
	closed      bool
}

type sentDatagram struct {
	payload []byte
	src     netip.Addr
	dst     netip.AddrPort
}

func newMockSocket() *mockSocket {
	return &mockSocket{proto: ProtocolUDP, port: 1194}
}

func (s *mockSocket) Protocol() int     { return s.proto }
func (s *mockSocket) LocalPort() uint16 { return s.port }
func (s *mockSocket) Mark() uint32      { return s.mark }
func (s *mockSocket) BoundIfindex() int { return s.ifindex }

func (s *mockSocket) InstallEncap(f EncapFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encap = f
}

func (s *mockSocket) installedEncap() EncapFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encap
}

func (s *mockSocket) Transmit(d *Datagram, src netip.Addr, dst netip.AddrPort) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transmitErr != nil {
		return s.transmitErr
	}
	payload := make([]byte, d.Len())
	copy(payload, d.Data())
	s.sent = append(s.sent, sentDatagram{payload: payload, src: src, dst: dst})
	return nil
}

func (s *mockSocket) transmissions() []sentDatagram {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentDatagram(nil), s.sent...)
}

func (s *mockSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// mockDirectory is an instrumented PeerDirectory: it counts lookups so
// tests can verify reference balance.
type mockDirectory struct {
	mu        sync.Mutex
	byID      map[uint32]*Peer
	byAddr    map[netip.AddrPort]*Peer
	idLookups int
	addrHits  int
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		byID:   make(map[uint32]*Peer),
		byAddr: make(map[netip.AddrPort]*Peer),
	}
}

func (m *mockDirectory) add(p *Peer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[p.ID()] = p
	if b := p.Bind(); b != nil {
		m.byAddr[b.Addr] = p
	}
}

func (m *mockDirectory) LookupID(id uint32) *Peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.byID[id]
	if p == nil || !p.Hold() {
		return nil
	}
	m.idLookups++
	return p
}

func (m *mockDirectory) LookupAddr(addr netip.AddrPort) *Peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.byAddr[addr]
	if p == nil || !p.Hold() {
		return nil
	}
	m.addrHits++
	return p
}

// mockPipeline records receive pipeline invocations. The pipeline owns the
// datagram and the peer reference it is handed, so it releases and frees
// them unless a test opts out.
type mockPipeline struct {
	mu      sync.Mutex
	verdict Verdict
	calls   []receiveCall
	keep    bool // do not release/free, the test will
}

type receiveCall struct {
	peerID  uint32
	payload []byte
	dgram   *Datagram
}

func (m *mockPipeline) Receive(dev *Device, p *Peer, d *Datagram) Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload := make([]byte, d.Len())
	copy(payload, d.Data())
	m.calls = append(m.calls, receiveCall{peerID: p.ID(), payload: payload, dgram: d})
	if !m.keep {
		p.Release()
		d.Free()
	}
	return m.verdict
}

func (m *mockPipeline) received() []receiveCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]receiveCall(nil), m.calls...)
}

// mockRouter scripts route lookups and source address confirmation.
type mockRouter struct {
	mu        sync.Mutex
	route     routing.Route
	lookupErr error
	confirmed map[netip.Addr]bool
	lookups   int
}

func newMockRouter(route routing.Route) *mockRouter {
	return &mockRouter{route: route, confirmed: make(map[netip.Addr]bool)}
}

func (m *mockRouter) LookupRoute(fl routing.Flow) (routing.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.lookupErr != nil {
		return routing.Route{}, m.lookupErr
	}
	return m.route, nil
}

func (m *mockRouter) ConfirmSourceAddr(addr netip.Addr, fam routing.Family) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.confirmed[addr]
}

func (m *mockRouter) lookupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

// newTestDevice wires a device over the given mocks with an isolated
// metrics registry.
func newTestDevice(dir PeerDirectory, recv ReceivePipeline, router routing.Router) *Device {
	dev, err := NewDevice(DeviceConfig{
		Name:    "tun-test",
		Peers:   dir,
		Recv:    recv,
		Router:  router,
		Metrics: metrics.NewMetricsWithRegistry(prometheus.NewRegistry()),
	})
	if err != nil {
		panic(err)
	}
	return dev
}

func mustAddrPort(s string) netip.AddrPort {
	return netip.MustParseAddrPort(s)
}

// routingRouteStub is a plausible resolved IPv4 route for tests.
func routingRouteStub() routing.Route {
	return routing.Route{
		Src:     netip.MustParseAddr("192.0.2.1"),
		Gateway: netip.MustParseAddr("192.0.2.254"),
		Ifindex: 2,
	}
}
