package transport

import (
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/udptun/routing"
)

// Binding is a peer's currently negotiated remote transport address. A
// binding is immutable once published; roam events publish a replacement
// snapshot so concurrent readers never observe a torn value.
type Binding struct {
	// Addr is the remote IP and port.
	Addr netip.AddrPort
	// ScopeID is the IPv6 scope (output interface) for link-local
	// bindings, zero otherwise.
	ScopeID int
}

// Family returns the routing address family of the binding.
func (b *Binding) Family() routing.Family {
	if b.Addr.Addr().Unmap().Is4() {
		return routing.FamilyIPv4
	}
	return routing.FamilyIPv6
}

// Peer is a reference-counted handle to a remote tunnel endpoint.
//
// The peer table owns peers; this package only borrows handles obtained
// through a PeerDirectory lookup. A handle keeps the peer alive until
// Release is called, after which the peer may be destroyed concurrently.
type Peer struct {
	id   uint32
	refs atomic.Int32

	bind atomic.Pointer[Binding]

	mu   sync.RWMutex // guards sock
	sock Socket

	cache4 RouteCache
	cache6 RouteCache

	lastXmit atomic.Int64 // unix nanoseconds
	lastRecv atomic.Int64
}

// NewPeer creates a peer with the given identifier holding one reference,
// owned by the creating directory.
func NewPeer(id uint32) *Peer {
	p := &Peer{id: id}
	p.refs.Add(1)
	return p
}

// ID returns the peer's numeric identifier.
func (p *Peer) ID() uint32 {
	return p.id
}

// Hold acquires a reference unless the count already dropped to zero.
func (p *Peer) Hold() bool {
	for {
		n := p.refs.Load()
		if n == 0 {
			return false
		}
		if p.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops one reference. Every lookup that returned the handle must
// be balanced by exactly one Release across all exit paths.
func (p *Peer) Release() {
	if n := p.refs.Add(-1); n < 0 {
		logrus.WithFields(logrus.Fields{
			"function": "Release",
			"peer_id":  p.id,
		}).Error("peer reference over-released")
	}
}

// Refs returns the current reference count. Intended for tests and
// diagnostics only.
func (p *Peer) Refs() int32 {
	return p.refs.Load()
}

// Bind returns the current binding snapshot, nil when the peer has no
// negotiated remote address. The returned value is immutable.
func (p *Peer) Bind() *Binding {
	return p.bind.Load()
}

// SetBind publishes a new binding snapshot. Passing nil clears the binding.
func (p *Peer) SetBind(b *Binding) {
	p.bind.Store(b)
}

// Socket returns the raw socket the peer transmits on, nil when unbound.
func (p *Peer) Socket() Socket {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sock
}

// SetSocket associates the peer with a raw socket.
func (p *Peer) SetSocket(s Socket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sock = s
}

// RouteCache returns the peer's cached route slot for the given family.
func (p *Peer) RouteCache(fam routing.Family) *RouteCache {
	if fam == routing.FamilyIPv6 {
		return &p.cache6
	}
	return &p.cache4
}

// KeepaliveXmitReset records an authenticated-direction transmission for
// the keepalive subsystem.
func (p *Peer) KeepaliveXmitReset() {
	p.lastXmit.Store(time.Now().UnixNano())
}

// KeepaliveRecvReset records a confirmed tunnel datagram receive. The
// receive pipeline calls this after authentication succeeds.
func (p *Peer) KeepaliveRecvReset() {
	p.lastRecv.Store(time.Now().UnixNano())
}

// LastTransmit returns the time of the last keepalive transmit reset.
func (p *Peer) LastTransmit() time.Time {
	return time.Unix(0, p.lastXmit.Load())
}

// LastReceive returns the time of the last confirmed receive.
func (p *Peer) LastReceive() time.Time {
	return time.Unix(0, p.lastRecv.Load())
}
