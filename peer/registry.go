package peer

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/udptun/transport"
)

var (
	// ErrPeerExists indicates the identifier is already registered.
	ErrPeerExists = errors.New("peer id already registered")
	// ErrPeerNotFound indicates no peer carries the identifier.
	ErrPeerNotFound = errors.New("peer not found")
)

// Registry is an in-memory peer directory. It owns one reference to every
// registered peer and maintains a secondary index keyed by the peer's
// current transport address for control-traffic lookups.
type Registry struct {
	mu     sync.RWMutex
	byID   map[uint32]*transport.Peer
	byAddr map[netip.AddrPort]*transport.Peer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[uint32]*transport.Peer),
		byAddr: make(map[netip.AddrPort]*transport.Peer),
	}
}

// addrKey canonicalizes a transport address for the secondary index: a
// peer bound as plain IPv4 must match a sender a dual-stack socket reports
// in 4-mapped IPv6 form, and vice versa.
func addrKey(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// Register creates a peer under the given identifier with an optional
// initial binding and socket, and returns an extra held handle for the
// caller.
func (r *Registry) Register(id uint32, bind *transport.Binding, sock transport.Socket) (*transport.Peer, error) {
	if id > transport.MaxPeerID {
		return nil, fmt.Errorf("peer id %d exceeds the 24-bit identifier space", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; ok {
		return nil, ErrPeerExists
	}

	p := transport.NewPeer(id)
	if sock != nil {
		p.SetSocket(sock)
	}
	if bind != nil {
		p.SetBind(bind)
		r.byAddr[addrKey(bind.Addr)] = p
	}
	r.byID[id] = p

	logrus.WithFields(logrus.Fields{
		"function": "Register",
		"peer_id":  id,
	}).Info("peer registered")

	// One reference belongs to the registry, one to the caller.
	p.Hold()
	return p, nil
}

// Remove drops the peer from both indexes and releases the registry's
// reference. The peer survives until every outstanding handle is released.
func (r *Registry) Remove(id uint32) error {
	r.mu.Lock()
	p, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return ErrPeerNotFound
	}
	delete(r.byID, id)
	if b := p.Bind(); b != nil {
		if key := addrKey(b.Addr); r.byAddr[key] == p {
			delete(r.byAddr, key)
		}
	}
	r.mu.Unlock()

	p.Release()

	logrus.WithFields(logrus.Fields{
		"function": "Remove",
		"peer_id":  id,
	}).Info("peer removed")
	return nil
}

// UpdateBind publishes a new binding for a roaming peer and re-keys the
// address index. Readers concurrently loading the binding see either the
// old snapshot or the new one, never a partial value.
func (r *Registry) UpdateBind(id uint32, bind *transport.Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return ErrPeerNotFound
	}

	if old := p.Bind(); old != nil {
		if key := addrKey(old.Addr); r.byAddr[key] == p {
			delete(r.byAddr, key)
		}
	}
	p.SetBind(bind)
	if bind != nil {
		r.byAddr[addrKey(bind.Addr)] = p
	}

	logrus.WithFields(logrus.Fields{
		"function": "UpdateBind",
		"peer_id":  id,
	}).Debug("peer binding updated")
	return nil
}

// LookupID resolves a peer by identifier, returning a held handle or nil.
func (r *Registry) LookupID(id uint32) *transport.Peer {
	r.mu.RLock()
	p := r.byID[id]
	r.mu.RUnlock()

	if p == nil || !p.Hold() {
		return nil
	}
	return p
}

// LookupAddr resolves a peer by its current transport address, returning a
// held handle or nil.
func (r *Registry) LookupAddr(addr netip.AddrPort) *transport.Peer {
	r.mu.RLock()
	p := r.byAddr[addrKey(addr)]
	r.mu.RUnlock()

	if p == nil || !p.Hold() {
		return nil
	}
	return p
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
