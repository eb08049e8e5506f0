package transport

import "net/netip"

// ProtocolUDP is the IP protocol number the binding manager requires.
const ProtocolUDP = 17

// EncapFunc is the ingress callback installed on a raw socket. It receives
// every datagram the socket reads and returns the disposition verdict.
type EncapFunc func(*Datagram) Verdict

// Socket is the raw UDP socket surface the shim operates on. This
// abstraction allows different socket implementations (plain UDP, raw
// ingress hooks, test doubles) to be used interchangeably.
type Socket interface {
	// Protocol returns the socket's IP transport protocol number.
	Protocol() int

	// LocalPort returns the socket's bound source port.
	LocalPort() uint16

	// Mark returns the fwmark configured on the socket, zero if none.
	Mark() uint32

	// BoundIfindex returns the interface index the socket is bound to,
	// zero if unbound.
	BoundIfindex() int

	// InstallEncap installs or, when passed nil, removes the ingress
	// callback. This is the socket-configuration primitive: after a
	// non-nil install every datagram read from the socket is offered to
	// the callback before normal delivery.
	InstallEncap(EncapFunc)

	// Transmit performs the encapsulated send of an outbound datagram to
	// dst, pinned to the given source address when src is valid. Transmit
	// writes bytes only; datagram ownership stays with the caller.
	Transmit(d *Datagram, src netip.Addr, dst netip.AddrPort) error

	// Close releases the underlying socket.
	Close() error
}
