package routing

import (
	"errors"
	"net/netip"
)

// ErrUnsupportedPlatform indicates no OS-backed router exists for this
// platform.
var ErrUnsupportedPlatform = errors.New("no OS router implementation for this platform")

// Family selects an IP address family.
type Family int

const (
	// FamilyIPv4 selects IPv4.
	FamilyIPv4 Family = 4
	// FamilyIPv6 selects IPv6.
	FamilyIPv6 Family = 6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return "unknown"
	}
}

// Flow describes one outbound transmission for route selection.
type Flow struct {
	// Family is the address family of Dst.
	Family Family
	// Dst is the remote transport address.
	Dst netip.AddrPort
	// SrcPort is the local transport port.
	SrcPort uint16
	// Proto is the IP transport protocol number.
	Proto int
	// Mark is the fwmark from the sending socket, zero if none.
	Mark uint32
	// OIF constrains the lookup to an output interface index, zero for any.
	OIF int
}

// Route is a resolved next hop.
type Route struct {
	// Src is the preferred source address for the route. It may be
	// invalid when the platform did not report one; such routes are never
	// trusted by the route cache.
	Src netip.Addr
	// Gateway is the next-hop address, invalid for directly connected
	// destinations.
	Gateway netip.Addr
	// Ifindex is the output interface.
	Ifindex int
}

// Router is the platform routing subsystem.
type Router interface {
	// LookupRoute resolves the route for a flow.
	LookupRoute(fl Flow) (Route, error)

	// ConfirmSourceAddr reports whether addr is currently assigned to a
	// local interface for the given family.
	ConfirmSourceAddr(addr netip.Addr, fam Family) bool
}
