//go:build linux

package routing

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
)

// netlinkRouter resolves routes and source addresses through rtnetlink.
type netlinkRouter struct{}

// NewOSRouter returns the rtnetlink-backed Router.
func NewOSRouter() (Router, error) {
	return &netlinkRouter{}, nil
}

// LookupRoute asks the kernel FIB for the route matching the flow.
func (r *netlinkRouter) LookupRoute(fl Flow) (Route, error) {
	dst := net.IP(fl.Dst.Addr().Unmap().AsSlice())

	opts := &netlink.RouteGetOptions{Mark: fl.Mark}
	if fl.OIF != 0 {
		iface, err := net.InterfaceByIndex(fl.OIF)
		if err != nil {
			return Route{}, fmt.Errorf("resolving output interface %d: %w", fl.OIF, err)
		}
		opts.Oif = iface.Name
	}

	routes, err := netlink.RouteGetWithOptions(dst, opts)
	if err != nil {
		return Route{}, fmt.Errorf("route get for %s: %w", fl.Dst.Addr(), err)
	}
	if len(routes) == 0 {
		return Route{}, fmt.Errorf("no route returned for %s", fl.Dst.Addr())
	}
	rt := routes[0]

	route := Route{Ifindex: rt.LinkIndex}
	if src, ok := netip.AddrFromSlice(rt.Src); ok {
		route.Src = src.Unmap()
	}
	if gw, ok := netip.AddrFromSlice(rt.Gw); ok {
		route.Gateway = gw.Unmap()
	}

	logrus.WithFields(logrus.Fields{
		"function": "LookupRoute",
		"dst":      fl.Dst,
		"src":      route.Src,
		"ifindex":  route.Ifindex,
	}).Trace("resolved route")
	return route, nil
}

// ConfirmSourceAddr checks the address against every local interface.
func (r *netlinkRouter) ConfirmSourceAddr(addr netip.Addr, fam Family) bool {
	if !addr.IsValid() {
		return false
	}

	family := netlink.FAMILY_V4
	if fam == FamilyIPv6 {
		family = netlink.FAMILY_V6
	}
	addrs, err := netlink.AddrList(nil, family)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "ConfirmSourceAddr",
			"family":   fam,
		}).WithError(err).Debug("address list failed")
		return false
	}

	want := net.IP(addr.Unmap().AsSlice())
	for _, a := range addrs {
		if a.IP.Equal(want) {
			return true
		}
	}
	return false
}
