package transport

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/udptun/routing"
)

// Send transmits one outbound tunnel datagram to the peer's current
// binding, reusing the peer's cached route for the binding's address family
// when it is still trusted.
//
// Send fully owns the datagram: it is freed exactly once on every path,
// succeeding or not. Errors are local to this transmission and never fatal;
// retry policy belongs to the caller.
func Send(dev *Device, p *Peer, d *Datagram) error {
	defer d.Free()

	d.Dev = dev.Name()
	// No transport checksum is computed at this layer.
	d.NoChecksum = true

	sock := p.Socket()
	if sock == nil {
		if limitNoTransport.Allow() {
			logrus.WithFields(logrus.Fields{
				"function": "Send",
				"device":   dev.Name(),
				"peer_id":  p.ID(),
			}).Debug("no socket for remote peer")
		}
		dev.metrics.TxErrors.WithLabelValues(dev.Name(), "no_transport").Inc()
		return ErrNoTransport
	}

	// The binding snapshot is loaded once and used for the whole
	// operation, transmit included; a concurrent roam publishes a new
	// snapshot without disturbing this one.
	bind := p.Bind()
	if bind == nil {
		if limitNoTransport.Allow() {
			logrus.WithFields(logrus.Fields{
				"function": "Send",
				"device":   dev.Name(),
				"peer_id":  p.ID(),
			}).Debug("no binding for remote peer")
		}
		dev.metrics.TxErrors.WithLabelValues(dev.Name(), "no_transport").Inc()
		return ErrNoTransport
	}

	p.KeepaliveXmitReset()
	if dev.keepalive != nil {
		dev.keepalive.NotifyTransmit(p)
	}

	var err error
	switch {
	case !bind.Addr.Addr().IsValid():
		err = ErrAddressFamily
	case bind.Addr.Addr().Unmap().Is4():
		err = udp4Output(dev, bind, p.RouteCache(routing.FamilyIPv4), sock, d)
	default:
		err = udp6Output(dev, bind, p.RouteCache(routing.FamilyIPv6), sock, d)
	}
	if err != nil {
		dev.metrics.TxErrors.WithLabelValues(dev.Name(), txErrorReason(err)).Inc()
		return err
	}

	dev.metrics.TxPackets.WithLabelValues(dev.Name()).Inc()
	dev.metrics.TxBytes.WithLabelValues(dev.Name()).Add(float64(d.Len()))
	return nil
}

func txErrorReason(err error) string {
	switch {
	case errors.Is(err, ErrAddressFamily):
		return "address_family"
	case errors.Is(err, ErrHostUnreachable):
		return "no_route"
	default:
		return "transmit"
	}
}

// udp4Output resolves the IPv4 route for the binding and transmits.
func udp4Output(dev *Device, bind *Binding, cache *RouteCache, sock Socket, d *Datagram) error {
	fl := routing.Flow{
		Family:  routing.FamilyIPv4,
		Dst:     bind.Addr,
		SrcPort: sock.LocalPort(),
		Proto:   ProtocolUDP,
		Mark:    sock.Mark(),
		OIF:     sock.BoundIfindex(),
	}

	if e := cachedRoute(cache, dev.router, routing.FamilyIPv4); e != nil {
		dev.metrics.RouteCacheHits.WithLabelValues(dev.Name(), "ipv4").Inc()
		return sock.Transmit(d, e.Src, bind.Addr)
	}

	// The cached address is not usable anymore, or nothing was cached.
	dev.metrics.RouteCacheMisses.WithLabelValues(dev.Name(), "ipv4").Inc()
	rt, err := dev.router.LookupRoute(fl)
	if err != nil {
		if limitNoRoute.Allow() {
			logrus.WithFields(logrus.Fields{
				"function": "Send",
				"device":   dev.Name(),
				"dst":      bind.Addr,
			}).Debug("no route to host")
		}
		return fmt.Errorf("route lookup for %s: %w", bind.Addr, ErrHostUnreachable)
	}
	cache.Set(&RouteEntry{Route: rt, Src: rt.Src})

	return sock.Transmit(d, rt.Src, bind.Addr)
}

// udp6Output resolves the IPv6 route for the binding and transmits. Unlike
// the IPv4 path, a lookup failure propagates the underlying error.
func udp6Output(dev *Device, bind *Binding, cache *RouteCache, sock Socket, d *Datagram) error {
	fl := routing.Flow{
		Family:  routing.FamilyIPv6,
		Dst:     bind.Addr,
		SrcPort: sock.LocalPort(),
		Proto:   ProtocolUDP,
		Mark:    sock.Mark(),
		OIF:     bind.ScopeID,
	}

	if e := cachedRoute(cache, dev.router, routing.FamilyIPv6); e != nil {
		dev.metrics.RouteCacheHits.WithLabelValues(dev.Name(), "ipv6").Inc()
		return sock.Transmit(d, e.Src, bind.Addr)
	}

	dev.metrics.RouteCacheMisses.WithLabelValues(dev.Name(), "ipv6").Inc()
	rt, err := dev.router.LookupRoute(fl)
	if err != nil {
		if limitNoRoute.Allow() {
			logrus.WithFields(logrus.Fields{
				"function": "Send",
				"device":   dev.Name(),
				"dst":      bind.Addr,
			}).Debug("IPv6 route lookup failed")
		}
		return fmt.Errorf("route lookup for %s: %w", bind.Addr, err)
	}
	cache.Set(&RouteEntry{Route: rt, Src: rt.Src})

	return sock.Transmit(d, rt.Src, bind.Addr)
}
