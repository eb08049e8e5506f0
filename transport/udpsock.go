package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// UDPSocketConfig configures a raw UDP socket.
type UDPSocketConfig struct {
	// Listen is the local address to bind, e.g. ":1194".
	Listen string
	// Mark is the fwmark to set on the socket, zero for none (Linux only).
	Mark uint32
	// BindDevice binds the socket to a network interface by name (Linux
	// only).
	BindDevice string
	// InboxSize bounds the queue of datagrams awaiting the normal UDP
	// consumer. Defaults to 64.
	InboxSize int
}

// UDPSocket is the in-repo Socket implementation backed by a kernel UDP
// socket. Its read loop offers every datagram to the installed ingress
// callback first, reconstructing the outer UDP header so the callback sees
// raw-hook framing; datagrams the tunnel does not consume surface on
// Inbox.
type UDPSocket struct {
	conn      *net.UDPConn
	pc4       *ipv4.PacketConn
	pc6       *ipv6.PacketConn
	local     netip.AddrPort
	mark      uint32
	ifindex   int
	encap     atomic.Pointer[EncapFunc]
	inbox     chan *Datagram
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// ListenUDP opens a UDP socket and starts its read loop.
func ListenUDP(cfg UDPSocketConfig) (*UDPSocket, error) {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 64
	}

	ifindex := 0
	if cfg.BindDevice != "" {
		iface, err := net.InterfaceByName(cfg.BindDevice)
		if err != nil {
			return nil, fmt.Errorf("resolving bind device %q: %w", cfg.BindDevice, err)
		}
		ifindex = iface.Index
	}

	lc := net.ListenConfig{Control: socketControl(cfg.Mark, cfg.BindDevice)}
	pc, err := lc.ListenPacket(context.Background(), "udp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("listening on %q: %w", cfg.Listen, err)
	}
	conn := pc.(*net.UDPConn)

	local := conn.LocalAddr().(*net.UDPAddr).AddrPort()

	ctx, cancel := context.WithCancel(context.Background())
	s := &UDPSocket{
		conn:    conn,
		local:   local,
		mark:    cfg.Mark,
		ifindex: ifindex,
		inbox:   make(chan *Datagram, cfg.InboxSize),
		ctx:     ctx,
		cancel:  cancel,
	}
	if local.Addr().Unmap().Is4() {
		s.pc4 = ipv4.NewPacketConn(conn)
	} else {
		// Wildcard and IPv6 listens are dual-stack by default: IPv6 sends
		// go through pc6, IPv4-source pins through pc4.
		s.pc6 = ipv6.NewPacketConn(conn)
		s.pc4 = ipv4.NewPacketConn(conn)
	}

	logrus.WithFields(logrus.Fields{
		"function": "ListenUDP",
		"local":    local,
		"mark":     cfg.Mark,
	}).Info("UDP socket listening")

	s.wg.Add(1)
	go s.readLoop()

	return s, nil
}

// Protocol returns the UDP protocol number.
func (s *UDPSocket) Protocol() int { return ProtocolUDP }

// LocalPort returns the bound source port.
func (s *UDPSocket) LocalPort() uint16 { return s.local.Port() }

// LocalAddr returns the bound local address.
func (s *UDPSocket) LocalAddr() netip.AddrPort { return s.local }

// Mark returns the configured fwmark.
func (s *UDPSocket) Mark() uint32 { return s.mark }

// BoundIfindex returns the index of the bound device, zero if unbound.
func (s *UDPSocket) BoundIfindex() int { return s.ifindex }

// InstallEncap installs or removes the ingress callback.
func (s *UDPSocket) InstallEncap(f EncapFunc) {
	if f == nil {
		s.encap.Store(nil)
		return
	}
	s.encap.Store(&f)
}

// Inbox delivers datagrams the tunnel did not consume. Consumers own the
// datagrams they receive and must Free them. The channel is closed when the
// socket closes.
func (s *UDPSocket) Inbox() <-chan *Datagram {
	return s.inbox
}

// Transmit writes the datagram payload to dst, pinned to the given source
// address when one is supplied. No transport checksum work happens here.
func (s *UDPSocket) Transmit(d *Datagram, src netip.Addr, dst netip.AddrPort) error {
	ua := net.UDPAddrFromAddrPort(dst)

	var err error
	switch {
	case src.IsValid() && src.Unmap().Is4() && s.pc4 != nil:
		// An IPv4 source pin is carried as an IPv4 control message even on
		// a dual-stack socket; the kernel routes 4-mapped destinations
		// through the IPv4 output path, where an IPv6 pin would be lost.
		cm := &ipv4.ControlMessage{Src: src.Unmap().AsSlice()}
		_, err = s.pc4.WriteTo(d.Data(), cm, ua)
	case s.pc6 != nil:
		var cm *ipv6.ControlMessage
		if src.IsValid() {
			cm = &ipv6.ControlMessage{Src: src.AsSlice()}
		}
		_, err = s.pc6.WriteTo(d.Data(), cm, ua)
	case s.pc4 != nil:
		_, err = s.pc4.WriteTo(d.Data(), nil, ua)
	default:
		err = errors.New("socket has no packet conn")
	}
	if err != nil {
		return fmt.Errorf("udp transmit to %s: %w", dst, err)
	}
	return nil
}

// Close stops the read loop, closes the socket and then the inbox.
func (s *UDPSocket) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.conn.Close()
		s.wg.Wait()
		close(s.inbox)
	})
	return s.closeErr
}

// readLoop pulls datagrams off the socket until the context is cancelled.
func (s *UDPSocket) readLoop() {
	defer s.wg.Done()

	buf := make([]byte, MaxDatagramSize)
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
			s.readOne(buf)
		}
	}
}

// readOne reads and dispatches a single datagram.
func (s *UDPSocket) readOne(buf []byte) {
	// Short deadline so cancellation is observed promptly.
	_ = s.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

	n, src, err := s.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		s.handleReadError(err)
		return
	}

	d := NewIngressDatagram(src, s.local, buf[:n])
	s.dispatch(d)
}

// handleReadError sorts read failures; timeouts are the idle case.
func (s *UDPSocket) handleReadError(err error) {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return
	}
	if s.ctx.Err() != nil {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "readLoop",
		"local":    s.local,
	}).WithError(err).Warn("UDP read failed")
}

// dispatch offers the datagram to the ingress callback and routes the
// verdict.
func (s *UDPSocket) dispatch(d *Datagram) {
	var v Verdict = VerdictDeliver
	if f := s.encap.Load(); f != nil {
		v = (*f)(d)
	}

	switch {
	case v.Consumed():
		// Delivered into the tunnel or dropped there.
	case v > 0:
		select {
		case s.inbox <- d:
		default:
			logrus.WithFields(logrus.Fields{
				"function": "dispatch",
				"local":    s.local,
			}).Warn("inbox full, dropping datagram")
			d.Free()
		}
	default:
		// Userspace cannot resubmit as another protocol.
		logrus.WithFields(logrus.Fields{
			"function": "dispatch",
			"local":    s.local,
			"protocol": v.ResubmitProto(),
		}).Warn("cannot resubmit datagram as another protocol, dropping")
		d.Free()
	}
}
