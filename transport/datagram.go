package transport

import (
	"errors"
	"net/netip"
	"sync"

	"github.com/sirupsen/logrus"
)

// MaxDatagramSize is the largest datagram the shim handles, outer UDP
// header included.
const MaxDatagramSize = 65535

var datagramPool = sync.Pool{
	New: func() any {
		return &Datagram{buf: make([]byte, MaxDatagramSize)}
	},
}

// Datagram is a pooled packet buffer with single-owner semantics.
//
// Whoever holds a Datagram must either pass ownership on (to the receive
// pipeline, the inbox consumer, or Send) or call Free exactly once.
type Datagram struct {
	buf []byte
	off int // start of live data within buf
	end int // end of live data within buf

	// Src is the remote transport address the datagram arrived from.
	// It is set by the ingress path and unused on egress.
	Src netip.AddrPort

	// Dev names the tunnel device that owns the datagram on egress.
	Dev string

	// NoChecksum records that no transport checksum is computed for this
	// datagram; checksumming is delegated to hardware or absent entirely.
	NoChecksum bool

	freed bool
}

// NewDatagram returns a pooled datagram holding a copy of payload.
func NewDatagram(payload []byte) *Datagram {
	d := datagramPool.Get().(*Datagram)
	d.reset()
	d.end = copy(d.buf, payload)
	return d
}

// NewIngressDatagram builds a datagram the way a raw ingress hook would see
// it: the outer UDP header followed by the payload. src is recorded as the
// remote transport address. Dual-stack sockets report IPv4 senders in
// 4-mapped IPv6 form; the source is stored unmapped so address matching
// compares per-family values.
func NewIngressDatagram(src, dst netip.AddrPort, payload []byte) *Datagram {
	d := datagramPool.Get().(*Datagram)
	d.reset()
	putUDPHeader(d.buf, src.Port(), dst.Port(), len(payload))
	d.end = UDPHeaderLen + copy(d.buf[UDPHeaderLen:], payload)
	d.Src = netip.AddrPortFrom(src.Addr().Unmap(), src.Port())
	return d
}

func (d *Datagram) reset() {
	d.off = 0
	d.end = 0
	d.Src = netip.AddrPort{}
	d.Dev = ""
	d.NoChecksum = false
	d.freed = false
}

// Data returns the live view of the datagram.
func (d *Datagram) Data() []byte {
	return d.buf[d.off:d.end]
}

// Len returns the number of live bytes.
func (d *Datagram) Len() int {
	return d.end - d.off
}

// Pull strips n bytes off the front of the datagram.
func (d *Datagram) Pull(n int) error {
	if n > d.Len() {
		return errors.New("pull exceeds datagram length")
	}
	d.off += n
	return nil
}

// Free returns the buffer to the pool. Freeing twice is a programming
// error; the second call is ignored and logged.
func (d *Datagram) Free() {
	if d.freed {
		logrus.WithFields(logrus.Fields{
			"function": "Free",
			"length":   d.Len(),
		}).Error("datagram freed twice")
		return
	}
	d.freed = true
	datagramPool.Put(d)
}

// Freed reports whether Free has been called on the datagram.
func (d *Datagram) Freed() bool {
	return d.freed
}
