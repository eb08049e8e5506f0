package transport

import (
	"github.com/sirupsen/logrus"
)

// HandleIngress classifies one received datagram and decides its
// disposition.
//
// The datagram must begin at the outer UDP header, exactly as a raw ingress
// hook delivers it. If the first prefix byte carries the DATA_V2 opcode the
// datagram is resolved by peer-id and handed to the receive pipeline;
// any other opcode is resolved by source transport address, and when no
// peer matches the datagram is left untouched for the normal UDP consumer.
//
// Return contract: VerdictConsumed means the datagram was delivered or
// dropped here, VerdictDeliver (or any positive verdict) means the caller
// must deliver it normally, and a negative verdict requests resubmission as
// another protocol. The receive pipeline's own verdict is propagated
// verbatim.
func (m *UDPMux) HandleIngress(s Socket, d *Datagram) Verdict {
	dev := m.Owner(s)
	if dev == nil {
		// Lifecycle bug: the callback outlived the ownership entry.
		if limitNoDevice.Allow() {
			logrus.WithFields(logrus.Fields{
				"function": "HandleIngress",
				"port":     s.LocalPort(),
			}).Error("cannot obtain device context from UDP socket")
		}
		m.metrics.RxDropped.WithLabelValues("unattached", "no_device").Inc()
		d.Free()
		return VerdictConsumed
	}

	// The first 4 bytes after the outer UDP header carry the opcode, the
	// key-id and the peer-id; all of them must be present.
	if d.Len() < UDPHeaderLen+PrefixLen {
		if limitMalformed.Allow() {
			logrus.WithFields(logrus.Fields{
				"function": "HandleIngress",
				"device":   dev.Name(),
				"length":   d.Len(),
			}).Debug("datagram too small")
		}
		dev.metrics.RxDropped.WithLabelValues(dev.Name(), "malformed").Inc()
		d.Free()
		return VerdictConsumed
	}
	prefix := d.Data()[UDPHeaderLen : UDPHeaderLen+PrefixLen]

	var p *Peer
	if Opcode(prefix) == OpcodeDataV2 {
		id := PeerID(prefix)
		p = dev.peers.LookupID(id)
		if p == nil {
			if limitUnknownPeer.Allow() {
				logrus.WithFields(logrus.Fields{
					"function": "HandleIngress",
					"device":   dev.Name(),
					"peer_id":  id,
				}).Error("received data from unknown peer")
			}
			dev.metrics.RxDropped.WithLabelValues(dev.Name(), "unknown_peer").Inc()
			d.Free()
			return VerdictConsumed
		}
	} else {
		p = dev.peers.LookupAddr(d.Src)
		if p == nil {
			logrus.WithFields(logrus.Fields{
				"function": "HandleIngress",
				"device":   dev.Name(),
				"src":      d.Src,
			}).Debug("control packet from unknown peer, delivering to UDP consumer")
			dev.metrics.RxDelivered.WithLabelValues(dev.Name()).Inc()
			return VerdictDeliver
		}
	}

	// Pop the outer UDP header; the pipeline sees the tunnel payload
	// starting at the prefix. It owns the datagram and the peer reference
	// from here on, and its verdict is final.
	if err := d.Pull(UDPHeaderLen); err != nil {
		p.Release()
		d.Free()
		return VerdictConsumed
	}
	dev.metrics.RxConsumed.WithLabelValues(dev.Name()).Inc()
	return dev.recv.Receive(dev, p, d)
}
