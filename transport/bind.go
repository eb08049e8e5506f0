package transport

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/udptun/metrics"
)

// UDPMux binds tunnel device contexts to raw UDP sockets and demultiplexes
// their inbound traffic.
//
// The ownership table is the side-table equivalent of private data stored
// on a kernel socket: an entry records which device context has claimed the
// socket's ingress callback. Entries are read on every received datagram
// and written only from device up/down control paths, which the device
// lifecycle serializes with respect to each other.
type UDPMux struct {
	mu     sync.RWMutex
	owners map[Socket]*Device

	// metrics counts drops that happen before a device context is
	// resolved; per-device counters live on the device itself.
	metrics *metrics.Metrics
}

// NewUDPMux creates an empty mux reporting to the default metrics instance.
func NewUDPMux() *UDPMux {
	return NewUDPMuxWithMetrics(metrics.Default())
}

// NewUDPMuxWithMetrics creates an empty mux reporting to m, mainly for
// tests with a private registry.
func NewUDPMuxWithMetrics(m *metrics.Metrics) *UDPMux {
	return &UDPMux{owners: make(map[Socket]*Device), metrics: m}
}

// Owner returns the device context that claimed the socket, nil when the
// socket is unclaimed.
func (m *UDPMux) Owner(s Socket) *Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.owners[s]
}

// Attach claims the socket for the device and installs the ingress
// callback.
//
// Attach fails with ErrWrongProtocol for non-UDP sockets, with
// ErrAlreadyAttached when the socket is already claimed by the same device
// (an idempotent no-op signal, not fatal), and with ErrBusy when another
// device owns it. No state is modified on any failure path.
func (m *UDPMux) Attach(s Socket, dev *Device) error {
	if s.Protocol() != ProtocolUDP {
		logrus.WithFields(logrus.Fields{
			"function": "Attach",
			"device":   dev.Name(),
			"protocol": s.Protocol(),
		}).Error("expected UDP socket")
		return ErrWrongProtocol
	}

	m.mu.RLock()
	owner := m.owners[s]
	m.mu.RUnlock()
	if owner != nil {
		if owner == dev {
			logrus.WithFields(logrus.Fields{
				"function": "Attach",
				"device":   dev.Name(),
			}).Debug("socket already owned by this device")
			return ErrAlreadyAttached
		}
		logrus.WithFields(logrus.Fields{
			"function": "Attach",
			"device":   dev.Name(),
			"owner":    owner.Name(),
		}).Error("socket already taken by another device")
		return ErrBusy
	}

	// Ownership entry and ingress callback are installed together so the
	// callback never fires for a socket the table does not know.
	m.mu.Lock()
	m.owners[s] = dev
	s.InstallEncap(func(d *Datagram) Verdict {
		return m.HandleIngress(s, d)
	})
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Attach",
		"device":   dev.Name(),
		"port":     s.LocalPort(),
	}).Info("socket attached to tunnel device")
	return nil
}

// Detach clears the ingress callback and releases the mux's reference to
// the socket. Detach is unconditional: it does not re-check ownership, so
// callers must only invoke it on a socket they are certain they attached.
func (m *UDPMux) Detach(s Socket) {
	m.mu.Lock()
	s.InstallEncap(nil)
	delete(m.owners, s)
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Detach",
		"port":     s.LocalPort(),
	}).Info("socket detached from tunnel device")
}
