package transport

import (
	"errors"
	"net/netip"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/udptun/metrics"
	"github.com/opd-ai/udptun/routing"
)

// PeerDirectory is the read-only lookup capability the shim needs from the
// peer table. Both lookups return a held handle the caller must Release
// exactly once, or nil when no peer matches.
type PeerDirectory interface {
	// LookupID resolves a peer by numeric identifier.
	LookupID(id uint32) *Peer

	// LookupAddr resolves a peer by its current remote transport address.
	LookupAddr(addr netip.AddrPort) *Peer
}

// ReceivePipeline is the secure-channel receive pipeline. Receive takes
// ownership of both the datagram and the peer reference and returns a
// verdict following the tri-state ingress contract, which the
// demultiplexer propagates verbatim.
type ReceivePipeline interface {
	Receive(dev *Device, p *Peer, d *Datagram) Verdict
}

// KeepaliveMonitor observes authenticated-direction transmissions.
// NotifyTransmit is fire-and-forget and must not block.
type KeepaliveMonitor interface {
	NotifyTransmit(p *Peer)
}

// DeviceConfig carries the collaborators of one tunnel device context.
type DeviceConfig struct {
	// Name is the tunnel network interface name.
	Name string
	// Ifindex is the tunnel interface index, zero when not registered.
	Ifindex int
	// Peers is the device's peer directory.
	Peers PeerDirectory
	// Recv is the secure-channel receive pipeline.
	Recv ReceivePipeline
	// Router is the platform routing subsystem.
	Router routing.Router
	// Keepalive optionally observes transmissions.
	Keepalive KeepaliveMonitor
	// Metrics overrides the default metrics instance, mainly for tests.
	Metrics *metrics.Metrics
}

// Device is the per-tunnel-interface context. At most one device may be
// attached to a given raw socket at a time; the UDPMux ownership table
// enforces that.
type Device struct {
	name      string
	ifindex   int
	peers     PeerDirectory
	recv      ReceivePipeline
	router    routing.Router
	keepalive KeepaliveMonitor
	metrics   *metrics.Metrics
}

// NewDevice validates the configuration and creates a device context.
func NewDevice(cfg DeviceConfig) (*Device, error) {
	if cfg.Name == "" {
		return nil, errors.New("device name cannot be empty")
	}
	if cfg.Peers == nil {
		return nil, errors.New("device peer directory cannot be nil")
	}
	if cfg.Recv == nil {
		return nil, errors.New("device receive pipeline cannot be nil")
	}
	if cfg.Router == nil {
		return nil, errors.New("device router cannot be nil")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewDevice",
		"device":   cfg.Name,
		"ifindex":  cfg.Ifindex,
	}).Info("Creating tunnel device context")

	return &Device{
		name:      cfg.Name,
		ifindex:   cfg.Ifindex,
		peers:     cfg.Peers,
		recv:      cfg.Recv,
		router:    cfg.Router,
		keepalive: cfg.Keepalive,
		metrics:   cfg.Metrics,
	}, nil
}

// Name returns the tunnel interface name.
func (dev *Device) Name() string {
	return dev.name
}

// Ifindex returns the tunnel interface index.
func (dev *Device) Ifindex() int {
	return dev.ifindex
}

// Peers returns the device's peer directory.
func (dev *Device) Peers() PeerDirectory {
	return dev.peers
}
