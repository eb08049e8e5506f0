// Package transport implements the UDP transport shim for the tunnel device.
//
// This package handles ingress demultiplexing, egress transmission with a
// per-peer cached route, and the binding of raw UDP sockets to the
// demultiplexer.
//
// Example:
//
//	mux := transport.NewUDPMux()
//	if err := mux.Attach(sock, dev); err != nil {
//	    log.Fatal(err)
//	}
//
//	// outbound, after the crypto layer wrapped the payload
//	err = transport.Send(dev, peer, dgram)
package transport
