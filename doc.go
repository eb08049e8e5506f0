// Package udptun implements the UDP transport shim for a multi-peer
// encrypted tunnel device.
//
// The shim demultiplexes inbound UDP datagrams between tunnel data traffic
// (handed to the secure-channel receive pipeline) and control or foreign
// traffic (handed back to the normal UDP consumer), transmits outbound
// tunnel datagrams with a per-peer cached network route, and manages the
// lifecycle of binding a raw UDP socket to the demultiplexer.
//
// # Getting Started
//
// Create a device context with its collaborators, bind a socket, and send:
//
//	router, err := routing.NewOSRouter()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry := peer.NewRegistry()
//	dev, err := transport.NewDevice(transport.DeviceConfig{
//	    Name:   "tun0",
//	    Peers:  registry,
//	    Recv:   pipeline, // secure-channel receive pipeline
//	    Router: router,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sock, err := transport.ListenUDP(transport.UDPSocketConfig{Listen: ":1194"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mux := transport.NewUDPMux()
//	if err := mux.Attach(sock, dev); err != nil {
//	    log.Fatal(err)
//	}
//	defer mux.Detach(sock)
//
// Cryptographic transform of the tunnel payload, full peer lifecycle
// management, and device registration are external collaborators; the
// interfaces they must satisfy live in the transport package.
package udptun
