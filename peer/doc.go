// Package peer implements the peer directory for a tunnel device: a
// registry of reference-counted peers indexed by numeric identifier and by
// current remote transport address.
//
// The registry satisfies transport.PeerDirectory. Lookups return held
// handles; callers release them with Peer.Release.
package peer
