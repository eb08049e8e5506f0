package transport

import (
	"encoding/binary"
)

// Wire framing constants. The bit layout of the 4-byte tunnel prefix is
// owned by the tunnel protocol; this package only reads it.
const (
	// UDPHeaderLen is the length of the outer UDP header still present on
	// datagrams handed to the ingress hook.
	UDPHeaderLen = 8

	// PrefixLen is the length of the tunnel prefix following the outer UDP
	// header: opcode and key-id packed in one byte, 24-bit peer-id.
	PrefixLen = 4

	// OpcodeDataV2 identifies a tunnel data datagram carrying a peer-id.
	OpcodeDataV2 = 9

	// MaxPeerID is the largest peer identifier expressible in the prefix.
	MaxPeerID = 1<<24 - 1
)

// Opcode extracts the tunnel opcode from the high 5 bits of the first
// prefix byte.
func Opcode(prefix []byte) byte {
	return prefix[0] >> 3
}

// KeyID extracts the key identifier from the low 3 bits of the first
// prefix byte.
func KeyID(prefix []byte) byte {
	return prefix[0] & 0x07
}

// PeerID extracts the 24-bit peer identifier from the prefix.
func PeerID(prefix []byte) uint32 {
	return binary.BigEndian.Uint32(prefix[:PrefixLen]) & MaxPeerID
}

// DataV2Prefix builds the 4-byte prefix of a tunnel data datagram.
func DataV2Prefix(keyID byte, peerID uint32) [PrefixLen]byte {
	var prefix [PrefixLen]byte
	binary.BigEndian.PutUint32(prefix[:], peerID&MaxPeerID)
	prefix[0] = OpcodeDataV2<<3 | keyID&0x07
	return prefix
}

// putUDPHeader writes an outer UDP header covering length payload bytes.
// The checksum field is left zero: no checksum is computed at this layer.
func putUDPHeader(b []byte, srcPort, dstPort uint16, payloadLen int) {
	binary.BigEndian.PutUint16(b[0:2], srcPort)
	binary.BigEndian.PutUint16(b[2:4], dstPort)
	binary.BigEndian.PutUint16(b[4:6], uint16(UDPHeaderLen+payloadLen))
	binary.BigEndian.PutUint16(b[6:8], 0)
}
