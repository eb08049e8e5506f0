package transport

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoopbackSocket(t *testing.T) *UDPSocket {
	t.Helper()
	s, err := ListenUDP(UDPSocketConfig{Listen: "127.0.0.1:0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUDPSocketProtocol(t *testing.T) {
	s := newLoopbackSocket(t)
	assert.Equal(t, ProtocolUDP, s.Protocol())
	assert.NotZero(t, s.LocalPort())
}

func TestUDPSocketDeliversForeignTraffic(t *testing.T) {
	receiver := newLoopbackSocket(t)
	sender := newLoopbackSocket(t)

	d := NewDatagram([]byte("not tunnel traffic"))
	require.NoError(t, sender.Transmit(d, netip.Addr{}, receiver.LocalAddr()))
	d.Free()

	select {
	case got := <-receiver.Inbox():
		// Without an encapsulation callback everything surfaces on the
		// inbox, framed the way a raw hook sees it.
		require.GreaterOrEqual(t, got.Len(), UDPHeaderLen)
		assert.Equal(t, []byte("not tunnel traffic"), got.Data()[UDPHeaderLen:])
		got.Free()
	case <-time.After(3 * time.Second):
		t.Fatal("datagram never surfaced on the inbox")
	}
}

func TestUDPSocketEncapConsumesTunnelTraffic(t *testing.T) {
	receiver := newLoopbackSocket(t)
	sender := newLoopbackSocket(t)

	captured := make(chan []byte, 1)
	receiver.InstallEncap(func(d *Datagram) Verdict {
		payload := make([]byte, d.Len())
		copy(payload, d.Data())
		captured <- payload
		d.Free()
		return VerdictConsumed
	})

	prefix := DataV2Prefix(0, 7)
	d := NewDatagram(append(prefix[:], []byte("ciphertext")...))
	require.NoError(t, sender.Transmit(d, netip.Addr{}, receiver.LocalAddr()))
	d.Free()

	select {
	case payload := <-captured:
		require.GreaterOrEqual(t, len(payload), UDPHeaderLen+PrefixLen)
		assert.Equal(t, byte(OpcodeDataV2), Opcode(payload[UDPHeaderLen:]))
	case <-time.After(3 * time.Second):
		t.Fatal("encap callback never ran")
	}

	// Consumed traffic must not surface on the inbox.
	select {
	case d := <-receiver.Inbox():
		t.Fatalf("consumed datagram surfaced on the inbox: %v", d.Data())
	case <-time.After(200 * time.Millisecond):
	}
}

func TestUDPSocketTransmitPinsIPv4SourceOnWildcardListen(t *testing.T) {
	// A wildcard listen binds dual-stack; an IPv4 source pin must survive
	// it rather than being silently dropped.
	sender, err := ListenUDP(UDPSocketConfig{Listen: ":0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sender.Close() })
	require.False(t, sender.LocalAddr().Addr().Unmap().Is4(), "wildcard listen is not IPv4-only")

	receiver := newLoopbackSocket(t)

	d := NewDatagram([]byte("pinned send"))
	require.NoError(t, sender.Transmit(d, netip.MustParseAddr("127.0.0.1"), receiver.LocalAddr()))
	d.Free()

	select {
	case got := <-receiver.Inbox():
		assert.Equal(t, []byte("pinned send"), got.Data()[UDPHeaderLen:])
		got.Free()
	case <-time.After(3 * time.Second):
		t.Fatal("pinned datagram never arrived")
	}
}

func TestUDPSocketCloseClosesInbox(t *testing.T) {
	s, err := ListenUDP(UDPSocketConfig{Listen: "127.0.0.1:0"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	select {
	case _, ok := <-s.Inbox():
		assert.False(t, ok, "inbox must be closed after Close")
	case <-time.After(time.Second):
		t.Fatal("inbox not closed")
	}
}
