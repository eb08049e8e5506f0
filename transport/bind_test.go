package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachRejectsNonUDPSocket(t *testing.T) {
	dev := newTestDevice(newMockDirectory(), &mockPipeline{}, newMockRouter(routingRouteStub()))
	mux := NewUDPMux()

	sock := newMockSocket()
	sock.proto = 6 // TCP

	err := mux.Attach(sock, dev)
	assert.ErrorIs(t, err, ErrWrongProtocol)
	assert.Nil(t, mux.Owner(sock))
	assert.Nil(t, sock.installedEncap(), "no callback installed on failure")
}

func TestAttachInstallsOwnershipAndCallback(t *testing.T) {
	dev := newTestDevice(newMockDirectory(), &mockPipeline{}, newMockRouter(routingRouteStub()))
	mux := NewUDPMux()
	sock := newMockSocket()

	require.NoError(t, mux.Attach(sock, dev))
	assert.Same(t, dev, mux.Owner(sock))
	assert.NotNil(t, sock.installedEncap())
}

func TestAttachIdempotentSameDevice(t *testing.T) {
	dev := newTestDevice(newMockDirectory(), &mockPipeline{}, newMockRouter(routingRouteStub()))
	mux := NewUDPMux()
	sock := newMockSocket()

	require.NoError(t, mux.Attach(sock, dev))
	err := mux.Attach(sock, dev)

	assert.ErrorIs(t, err, ErrAlreadyAttached)
	assert.Same(t, dev, mux.Owner(sock), "ownership token unchanged")
}

func TestAttachBusyDifferentDevice(t *testing.T) {
	devA := newTestDevice(newMockDirectory(), &mockPipeline{}, newMockRouter(routingRouteStub()))
	devB := newTestDevice(newMockDirectory(), &mockPipeline{}, newMockRouter(routingRouteStub()))
	mux := NewUDPMux()
	sock := newMockSocket()

	require.NoError(t, mux.Attach(sock, devA))
	err := mux.Attach(sock, devB)

	assert.ErrorIs(t, err, ErrBusy)
	assert.Same(t, devA, mux.Owner(sock), "first owner must be preserved")
}

func TestDetachReturnsSocketToUnbound(t *testing.T) {
	dev := newTestDevice(newMockDirectory(), &mockPipeline{}, newMockRouter(routingRouteStub()))
	mux := NewUDPMux()
	sock := newMockSocket()

	require.NoError(t, mux.Attach(sock, dev))
	mux.Detach(sock)

	assert.Nil(t, mux.Owner(sock))
	assert.Nil(t, sock.installedEncap(), "callback cleared on detach")

	// Unbound again: a fresh attach succeeds.
	assert.NoError(t, mux.Attach(sock, dev))
}
