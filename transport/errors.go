package transport

import "errors"

var (
	// ErrWrongProtocol indicates an attach attempt on a non-UDP socket.
	ErrWrongProtocol = errors.New("socket transport protocol is not UDP")
	// ErrAlreadyAttached indicates the socket is already bound to the same device.
	// Callers may treat this as a no-op rather than a failure.
	ErrAlreadyAttached = errors.New("socket already attached to this device")
	// ErrBusy indicates the socket is claimed by a different device.
	ErrBusy = errors.New("socket already attached to another device")
	// ErrNoTransport indicates the peer has no bound socket or no active binding.
	ErrNoTransport = errors.New("peer has no active transport")
	// ErrHostUnreachable indicates no route to the peer's bound address exists.
	ErrHostUnreachable = errors.New("no route to host")
	// ErrAddressFamily indicates the peer binding uses an unsupported address family.
	ErrAddressFamily = errors.New("address family not supported")
)
