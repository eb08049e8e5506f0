//go:build !linux

package transport

import (
	"fmt"
	"syscall"
)

// socketControl rejects Linux-only socket options on other platforms.
func socketControl(mark uint32, device string) func(network, address string, c syscall.RawConn) error {
	if mark == 0 && device == "" {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		return fmt.Errorf("fwmark and device bind are not supported on this platform")
	}
}
