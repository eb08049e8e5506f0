//go:build linux

package transport

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// socketControl returns the listen control function applying the fwmark
// and device bind before the socket starts receiving.
func socketControl(mark uint32, device string) func(network, address string, c syscall.RawConn) error {
	if mark == 0 && device == "" {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		var optErr error
		err := c.Control(func(fd uintptr) {
			if mark != 0 {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_MARK, int(mark)); err != nil {
					optErr = fmt.Errorf("setting SO_MARK: %w", err)
					return
				}
			}
			if device != "" {
				if err := unix.BindToDevice(int(fd), device); err != nil {
					optErr = fmt.Errorf("binding to device %q: %w", device, err)
				}
			}
		})
		if err != nil {
			return err
		}
		return optErr
	}
}
