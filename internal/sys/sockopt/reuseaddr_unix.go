//go:build unix

// FILE: internal/sys/sockopt/reuseaddr_unix.go
package sockopt

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// ReuseAddrControl 返回一个 net.ListenConfig.Control 钩子, 在 bind 之前把 SO_REUSEADDR
// 显式设置为 enabled。Go 在 unix 上默认会打开该选项, 所以 enabled=false 时必须主动清除。
func ReuseAddrControl(enabled bool) func(network, address string, c syscall.RawConn) error {
	value := 0
	if enabled {
		value = 1
	}
	return func(network, address string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, value)
		})
		if err != nil {
			return err
		}
		if sockErr != nil {
			return fmt.Errorf("failed to set SO_REUSEADDR=%d on %s: %w", value, address, sockErr)
		}
		return nil
	}
}

// ReuseAddrEnabled reports whether SO_REUSEADDR is set on the socket.
func ReuseAddrEnabled(c syscall.RawConn) (bool, error) {
	var (
		val     int
		sockErr error
	)
	err := c.Control(func(fd uintptr) {
		val, sockErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR)
	})
	if err != nil {
		return false, err
	}
	return val != 0, sockErr
}
