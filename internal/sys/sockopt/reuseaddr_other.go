//go:build !unix

// FILE: internal/sys/sockopt/reuseaddr_other.go
package sockopt

import (
	"syscall"
)

// ReuseAddrControl 在非 unix 系统上的存根实现, 保留系统默认行为
func ReuseAddrControl(enabled bool) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		return nil
	}
}

// ReuseAddrEnabled 在非 unix 系统上总是返回 false
func ReuseAddrEnabled(c syscall.RawConn) (bool, error) {
	return false, nil
}
