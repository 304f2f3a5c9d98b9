// FILE: internal/shared/counted_conn.go
package shared

import (
	"net"
	"sync/atomic"
)

// CountedConn 包装一个 net.Conn, 记录本连接读写的字节数,
// 同时把增量实时累加到进程级的总计数上 (监控面板在连接未结束时也能看到流量)。
type CountedConn struct {
	net.Conn
	read     atomic.Uint64
	written  atomic.Uint64
	totalIn  *atomic.Uint64
	totalOut *atomic.Uint64
}

// NewCountedConn wraps conn. totalIn and totalOut may be nil.
func NewCountedConn(conn net.Conn, totalIn, totalOut *atomic.Uint64) *CountedConn {
	return &CountedConn{
		Conn:     conn,
		totalIn:  totalIn,
		totalOut: totalOut,
	}
}

func (c *CountedConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.read.Add(uint64(n))
		if c.totalIn != nil {
			c.totalIn.Add(uint64(n))
		}
	}
	return n, err
}

func (c *CountedConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		c.written.Add(uint64(n))
		if c.totalOut != nil {
			c.totalOut.Add(uint64(n))
		}
	}
	return n, err
}

// BytesRead is what this connection has read so far, whoever did the reading.
func (c *CountedConn) BytesRead() uint64 {
	return c.read.Load()
}

// BytesWritten is what this connection has written so far.
func (c *CountedConn) BytesWritten() uint64 {
	return c.written.Load()
}
