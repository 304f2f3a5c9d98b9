package probe

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixedreply/internal/core/responder"
)

func startResponder(t *testing.T) string {
	t.Helper()
	r, err := responder.Listen(responder.ListenConfig{Host: "127.0.0.1", ReuseAddr: true})
	require.NoError(t, err)
	go r.Serve()
	t.Cleanup(func() { r.Close() })
	return r.Addr().String()
}

// startSocks5 runs a no-auth, CONNECT-only SOCKS5 relay for IPv4 targets.
func startSocks5(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go relaySocks5(conn)
		}
	}()
	return ln.Addr().String()
}

func relaySocks5(client net.Conn) {
	defer client.Close()

	header := make([]byte, 2)
	if _, err := io.ReadFull(client, header); err != nil || header[0] != 0x05 {
		return
	}
	if _, err := io.CopyN(io.Discard, client, int64(header[1])); err != nil {
		return
	}
	if _, err := client.Write([]byte{0x05, 0x00}); err != nil {
		return
	}

	req := make([]byte, 10) // VER CMD RSV ATYP(IPv4) ADDR(4) PORT(2)
	if _, err := io.ReadFull(client, req); err != nil || req[1] != 0x01 || req[3] != 0x01 {
		return
	}
	target := net.JoinHostPort(net.IP(req[4:8]).String(), strconv.Itoa(int(binary.BigEndian.Uint16(req[8:10]))))
	upstream, err := net.Dial("tcp", target)
	if err != nil {
		client.Write([]byte{0x05, 0x01, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		return
	}
	defer upstream.Close()
	if _, err := client.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}); err != nil {
		return
	}

	go io.Copy(upstream, client)
	io.Copy(client, upstream)
}

func TestProbe_Direct(t *testing.T) {
	addr := startResponder(t)

	res, err := Probe(context.Background(), Options{
		Addr:    addr,
		Payload: []byte("hello"),
		Expect:  responder.DefaultReply(),
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.True(t, res.Match)
	assert.Len(t, res.Reply, 54)
	assert.Greater(t, res.Latency, time.Duration(0))
}

func TestProbe_EmptyPayloadHalfCloses(t *testing.T) {
	addr := startResponder(t)

	res, err := Probe(context.Background(), Options{
		Addr:    addr,
		Expect:  responder.DefaultReply(),
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.True(t, res.Match)
}

func TestProbe_Mismatch(t *testing.T) {
	addr := startResponder(t)

	res, err := Probe(context.Background(), Options{
		Addr:    addr,
		Payload: []byte("hello"),
		Expect:  []byte("something else"),
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.False(t, res.Match)
	assert.Equal(t, responder.DefaultReply(), res.Reply)
}

func TestProbe_ThroughSocks5(t *testing.T) {
	addr := startResponder(t)
	socksAddr := startSocks5(t)

	res, err := Probe(context.Background(), Options{
		Addr:    addr,
		Payload: []byte("via proxy"),
		Expect:  responder.DefaultReply(),
		Socks5:  socksAddr,
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.True(t, res.Match)
}

func TestProbe_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Probe(context.Background(), Options{Addr: addr, Payload: []byte("x"), Timeout: time.Second})
	assert.Error(t, err)
}

func TestProbe_PayloadLargerThanReadSize(t *testing.T) {
	addr := startResponder(t)

	res, err := Probe(context.Background(), Options{
		Addr:    addr,
		Payload: bytes.Repeat([]byte("z"), 4000),
		Expect:  responder.DefaultReply(),
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.True(t, res.Match)
	assert.Equal(t, responder.DefaultReply(), res.Reply)
}
