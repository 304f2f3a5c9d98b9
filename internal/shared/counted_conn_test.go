package shared

import (
	"io"
	"net"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exchangeOverPipe(t *testing.T, counted *CountedConn, client net.Conn, in string, out string) {
	t.Helper()
	go func() {
		client.Write([]byte(in))
		io.ReadFull(client, make([]byte, len(out)))
	}()

	buf := make([]byte, 64)
	n, err := counted.Read(buf)
	require.NoError(t, err)
	require.Equal(t, len(in), n)

	_, err = counted.Write([]byte(out))
	require.NoError(t, err)
}

func TestCountedConn_PerConnAndTotals(t *testing.T) {
	var totalIn, totalOut atomic.Uint64

	server1, client1 := net.Pipe()
	defer client1.Close()
	first := NewCountedConn(server1, &totalIn, &totalOut)
	defer first.Close()
	exchangeOverPipe(t, first, client1, "hello", "abc")

	server2, client2 := net.Pipe()
	defer client2.Close()
	second := NewCountedConn(server2, &totalIn, &totalOut)
	defer second.Close()
	exchangeOverPipe(t, second, client2, "hi", "abcdef")

	assert.EqualValues(t, 5, first.BytesRead())
	assert.EqualValues(t, 3, first.BytesWritten())
	assert.EqualValues(t, 2, second.BytesRead())
	assert.EqualValues(t, 6, second.BytesWritten())

	assert.EqualValues(t, 7, totalIn.Load())
	assert.EqualValues(t, 9, totalOut.Load())
}

func TestCountedConn_NilTotals(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	counted := NewCountedConn(server, nil, nil)
	defer counted.Close()

	exchangeOverPipe(t, counted, client, "xyz", "q")
	assert.EqualValues(t, 3, counted.BytesRead())
	assert.EqualValues(t, 1, counted.BytesWritten())
}
