package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixedreply/internal/core/responder"
	"fixedreply/internal/service/web"
	"fixedreply/internal/shared/types"
)

func startRun(t *testing.T, webCfg types.WebConf) (*responder.Responder, chan error) {
	t.Helper()
	r, err := responder.Listen(responder.ListenConfig{Host: "127.0.0.1", ReuseAddr: true})
	require.NoError(t, err)

	hub := web.NewHub()
	r.SetObserver(hub)

	done := make(chan error, 1)
	go func() { done <- run(context.Background(), webCfg, r, hub) }()
	return r, done
}

func requestReply(t *testing.T, addr net.Addr) []byte {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)
	reply, err := io.ReadAll(conn)
	require.NoError(t, err)
	return reply
}

func waitRun(t *testing.T, done chan error) {
	t.Helper()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after the responder was closed")
	}
}

func TestRun_DashboardBindFailureKeepsResponder(t *testing.T) {
	busy, err := net.Listen("tcp", "0.0.0.0:0")
	require.NoError(t, err)
	defer busy.Close()

	r, done := startRun(t, types.WebConf{WebPort: busy.Addr().(*net.TCPAddr).Port})

	// run must still be serving after the dashboard gave up.
	select {
	case err := <-done:
		t.Fatalf("run returned early: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, responder.DefaultReply(), requestReply(t, r.Addr()))

	require.NoError(t, r.Close())
	waitRun(t, done)
}

func TestRun_DashboardStopsWithResponder(t *testing.T) {
	free, err := net.Listen("tcp", "0.0.0.0:0")
	require.NoError(t, err)
	webPort := free.Addr().(*net.TCPAddr).Port
	require.NoError(t, free.Close())

	r, done := startRun(t, types.WebConf{WebPort: webPort})
	statusURL := "http://127.0.0.1:" + strconv.Itoa(webPort) + "/api/status"

	require.Eventually(t, func() bool {
		resp, err := http.Get(statusURL)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, responder.DefaultReply(), requestReply(t, r.Addr()))

	require.NoError(t, r.Close())
	waitRun(t, done)

	_, err = http.Get(statusURL)
	assert.Error(t, err, "dashboard must be closed with the responder")
}
