package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"golang.org/x/net/proxy"

	"fixedreply/internal/shared/logger"
)

const (
	defaultTimeout = 10 * time.Second
	maxReplySize   = 64 * 1024
)

// Options configures one probe exchange.
type Options struct {
	Addr    string
	Payload []byte
	Expect  []byte
	Socks5  string // 可选的 SOCKS5 代理地址, 例如 127.0.0.1:1080
	Timeout time.Duration
}

// Result is the outcome of a probe.
type Result struct {
	Reply   []byte
	Match   bool
	Latency time.Duration
}

type closeWriter interface {
	CloseWrite() error
}

// Probe connects to a responder, sends the payload and reads the reply until
// the server closes the connection.
func Probe(ctx context.Context, opts Options) (*Result, error) {
	l := logger.WithComponent("Probe")
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	startTime := time.Now()
	conn, err := dial(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if len(opts.Payload) > 0 {
		if _, err := conn.Write(opts.Payload); err != nil {
			return nil, fmt.Errorf("failed to send payload: %w", err)
		}
	} else if cw, ok := conn.(closeWriter); ok {
		// 没有数据可发, 半关闭让服务端的读取立即返回
		if err := cw.CloseWrite(); err != nil {
			return nil, fmt.Errorf("failed to half-close: %w", err)
		}
	}

	reply, err := io.ReadAll(io.LimitReader(conn, maxReplySize))
	if err != nil {
		// 服务端只读一次, 关闭时若仍有未读的输入会发送 RST。
		// 回复已经到达时, RST 视为回复结束。
		if len(reply) == 0 || !errors.Is(err, syscall.ECONNRESET) {
			return nil, fmt.Errorf("failed to read reply: %w", err)
		}
		l.Debug().Err(err).Int("reply_len", len(reply)).Msg("Connection reset after reply")
	}

	result := &Result{
		Reply:   reply,
		Match:   bytes.Equal(reply, opts.Expect),
		Latency: time.Since(startTime),
	}
	l.Debug().
		Str("addr", opts.Addr).
		Int("reply_len", len(reply)).
		Bool("match", result.Match).
		Dur("latency", result.Latency).
		Msg("Probe finished")
	return result, nil
}

func dial(ctx context.Context, opts Options) (net.Conn, error) {
	if opts.Socks5 == "" {
		d := &net.Dialer{Timeout: opts.Timeout}
		conn, err := d.DialContext(ctx, "tcp", opts.Addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", opts.Addr, err)
		}
		return conn, nil
	}

	dialer, err := proxy.SOCKS5("tcp", opts.Socks5, nil, &net.Dialer{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	conn, err := dialer.(proxy.ContextDialer).DialContext(ctx, "tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s via SOCKS5 %s: %w", opts.Addr, opts.Socks5, err)
	}
	return conn, nil
}
