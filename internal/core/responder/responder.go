package responder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fixedreply/internal/shared"
	"fixedreply/internal/shared/config"
	"fixedreply/internal/shared/logger"
	"fixedreply/internal/shared/types"
	"fixedreply/internal/sys/sockopt"
)

// ListenConfig is passed to Listen and never mutated afterwards.
type ListenConfig struct {
	Host      string // 为空表示监听所有网卡
	Port      int
	ReuseAddr bool
	ReadSize  int    // 单次读取上限, 默认 1024
	Reply     []byte // 为空时使用 DefaultReply
}

// FromConfig builds a ListenConfig from the [responder] ini section.
func FromConfig(cfg *types.Config) (ListenConfig, error) {
	reply, err := config.ParseReplyHex(cfg.ResponderConf.ReplyHex)
	if err != nil {
		return ListenConfig{}, err
	}
	return ListenConfig{
		Host:      cfg.ResponderConf.Host,
		Port:      cfg.ResponderConf.Port,
		ReuseAddr: cfg.ResponderConf.ReuseAddress,
		ReadSize:  cfg.ResponderConf.ReadSize,
		Reply:     reply,
	}, nil
}

func (c ListenConfig) withDefaults() ListenConfig {
	if c.ReadSize <= 0 {
		c.ReadSize = config.DefaultReadSize
	}
	if len(c.Reply) == 0 {
		c.Reply = DefaultReply()
	} else {
		c.Reply = append([]byte(nil), c.Reply...)
	}
	return c
}

// Exchange is what a Handler read from and wrote to one connection.
type Exchange struct {
	Received   []byte
	Replied    int
	EarlyClose bool // 客户端在发送任何数据前关闭了写端
}

// Handler serves one accepted connection. The accept loop closes conn after
// the handler returns; returned errors are logged and never stop the loop.
type Handler func(ctx context.Context, conn net.Conn, peer net.Addr) (Exchange, error)

// Responder owns the listening socket and handles connections one at a time.
type Responder struct {
	cfg       ListenConfig
	listener  net.Listener
	handler   Handler
	observer  Observer
	stats     *Stats
	logger    zerolog.Logger
	closeOnce sync.Once
	closing   atomic.Bool
}

// Listen binds the listening socket. Bind errors are returned to the caller,
// which is expected to treat them as fatal.
func Listen(cfg ListenConfig) (*Responder, error) {
	cfg = cfg.withDefaults()

	lc := net.ListenConfig{Control: sockopt.ReuseAddrControl(cfg.ReuseAddr)}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("responder failed to listen on %s: %w", addr, err)
	}

	r := &Responder{
		cfg:      cfg,
		listener: listener,
		stats:    newStats(),
		logger:   logger.WithComponent("Responder"),
	}
	r.handler = r.Handle
	r.logger.Info().
		Str("listen_addr", listener.Addr().String()).
		Bool("reuse_addr", cfg.ReuseAddr).
		Int("read_size", cfg.ReadSize).
		Int("reply_len", len(cfg.Reply)).
		Msg(">>> Responder is listening.")
	return r, nil
}

// Run binds host:port and serves forever. It only returns on a bind error or
// when the listener is closed.
func Run(cfg ListenConfig) error {
	r, err := Listen(cfg)
	if err != nil {
		return err
	}
	return r.Serve()
}

// SetHandler replaces the built-in handler. Must be called before Serve.
func (r *Responder) SetHandler(h Handler) {
	r.handler = h
}

// SetObserver registers o to receive an event per handled connection.
// Must be called before Serve.
func (r *Responder) SetObserver(o Observer) {
	r.observer = o
}

// Addr returns the bound address.
func (r *Responder) Addr() net.Addr {
	return r.listener.Addr()
}

// Stats returns the live counters.
func (r *Responder) Stats() *Stats {
	return r.stats
}

// Reply returns a copy of the configured reply.
func (r *Responder) Reply() []byte {
	return append([]byte(nil), r.cfg.Reply...)
}

// Serve runs the accept loop. Each connection is read, logged, answered and
// closed before the next one is accepted. Serve returns nil once Close is called.
func (r *Responder) Serve() error {
	var tempDelay time.Duration
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			if r.closing.Load() || errors.Is(err, net.ErrClosed) {
				r.logger.Info().Msg("Responder listener is closing.")
				return nil
			}
			// 与 net/http 相同的退避策略, 避免 EMFILE 之类的错误导致空转
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if tempDelay > time.Second {
				tempDelay = time.Second
			}
			r.logger.Warn().Err(err).Dur("retry_in", tempDelay).Msg("Responder failed to accept connection")
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0
		r.serveConn(conn)
	}
}

func (r *Responder) serveConn(conn net.Conn) {
	r.stats.accepted.Add(1)

	traceID := uuid.NewString()
	l := r.logger.With().Str("trace_id", traceID).Logger()
	ctx := l.WithContext(context.Background())
	peer := conn.RemoteAddr()

	counted := shared.NewCountedConn(conn, &r.stats.bytesIn, &r.stats.bytesOut)

	ev := &ConnectionEvent{
		TraceID:   traceID,
		ClientIP:  peerIP(peer),
		StartedAt: time.Now(),
	}

	ex, err := r.handler(ctx, counted, peer)
	if closeErr := conn.Close(); closeErr != nil && err == nil {
		l.Debug().Err(closeErr).Msg("Failed to close client connection")
	}
	if err != nil {
		l.Warn().Err(err).Str("client_ip", ev.ClientIP).Msg("Connection handler failed")
		ev.Error = err.Error()
	}

	ev.Received = int(counted.BytesRead())
	ev.Replied = int(counted.BytesWritten())
	ev.Payload = string(Trim(ex.Received))
	ev.EarlyClose = ex.EarlyClose
	ev.FinishedAt = time.Now()
	r.stats.record(ev, len(r.cfg.Reply))

	if r.observer != nil {
		r.observer.OnConnection(ev)
	}
}

// Handle is the built-in Handler: one bounded read, two log lines, then the
// full reply. Bytes beyond ReadSize are left unread.
func (r *Responder) Handle(ctx context.Context, conn net.Conn, peer net.Addr) (Exchange, error) {
	l := zerolog.Ctx(ctx)
	var ex Exchange

	buf := make([]byte, r.cfg.ReadSize)
	n, err := conn.Read(buf)
	ex.Received = buf[:n]
	if err != nil && !errors.Is(err, io.EOF) {
		if n > 0 {
			l.Info().Str("payload", string(Trim(ex.Received))).Msg("Partial data before read error")
		}
		return ex, fmt.Errorf("read from %s: %w", peer, err)
	}
	if n == 0 {
		// 客户端未发送数据就关闭了写端, 仍然尝试回复
		ex.EarlyClose = true
	}

	ip := peerIP(peer)
	trimmed := Trim(ex.Received)
	l.Info().Str("client_ip", ip).Msgf("%s wrote:", ip)
	l.Info().Int("bytes", n).Str("payload", string(trimmed)).Msgf("%q", trimmed)

	written, err := writeFull(conn, r.cfg.Reply)
	ex.Replied = written
	if err != nil {
		if ex.EarlyClose {
			l.Debug().Err(err).Msg("Peer went away before the reply")
			return ex, nil
		}
		return ex, fmt.Errorf("write reply to %s: %w", peer, err)
	}
	return ex, nil
}

// Close stops the accept loop. A connection being handled is not interrupted.
func (r *Responder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.closing.Store(true)
		err = r.listener.Close()
	})
	return err
}

func writeFull(w io.Writer, p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := w.Write(p[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

func peerIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return tcpAddr.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
