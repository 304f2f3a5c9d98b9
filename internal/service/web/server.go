package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"fixedreply/internal/shared/logger"
	"fixedreply/internal/shared/types"
)

// loggingListener logs accepted dashboard connections at debug level.
type loggingListener struct {
	net.Listener
}

func (l loggingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err == nil {
		logger.Debug().Msgf("[WebServer] Connection accepted from: %s", conn.RemoteAddr())
	}
	return conn, err
}

// basicAuthMiddleware 检查 web_user 和 web_password 是否已配置。
// 如果配置了，它将强制执行 HTTP Basic Authentication。
func basicAuthMiddleware(next http.Handler, user, pass string) http.Handler {
	if user == "" || pass == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Unauthorized.\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewMux wires the dashboard routes.
func NewMux(cfg types.WebConf, provider StatusProvider, hub *Hub) *http.ServeMux {
	handler := NewHandler(provider, hub)
	mux := http.NewServeMux()

	mux.Handle("/api/connections", basicAuthMiddleware(http.HandlerFunc(handler.HandleGetConnections), cfg.WebUser, cfg.WebPassword))

	// 公开的状态 API 和 WebSocket
	mux.HandleFunc("/api/status", handler.HandleStatus)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	})
	return mux
}

// Serve runs the dashboard on web_port until ctx is cancelled. It returns nil
// right away when web_port is 0.
func Serve(ctx context.Context, cfg types.WebConf, provider StatusProvider, hub *Hub) error {
	if cfg.WebPort <= 0 {
		logger.Info().Msg("[WebServer] Dashboard is disabled (web_port is 0 or not set).")
		return nil
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.WebPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start dashboard on %s: %w", addr, err)
	}
	logger.Info().Msgf("Dashboard is listening on http://%s", addr)

	go hub.Run()

	srv := &http.Server{
		Handler:           NewMux(cfg, provider, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	if err := srv.Serve(loggingListener{Listener: listener}); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("dashboard server error: %w", err)
	}
	logger.Info().Msg("Dashboard stopped.")
	return nil
}
